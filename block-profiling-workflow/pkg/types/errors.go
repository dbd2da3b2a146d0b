package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// =============================================================================
// Error Taxonomy
// =============================================================================
//
// Per-unit conditions (never abort other units):
//
//	ErrInvocationFailure   - prover exited non-zero, timed out or was killed
//	ErrCorruptArtifact     - telemetry artifact could not be decompressed or parsed
//	ErrMetadataUnavailable - block lookup failed; affected report cells become N/A
//
// Run-level conditions:
//
//	ErrEmptyBatch - nothing to aggregate; a header-only report is still written
//	ErrSetup      - fatal, raised before any unit is attempted
//
// Callers wrap these with errors.Wrap / errors.Wrapf and test with errors.Is.

var (
	ErrInvocationFailure   = errors.New("invocation failure")
	ErrCorruptArtifact     = errors.New("corrupt artifact")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrEmptyBatch          = errors.New("empty batch")
	ErrSetup               = errors.New("setup failure")
)

// UnitError describes a failed prover invocation.
type UnitError struct {
	BlockID  string
	ExitCode int    // -1 when the process did not exit normally
	Stderr   string // captured standard error, possibly empty
	Err      error  // underlying cause
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("block %s: prover exited with code %d: %v", e.BlockID, e.ExitCode, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *UnitError) Unwrap() error {
	return e.Err
}

// Is reports every UnitError as an invocation failure.
func (e *UnitError) Is(target error) bool {
	return target == ErrInvocationFailure
}
