// =============================================================================
// pkg/interfaces/interfaces.go - Core Interfaces
// =============================================================================
//
// This package defines the seams between the block-profiling-workflow components.
// The prover process, the chain node and the log sinks are all external, so each
// is reached through an interface that tests can replace with an in-process fake.
//
// =============================================================================

package interfaces

import (
	"context"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// =============================================================================
// Runner Interface
// =============================================================================

// Invocation describes one run of the prover binary.
type Invocation struct {
	// Binary is the path of the executable.
	Binary string

	// Args are the command-line arguments (excluding the binary).
	Args []string

	// Env holds variables that override the inherited process environment.
	Env map[string]string
}

// Output is what a successful invocation produced.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a prover invocation to completion.
//
// A non-zero exit status must be reported as an error satisfying
// errors.Is(err, types.ErrInvocationFailure). Cancelling ctx must stop the
// process.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// =============================================================================
// MetadataSource Interface
// =============================================================================

// MetadataSource looks up block header fields from a chain node.
type MetadataSource interface {
	// BlockByHash returns the block number and gas used of the given block.
	// Failures satisfy errors.Is(err, types.ErrMetadataUnavailable).
	BlockByHash(ctx context.Context, hash string) (types.BlockInfo, error)
}

// =============================================================================
// Logger Interface
// =============================================================================

// Logger defines the interface for logging operations.
// Implementations write informational and error output to separate sinks.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})

	// Separator logs a visual separator line.
	Separator()

	// WithScope returns a logger that prefixes every message with the scope.
	WithScope(scope string) Logger

	// Sync forces a flush of all log buffers to disk.
	Sync()

	// Close closes all log files.
	Close()
}

// =============================================================================
// MemoryMonitor Interface
// =============================================================================

// MemoryMonitor defines the interface for memory monitoring.
type MemoryMonitor interface {
	// Check reads current memory usage and logs a warning if threshold exceeded.
	Check() int64

	// CurrentRSSGB returns the current RSS in gigabytes.
	CurrentRSSGB() float64

	// PeakRSSGB returns the peak RSS observed in gigabytes.
	PeakRSSGB() float64

	// LogSummary logs a summary of memory usage.
	LogSummary(logger Logger)
}
