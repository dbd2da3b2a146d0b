package inputs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// =============================================================================
// Input Discovery
// =============================================================================
//
// Cached prover inputs are named after the block they describe:
//
//	<input_dir>/input_0x<block hash>.json
//
// Anything else in the directory (other files, subdirectories) is ignored.

// ValidateInputDir checks that dir exists and is a directory.
func ValidateInputDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return errors.Wrapf(types.ErrSetup, "input directory does not exist: %s", dir)
	}
	if err != nil {
		return errors.Wrapf(types.ErrSetup, "failed to access input directory %s: %v", dir, err)
	}
	if !info.IsDir() {
		return errors.Wrapf(types.ErrSetup, "input path is not a directory: %s", dir)
	}
	return nil
}

// ParseBlockID extracts the block identifier from an input file name.
// Returns false when the name does not follow the input naming pattern.
func ParseBlockID(fileName string) (string, bool) {
	if !strings.HasPrefix(fileName, types.InputPrefix) || !strings.HasSuffix(fileName, types.InputSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(fileName, types.InputPrefix), types.InputSuffix)
	if len(id) <= 2 || !strings.HasPrefix(id, "0x") {
		return "", false
	}
	return id, true
}

// DiscoverUnits scans dir for input files and returns one ExecutionUnit per
// file, ordered by file name. An empty result is not an error.
func DiscoverUnits(dir string) ([]types.ExecutionUnit, error) {
	if err := ValidateInputDir(dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(types.ErrSetup, "failed to read input directory %s: %v", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := ParseBlockID(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	units := make([]types.ExecutionUnit, 0, len(names))
	for i, name := range names {
		id, _ := ParseBlockID(name)
		units = append(units, types.ExecutionUnit{
			Ordinal:   i,
			BlockID:   id,
			InputPath: filepath.Join(dir, name),
		})
	}
	return units, nil
}
