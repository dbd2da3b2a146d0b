package telemetry

import (
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// Encode writes the artifact as gzip-compressed JSON, the format the cycle
// tracker produces.
func Encode(w io.Writer, artifact types.Artifact) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(artifact); err != nil {
		zw.Close()
		return errors.Wrap(err, "encode artifact")
	}
	return errors.Wrap(zw.Close(), "flush gzip stream")
}

// WriteFile writes the artifact to path, replacing any existing file.
func WriteFile(path string, artifact types.Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Encode(f, artifact); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
