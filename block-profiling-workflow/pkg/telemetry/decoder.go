// =============================================================================
// pkg/telemetry/decoder.go - Telemetry Artifact Decoding
// =============================================================================
//
// A telemetry artifact is a compressed JSON document written by the prover's
// cycle tracker:
//
//	{
//	  "KECCAK": [[10, 2], [20, 4]],
//	  "SLOAD":  [[2100, 2100]],
//	  ...
//	}
//
// COMPRESSION:
//
//	The codec is detected from the leading magic bytes, not the file name:
//	  1f 8b        → gzip  (what the cycle tracker writes)
//	  28 b5 2f fd  → zstd
//
// The JSON is read token by token. Only one counter's observations are held
// outside the returned Artifact at any time, and the compressed input is
// never buffered whole.
//
// Every failure is reported as types.ErrCorruptArtifact.
//
// =============================================================================

package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DecodeFile decodes the artifact at path.
func DecodeFile(path string) (types.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrCorruptArtifact, "open %s: %v", path, err)
	}
	defer f.Close()

	artifact, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return artifact, nil
}

// Decode decompresses and parses one artifact from r.
func Decode(r io.Reader) (types.Artifact, error) {
	body, closeFn, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	artifact, err := parse(body)
	if err != nil {
		return nil, errors.Wrapf(types.ErrCorruptArtifact, "%v", err)
	}
	return artifact, nil
}

// decompress sniffs the codec and returns a reader over the JSON payload.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && len(head) < len(gzipMagic) {
		return nil, nil, errors.Wrap(types.ErrCorruptArtifact, "artifact too short")
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, errors.Wrapf(types.ErrCorruptArtifact, "gzip header: %v", err)
		}
		return zr, func() { zr.Close() }, nil

	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, errors.Wrapf(types.ErrCorruptArtifact, "zstd header: %v", err)
		}
		return zr, zr.Close, nil

	default:
		return nil, nil, errors.Wrapf(types.ErrCorruptArtifact, "unknown compression (magic % x)", head)
	}
}

// parse reads {"name": [[cycles, gas], ...], ...} from r.
//
// A name that appears more than once has its observations appended, so no
// observation in the document is dropped.
func parse(r io.Reader) (types.Artifact, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, errors.Wrap(err, "top level")
	}

	artifact := make(types.Artifact)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok || name == "" {
			return nil, errors.Errorf("invalid counter name %v", tok)
		}

		obs, err := parseObservations(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "counter %q", name)
		}
		artifact[name] = append(artifact[name], obs...)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data after document")
		}
		return nil, err
	}
	return artifact, nil
}

// parseObservations reads one [[cycles, gas], ...] array.
func parseObservations(dec *json.Decoder) ([]types.Observation, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	var obs []types.Observation
	for dec.More() {
		var o types.Observation
		if err := dec.Decode(&o); err != nil {
			return nil, errors.Wrapf(err, "observation %d", len(obs))
		}
		obs = append(obs, o)
	}

	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return obs, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
