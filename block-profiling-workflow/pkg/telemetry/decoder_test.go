package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

func gzipped(t *testing.T, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecode_Gzip(t *testing.T) {
	data := gzipped(t, `{"KECCAK": [[10, 2], [20, 4]], "ADD": [[3, 0]], "NOP": []}`)

	artifact, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []types.Observation{{Cycles: 10, Gas: 2}, {Cycles: 20, Gas: 4}}, artifact["KECCAK"])
	assert.Equal(t, []types.Observation{{Cycles: 3, Gas: 0}}, artifact["ADD"])
	assert.Empty(t, artifact["NOP"])
	assert.Equal(t, 3, artifact.Observations())
}

func TestDecode_Zstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(`{"SLOAD": [[2100, 2100]]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	artifact, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []types.Observation{{Cycles: 2100, Gas: 2100}}, artifact["SLOAD"])
}

func TestDecode_DuplicateNamesAppend(t *testing.T) {
	artifact, err := Decode(bytes.NewReader(gzipped(t, `{"ADD": [[1, 1]], "ADD": [[2, 1]]}`)))
	require.NoError(t, err)
	assert.Len(t, artifact["ADD"], 2)
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not compressed", []byte(`{"ADD": [[1, 1]]}`)},
		{"truncated gzip", gzipped(t, `{"ADD": [[1, 1]]}`)[:12]},
		{"top level array", gzipped(t, `[[1, 1]]`)},
		{"observations not array", gzipped(t, `{"ADD": 5}`)},
		{"null observations", gzipped(t, `{"ADD": null}`)},
		{"three element pair", gzipped(t, `{"ADD": [[1, 2, 3]]}`)},
		{"one element pair", gzipped(t, `{"ADD": [[1]]}`)},
		{"negative", gzipped(t, `{"ADD": [[-1, 2]]}`)},
		{"fractional", gzipped(t, `{"ADD": [[1.5, 2]]}`)},
		{"string value", gzipped(t, `{"ADD": [["1", 2]]}`)},
		{"empty name", gzipped(t, `{"": [[1, 2]]}`)},
		{"unterminated", gzipped(t, `{"ADD": [[1, 2]`)},
		{"trailing document", gzipped(t, `{"ADD": [[1, 2]]} {}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrCorruptArtifact), "got %v", err)
		})
	}
}

func TestWriteFile_RoundTripsThroughDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace_0xabc.json.gz")
	want := types.Artifact{
		"KECCAK": {{Cycles: 10, Gas: 2}, {Cycles: 30, Gas: 5}},
		"ADD":    {{Cycles: 3, Gas: 0}},
	}
	require.NoError(t, WriteFile(path, want))

	got, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeFile_Missing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.json.gz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCorruptArtifact))
}

func TestDecodeFile_NamesPathInError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace_0xdead.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err := DecodeFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace_0xdead.json.gz")
}
