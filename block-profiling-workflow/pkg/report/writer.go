// =============================================================================
// pkg/report/writer.go - CSV Report Files
// =============================================================================
//
// Reports are flat CSV files with a fixed header. The header is written when
// the file is created, and every appended row is flushed to the OS before
// Append returns, so a crash later in the run keeps every row already written.
//
// =============================================================================

package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// RowSink receives report rows.
type RowSink interface {
	Append(record []string) error
}

// Writer appends rows to one CSV report file.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	csv     *csv.Writer
	columns int
	rows    int
}

// Create creates (or truncates) the report at path and writes the header.
// The parent directory is created if needed.
func Create(path string, header []string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := helpers.EnsureDir(dir); err != nil {
			return nil, errors.Wrapf(types.ErrSetup, "create report directory %s: %v", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(types.ErrSetup, "open report %s: %v", path, err)
	}

	w := &Writer{
		path:    path,
		file:    f,
		csv:     csv.NewWriter(f),
		columns: len(header),
	}
	if err := w.write(header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write report header")
	}
	return w, nil
}

// Append writes one row and flushes it.
func (w *Writer) Append(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.Errorf("report %s is closed", w.path)
	}
	if len(record) != w.columns {
		return errors.Errorf("report %s: row has %d columns, header has %d", w.path, len(record), w.columns)
	}
	if err := w.write(record); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return errors.Wrapf(err, "write %s", w.path)
	}
	w.csv.Flush()
	return errors.Wrapf(w.csv.Error(), "flush %s", w.path)
}

// Rows returns the number of rows appended (header excluded).
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path returns the report file path.
func (w *Writer) Path() string {
	return w.path
}

// Close syncs and closes the file. Calling Close twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil

	if err := w.csv.Error(); err != nil {
		return errors.Wrapf(err, "flush %s", w.path)
	}
	if syncErr != nil {
		return errors.Wrapf(syncErr, "sync %s", w.path)
	}
	return errors.Wrapf(closeErr, "close %s", w.path)
}

var _ RowSink = (*Writer)(nil)
