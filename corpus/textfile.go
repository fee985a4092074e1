package corpus

import (
	"context"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
)

// TextFile reads a newline-separated text file through a memory map, so
// large corpora never have to fit in the heap.
type TextFile struct {
	path   string
	file   *os.File
	data   mmap.MMap
	closed bool
}

var _ Source = &TextFile{}

// NewTextFile maps the file at path. Empty files are valid and yield no
// lines.
func NewTextFile(path string) (*TextFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "opening corpus file"))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "stat %q", path))
	}
	t := &TextFile{path: path, file: f}
	if info.Size() > 0 {
		t.data, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			_ = f.Close()
			return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "mapping %q", path))
		}
	}
	return t, nil
}

// Path returns the mapped file's path.
func (t *TextFile) Path() string { return t.path }

// Lines implements Source. Lines are the byte runs between newlines;
// a trailing carriage return is dropped.
func (t *TextFile) Lines(ctx context.Context, fn func(line string) error) error {
	if t.closed {
		return api.ErrClosed
	}
	data := t.data
	for start := 0; start < len(data); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start
		for end < len(data) && data[end] != '\n' {
			end++
		}
		lineEnd := end
		if lineEnd > start && data[lineEnd-1] == '\r' {
			lineEnd--
		}
		if err := fn(string(data[start:lineEnd])); err != nil {
			return err
		}
		start = end + 1
	}
	return nil
}

// Close implements Source, unmapping the file.
func (t *TextFile) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.data != nil {
		if err := t.data.Unmap(); err != nil {
			_ = t.file.Close()
			return api.WrapError(api.TrainingError, errors.Wrapf(err, "unmapping %q", t.path))
		}
	}
	return t.file.Close()
}
