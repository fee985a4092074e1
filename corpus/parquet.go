package corpus

import (
	"context"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
)

// ParquetFile reads one string column of a parquet file, row group by
// row group. Datasets exported from dataframe tooling commonly arrive in
// this shape, one text value per row.
type ParquetFile struct {
	path   string
	column string
	file   *os.File
	pf     *parquet.File
	colIdx int
	closed bool
}

var _ Source = &ParquetFile{}

// NewParquetFile opens path and resolves column, failing when the column
// does not exist.
func NewParquetFile(path, column string) (*ParquetFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "opening parquet corpus"))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "stat %q", path))
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, api.WrapError(api.TrainingError, errors.Wrapf(err, "reading parquet footer of %q", path))
	}
	leaf, ok := pf.Schema().Lookup(column)
	if !ok {
		_ = f.Close()
		return nil, api.Errorf(api.TrainingError, "parquet file %q has no column %q", path, column)
	}
	return &ParquetFile{
		path:   path,
		column: column,
		file:   f,
		pf:     pf,
		colIdx: leaf.ColumnIndex,
	}, nil
}

// Path returns the parquet file's path.
func (p *ParquetFile) Path() string { return p.path }

// Lines implements Source, yielding the column value of every row. Null
// values are skipped.
func (p *ParquetFile) Lines(ctx context.Context, fn func(line string) error) error {
	if p.closed {
		return api.ErrClosed
	}
	buf := make([]parquet.Row, 256)
	for _, group := range p.pf.RowGroups() {
		rows := group.Rows()
		err := p.drain(ctx, rows, buf, fn)
		closeErr := rows.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return api.WrapError(api.TrainingError, errors.Wrapf(closeErr, "closing row group of %q", p.path))
		}
	}
	return nil
}

func (p *ParquetFile) drain(ctx context.Context, rows parquet.Rows, buf []parquet.Row, fn func(line string) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, value := range row {
				if value.Column() != p.colIdx || value.IsNull() {
					continue
				}
				if err := fn(value.String()); err != nil {
					return err
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return api.WrapError(api.TrainingError, errors.Wrapf(err, "reading rows of %q", p.path))
		}
	}
}

// Close implements Source.
func (p *ParquetFile) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.file.Close()
}
