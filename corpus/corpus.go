// Package corpus provides line sources for training: plain text files
// read through a memory map, parquet columns, and in-memory slices.
// WordCounts fans the sources out over goroutines and merges their
// partial counts.
package corpus

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gomlx/go-tokenizers/api"
)

// Source yields lines of training text. Sources are read once; after
// Close every call fails with api.ErrClosed.
type Source interface {
	// Lines calls fn for every line until the source is exhausted, fn
	// returns an error, or ctx is cancelled.
	Lines(ctx context.Context, fn func(line string) error) error
	Close() error
}

// Strings is an in-memory source.
type Strings struct {
	lines  []string
	closed bool
}

// NewStrings wraps the given lines as a source.
func NewStrings(lines []string) *Strings {
	return &Strings{lines: lines}
}

// Lines implements Source.
func (s *Strings) Lines(ctx context.Context, fn func(line string) error) error {
	if s.closed {
		return api.ErrClosed
	}
	for _, line := range s.lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Source.
func (s *Strings) Close() error {
	s.closed = true
	return nil
}

// WordCounts drains every source concurrently, splitting each line into
// words with split and summing their frequencies. The split function is
// called from multiple goroutines and must be safe for concurrent use.
func WordCounts(ctx context.Context, split func(line string) ([]string, error), sources ...Source) (map[string]int, error) {
	var (
		mu    sync.Mutex
		total = make(map[string]int)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, source := range sources {
		g.Go(func() error {
			local := make(map[string]int)
			err := source.Lines(ctx, func(line string) error {
				words, err := split(line)
				if err != nil {
					return err
				}
				for _, word := range words {
					local[word]++
				}
				return nil
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for word, count := range local {
				total[word] += count
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, api.WrapError(api.TrainingError, err)
	}
	return total, nil
}
