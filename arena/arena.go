// Package arena tracks live pipeline instances behind opaque handles,
// for embedders that cannot hold Go pointers (FFI layers, script
// bindings). Every registered value is an io.Closer; releasing a handle
// closes it, and CloseAll sweeps whatever is left.
package arena

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidHandle is returned for handles that were never issued or
// were already released. It is distinct from the pipeline's closed-state
// error: an invalid handle is the caller's bookkeeping bug.
var ErrInvalidHandle = errors.New("arena: invalid or released handle")

// Handle names one registered instance.
type Handle string

// Closer matches what the arena can own.
type Closer interface {
	Close() error
}

// Arena is a concurrency-safe handle table.
type Arena[T Closer] struct {
	mu      sync.Mutex
	entries map[Handle]T
}

// New returns an empty arena.
func New[T Closer]() *Arena[T] {
	return &Arena[T]{entries: make(map[Handle]T)}
}

// Register stores value and issues its handle.
func (a *Arena[T]) Register(value T) Handle {
	handle := Handle(uuid.NewString())
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[handle] = value
	return handle
}

// Get resolves a handle.
func (a *Arena[T]) Get(handle Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	value, ok := a.entries[handle]
	if !ok {
		var zero T
		return zero, ErrInvalidHandle
	}
	return value, nil
}

// Release removes the handle and closes its value. Releasing twice
// fails with ErrInvalidHandle.
func (a *Arena[T]) Release(handle Handle) error {
	a.mu.Lock()
	value, ok := a.entries[handle]
	if ok {
		delete(a.entries, handle)
	}
	a.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	return value.Close()
}

// Len reports how many instances are registered.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// CloseAll releases every remaining handle, returning the first close
// error encountered.
func (a *Arena[T]) CloseAll() error {
	a.mu.Lock()
	entries := a.entries
	a.entries = make(map[Handle]T)
	a.mu.Unlock()

	var firstErr error
	for _, value := range entries {
		if err := value.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
