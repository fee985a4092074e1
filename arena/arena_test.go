package arena

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	closed   bool
	closeErr error
}

func (f *fakeResource) Close() error {
	f.closed = true
	return f.closeErr
}

func TestRegisterAndGet(t *testing.T) {
	a := New[*fakeResource]()
	res := &fakeResource{}
	handle := a.Register(res)
	assert.NotEmpty(t, handle)
	assert.Equal(t, 1, a.Len())

	got, err := a.Get(handle)
	require.NoError(t, err)
	assert.Same(t, res, got)
}

func TestHandlesAreUnique(t *testing.T) {
	a := New[*fakeResource]()
	h1 := a.Register(&fakeResource{})
	h2 := a.Register(&fakeResource{})
	assert.NotEqual(t, h1, h2)
}

func TestReleaseClosesValue(t *testing.T) {
	a := New[*fakeResource]()
	res := &fakeResource{}
	handle := a.Register(res)

	require.NoError(t, a.Release(handle))
	assert.True(t, res.closed)
	assert.Equal(t, 0, a.Len())

	_, err := a.Get(handle)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, a.Release(handle), ErrInvalidHandle)
}

func TestGetUnknownHandle(t *testing.T) {
	a := New[*fakeResource]()
	_, err := a.Get(Handle("nope"))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestCloseAll(t *testing.T) {
	a := New[*fakeResource]()
	first := &fakeResource{closeErr: errors.New("boom")}
	second := &fakeResource{}
	a.Register(first)
	a.Register(second)

	err := a.CloseAll()
	assert.Error(t, err)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
	assert.Equal(t, 0, a.Len())
}
