package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a/page_1.png", []byte("v1")))
	require.NoError(t, s.Put(ctx, "a/page_1.png", []byte("v2")))

	// Overwrite semantics: one object, most recent payload.
	assert.Equal(t, 1, s.Len())
	data, err := s.Get(ctx, "a/page_1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a/page_1.png", []byte("x")))
	require.NoError(t, s.Put(ctx, "a/page_2.png", []byte("x")))
	require.NoError(t, s.Put(ctx, "b/page_1.png", []byte("x")))

	require.NoError(t, s.DeletePrefix(ctx, "a/"))

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/page_1.png"}, keys)
}

func TestMemoryStore_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.FailPuts("k", 2)

	assert.True(t, IsTransient(s.Put(ctx, "k", []byte("x"))))
	assert.True(t, IsTransient(s.Put(ctx, "k", []byte("x"))))
	require.NoError(t, s.Put(ctx, "k", []byte("x")))
	assert.Equal(t, 3, s.PutCount("k"))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("payload rejected")))
	assert.True(t, IsTransient(Transient(errors.New("503"))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
}
