package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	info, err := m.Put(ctx, "imports/a.csv", []byte("name\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "imports/a.csv", info.Key)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)

	obj, err := m.Get(ctx, "imports/a.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("name\n"), obj.Data)
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, int64(5), obj.Size)

	ok, err := m.Exists(ctx, "imports/a.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "imports/a.csv"))
	ok, err = m.Exists(ctx, "imports/a.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_DeleteMissingIsNotAnError(t *testing.T) {
	assert.NoError(t, NewMemory().Delete(context.Background(), "nope"))
}

func TestMemory_GetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrObjectStore)
}

func TestMemory_StoredDataIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	data := []byte("abc")
	_, err := m.Put(ctx, "k", data, "text/plain")
	require.NoError(t, err)
	data[0] = 'z'

	obj, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(obj.Data))
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailOn("put", boom)

	_, err := m.Put(ctx, "k", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, core.ErrObjectStore)
	assert.Empty(t, m.Keys())

	m.ClearFaults()
	_, err = m.Put(ctx, "k", []byte("x"), "text/plain")
	assert.NoError(t, err)
	assert.Equal(t, []string{"k"}, m.Keys())
}
