package hostfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreateReadWriteRemove(t *testing.T) {
	fs := New(t.TempDir())

	_, ok := fs.Open("a.txt", false)
	assert.False(t, ok, "opening a nonexistent file without create must fail")

	w, ok := fs.Open("a.txt", true)
	require.True(t, ok)
	n, err := w.Write([]byte("payload"), 0, 7)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, w.Close())

	r, ok := fs.Open("a.txt", false)
	require.True(t, ok)
	buf := make([]byte, 16)
	n, err = r.Read(buf, 0, 16)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	assert.Equal(t, []byte("payload"), buf[:7])

	n, err = r.Read(buf, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a read at EOF transfers nothing, without error")
	require.NoError(t, r.Close())

	assert.True(t, fs.Remove("a.txt"))
	assert.False(t, fs.Remove("a.txt"))
}

func TestNamesConfinedToRootDirectory(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)

	f, ok := fs.Open("../../escape.txt", true)
	require.True(t, ok)
	require.NoError(t, f.Close())

	inside, ok := fs.Open("escape.txt", false)
	assert.True(t, ok, "a traversal-laden name must resolve inside the root directory")
	if ok {
		_ = inside.Close()
	}
	assert.True(t, fs.Remove("escape.txt"))
}

func TestReadWriteBadBufferBounds(t *testing.T) {
	fs := New(t.TempDir())
	f, ok := fs.Open("b.txt", true)
	require.True(t, ok)
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.Read(buf, 2, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.Write(buf, -1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
