package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	store := NewStore(t.TempDir())

	ref, err := store.Put("s-1", "t1", []byte("chapter one"), "text/markdown")
	require.NoError(t, err)

	assert.Equal(t, "t1", ref.Label)
	assert.True(t, strings.HasPrefix(ref.Digest, "sha256:"))
	assert.True(t, strings.HasSuffix(ref.URI, ".md"))
	assert.Equal(t, int64(len("chapter one")), ref.SizeBytes)

	data, err := store.Get("s-1", ref.URI)
	require.NoError(t, err)
	assert.Equal(t, "chapter one", string(data))
}

func TestPutIsWriteOnce(t *testing.T) {
	store := NewStore(t.TempDir())

	a, err := store.Put("s-1", "t1", []byte("draft one"), "text/markdown")
	require.NoError(t, err)
	b, err := store.Put("s-1", "t1", []byte("draft two"), "text/markdown")
	require.NoError(t, err)

	assert.NotEqual(t, a.URI, b.URI, "each put gets a fresh artifact")

	first, err := store.Get("s-1", a.URI)
	require.NoError(t, err)
	assert.Equal(t, "draft one", string(first))
}

func TestDeleteSession(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	ref, err := store.Put("s-1", "t1", []byte("x"), "text/markdown")
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession("s-1"))

	_, err = store.Get("s-1", ref.URI)
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "sessions", "s-1", "artifacts"))
	assert.True(t, os.IsNotExist(err))
}
