package filestore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/practicehub/storage/authstore"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "practicehub")
	store := New(dir)

	_, err := store.Get(ctx, "auth-storage")
	assert.ErrorIs(t, err, authstore.ErrNotFound)

	assert.NoError(t, store.Set(ctx, "auth-storage", []byte(`{"state":{}}`)))
	assert.NoError(t, store.Set(ctx, "auth-storage", []byte(`{"state":{"token":"t"}}`)))

	data, err := store.Get(ctx, "auth-storage")
	assert.NoError(t, err)
	assert.Equal(t, `{"state":{"token":"t"}}`, string(data))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(filepath.Join(dir, "auth-storage.json"))
		assert.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	assert.NoError(t, store.Del(ctx, "auth-storage"))
	assert.NoError(t, store.Del(ctx, "auth-storage"))
	_, err = store.Get(ctx, "auth-storage")
	assert.ErrorIs(t, err, authstore.ErrNotFound)
}
