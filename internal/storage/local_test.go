package storage

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

func newMemStorage(t *testing.T) (*LocalStorage, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dumps/2024", 0755))
	require.NoError(t, afero.WriteFile(fs, "/dumps/2024/app.hprof", []byte("JAVA PROFILE 1.0.2\x00"), 0644))
	storage, err := NewLocalStorage(fs, "/dumps")
	require.NoError(t, err)
	return storage, fs
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("Missing directory", func(t *testing.T) {
		_, err := NewLocalStorage(afero.NewMemMapFs(), "/nowhere")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))
	})

	t.Run("Not a directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/file", nil, 0644))
		_, err := NewLocalStorage(fs, "/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("Empty path means working directory", func(t *testing.T) {
		storage, err := NewLocalStorage(afero.NewOsFs(), "")
		require.NoError(t, err)
		assert.Equal(t, ".", storage.GetBasePath())
	})
}

func TestLocalStorage_Fetch(t *testing.T) {
	storage, _ := newMemStorage(t)
	ctx := context.Background()

	path, err := storage.Fetch(ctx, "2024/app.hprof")
	require.NoError(t, err)
	assert.Equal(t, "/dumps/2024/app.hprof", path)

	path, err = storage.Fetch(ctx, "/dumps/2024/app.hprof")
	require.NoError(t, err)
	assert.Equal(t, "/dumps/2024/app.hprof", path)

	_, err = storage.Fetch(ctx, "missing.hprof")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = storage.Fetch(ctx, "2024")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestLocalStorage_Download(t *testing.T) {
	storage, _ := newMemStorage(t)
	ctx := context.Background()

	rc, err := storage.Download(ctx, "2024/app.hprof")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "JAVA PROFILE 1.0.2\x00", string(data))

	_, err = storage.Download(ctx, "missing.hprof")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLocalStorage_Exists(t *testing.T) {
	storage, fs := newMemStorage(t)
	ctx := context.Background()

	exists, err := storage.Exists(ctx, "2024/app.hprof")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.Remove("/dumps/2024/app.hprof"))
	exists, err = storage.Exists(ctx, "2024/app.hprof")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_Canceled(t *testing.T) {
	storage, _ := newMemStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.Fetch(ctx, "2024/app.hprof")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = storage.Download(ctx, "2024/app.hprof")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = storage.Exists(ctx, "2024/app.hprof")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStorage_GetURL(t *testing.T) {
	storage, _ := newMemStorage(t)
	assert.Equal(t, "/dumps/a/b.hprof", storage.GetURL("a/b.hprof"))
	assert.Equal(t, "/dumps/a/b.hprof", storage.GetURL("/dumps/a/b.hprof"))
}
