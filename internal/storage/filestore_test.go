package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "faces"))
	require.NoError(t, err)
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)

	locator, err := s.Put([]byte("jpeg bytes"), ".JPG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(locator, ".jpg"))

	data, err := s.Get(locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	require.NoError(t, s.Delete(locator))
	_, err = s.Get(locator)
	assert.ErrorIs(t, err, ErrResourceMissing)

	// deleting twice is fine
	assert.NoError(t, s.Delete(locator))
}

func TestPutUniqueLocators(t *testing.T) {
	s := newStore(t)
	a, err := s.Put([]byte("a"), "png")
	require.NoError(t, err)
	b, err := s.Put([]byte("a"), "png")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestPutRejectsEmpty(t *testing.T) {
	_, err := newStore(t).Put(nil, "jpg")
	assert.Error(t, err)
}

func TestPutSanitizesExtension(t *testing.T) {
	s := newStore(t)
	locator, err := s.Put([]byte("x"), "../../etc")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(locator, ".img"))
}

func TestGetEmptyFileIsMissing(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "empty.jpg"), nil, 0o600))

	_, err := s.Get("empty.jpg")
	assert.ErrorIs(t, err, ErrResourceMissing)
}

func TestInvalidLocators(t *testing.T) {
	s := newStore(t)
	for _, locator := range []string{"", "../secret", "/etc/passwd", "sub/dir.jpg"} {
		t.Run(locator, func(t *testing.T) {
			_, err := s.Get(locator)
			assert.ErrorIs(t, err, ErrInvalidLocator)
			assert.ErrorIs(t, s.Delete(locator), ErrInvalidLocator)
		})
	}
}
