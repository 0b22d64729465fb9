package artifactstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSha256(t *testing.T) {
	got := Sha256([]byte("hello world"))
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}

func TestValidatePackageName(t *testing.T) {
	valid := []string{"com.example", "com.example.app"}
	for _, name := range valid {
		require.NoError(t, ValidatePackageName(name), name)
	}

	invalid := []string{
		"",
		"nodot",
		"../etc",
		"a/b.c",
		`a\b.c`,
		"a\x00.b",
	}
	for _, name := range invalid {
		require.Error(t, ValidatePackageName(name), name)
	}

	tooLong := make([]byte, 256)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	tooLong[1] = '.'
	require.Error(t, ValidatePackageName(string(tooLong)))
}

func TestSaveAndServeApk(t *testing.T) {
	s := newTestStore(t)

	data := []byte("fake apk data")
	key, err := s.SaveAPK("com.example.app", 1, data)
	require.NoError(t, err)
	require.Equal(t, "apks/com.example.app/1.apk", key)

	abs := s.AbsApkPath("com.example.app", 1)
	require.FileExists(t, abs)

	read, err := os.ReadFile(abs)
	require.NoError(t, err)
	require.Equal(t, data, read)
}

func TestSaveAndServeIcon(t *testing.T) {
	s := newTestStore(t)

	data := []byte("fake icon data")
	key, err := s.SaveIcon("com.example.app", data)
	require.NoError(t, err)
	require.Equal(t, "icons/com.example.app.png", key)

	abs := s.AbsIconPath("com.example.app")
	require.FileExists(t, abs)
}

func TestDeleteApkCleansUpEmptyDir(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveAPK("com.example.app", 1, []byte("data"))
	require.NoError(t, err)
	_, err = s.SaveAPK("com.example.app", 2, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteAPK("com.example.app", 1))
	require.NoFileExists(t, s.AbsApkPath("com.example.app", 1))
	require.FileExists(t, s.AbsApkPath("com.example.app", 2))

	require.NoError(t, s.DeleteAPK("com.example.app", 2))
	_, err = os.Stat(filepath.Join(s.baseDir, apksDir, "com.example.app"))
	require.True(t, os.IsNotExist(err))
}

func TestDeletePackage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveAPK("com.example.app", 1, []byte("data"))
	require.NoError(t, err)
	_, err = s.SaveAPK("com.example.app", 2, []byte("data"))
	require.NoError(t, err)
	_, err = s.SaveIcon("com.example.app", []byte("icon"))
	require.NoError(t, err)

	require.NoError(t, s.DeletePackage("com.example.app"))

	require.NoFileExists(t, s.AbsApkPath("com.example.app", 1))
	require.NoFileExists(t, s.AbsApkPath("com.example.app", 2))
	require.NoFileExists(t, s.AbsIconPath("com.example.app"))
}

func TestTempDirCleanup(t *testing.T) {
	s := newTestStore(t)

	td, err := s.CreateTempDir(context.Background())
	require.NoError(t, err)
	require.DirExists(t, td.Path())

	require.NoError(t, td.Close())
	require.NoDirExists(t, td.Path())
}

func TestCreateTempDirRespectsCancellation(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateTempDir(ctx)
	require.Error(t, err)
}
