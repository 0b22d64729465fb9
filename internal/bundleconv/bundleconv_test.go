package bundleconv

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func zipWithEntry(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIsValidBundleRejectsNonZip(t *testing.T) {
	require.False(t, isValidBundle([]byte("not a zip file")))
}

func TestIsValidBundleRejectsPlainZip(t *testing.T) {
	data := zipWithEntry(t, "test.txt", []byte("test content"))
	require.False(t, isValidBundle(data))
}

func TestIsValidBundleAcceptsBundleConfig(t *testing.T) {
	data := zipWithEntry(t, "BundleConfig.pb", []byte("fake bundle config"))
	require.True(t, isValidBundle(data))
}

func TestExtractUniversalApk(t *testing.T) {
	data := zipWithEntry(t, "universal.apk", []byte("fake apk bytes"))
	apk, err := extractUniversalApk(data)
	require.NoError(t, err)
	require.Equal(t, []byte("fake apk bytes"), apk)
}

func TestExtractUniversalApkMissing(t *testing.T) {
	data := zipWithEntry(t, "other.apk", []byte("fake apk bytes"))
	_, err := extractUniversalApk(data)
	require.Error(t, err)
}

func TestNewWithBundletoolAbsentWhenPathMissing(t *testing.T) {
	require.Nil(t, NewWithBundletool(""))
	require.Nil(t, NewWithBundletool("/nonexistent/bundletool.jar"))
}
