package upload

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func zipWith(t *testing.T, name string, content []byte) []byte {
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

func TestDetectFileTypeApk(t *testing.T) {
	data := zipWith(t, "AndroidManifest.xml", []byte("fake manifest"))
	require.Equal(t, fileTypeAPK, detectFileType(data, "app.apk"))
	require.Equal(t, fileTypeAPK, detectFileType(data, "app.zip"))
}

func TestDetectFileTypeAab(t *testing.T) {
	data := zipWith(t, "BundleConfig.pb", []byte("fake bundle config"))
	require.Equal(t, fileTypeAAB, detectFileType(data, "app.aab"))
	require.Equal(t, fileTypeAAB, detectFileType(data, "app.zip"))
}

func TestDetectFileTypeUnknown(t *testing.T) {
	require.Equal(t, fileTypeUnknown, detectFileType([]byte("not a zip"), "test.txt"))
	require.Equal(t, fileTypeUnknown, detectFileType([]byte(""), "empty"))
}

func TestDetectFileTypeByExtensionFallback(t *testing.T) {
	data := zipWith(t, "random.txt", []byte("random content"))
	require.Equal(t, fileTypeAPK, detectFileType(data, "app.apk"))
	require.Equal(t, fileTypeAAB, detectFileType(data, "app.aab"))
	require.Equal(t, fileTypeUnknown, detectFileType(data, "app.zip"))
}
