package inspector

import (
	"archive/zip"
	"fmt"
	"image"
	"image/png"
	"io"
)

// readZipEntry opens apkPath as a zip archive and returns the raw bytes
// of the named entry.
func readZipEntry(apkPath, name string) ([]byte, error) {
	r, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, fmt.Errorf("open apk as zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open icon entry %q: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	return nil, fmt.Errorf("icon entry %q not found in apk", name)
}

func encodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
