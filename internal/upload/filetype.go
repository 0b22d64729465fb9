package upload

import (
	"archive/zip"
	"bytes"
	"strings"
)

// fileType is the Upload Pipeline's classification of an inbound file,
// decided before any inspection or conversion work begins.
type fileType int

const (
	fileTypeUnknown fileType = iota
	fileTypeAPK
	fileTypeAAB
)

// detectFileType classifies data by its ZIP contents first, falling
// back to the filename's extension only when neither marker entry is
// present — mirroring the original implementation's detect_file_type:
// an AAB carries BundleConfig.pb, an APK carries AndroidManifest.xml at
// its root, and anything that isn't even a ZIP is rejected outright.
func detectFileType(data []byte, filename string) fileType {
	if len(data) < 4 || data[0] != 'P' || data[1] != 'K' {
		return fileTypeUnknown
	}

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fileTypeUnknown
	}

	var hasBundleConfig, hasManifest bool
	for _, f := range r.File {
		switch f.Name {
		case "BundleConfig.pb":
			hasBundleConfig = true
		case "AndroidManifest.xml":
			hasManifest = true
		}
	}

	switch {
	case hasBundleConfig:
		return fileTypeAAB
	case hasManifest:
		return fileTypeAPK
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".apk"):
		return fileTypeAPK
	case strings.HasSuffix(lower, ".aab"):
		return fileTypeAAB
	default:
		return fileTypeUnknown
	}
}
