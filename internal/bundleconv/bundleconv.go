// Package bundleconv converts an Android App Bundle (AAB) into a
// universal APK by shelling out to bundletool via a JVM launcher. It is
// an optional collaborator: when no bundletool/java path is configured,
// no Converter value exists at all, and callers must check for that
// absence explicitly.
package bundleconv

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

// Converter invokes bundletool through a JVM to produce a universal APK.
type Converter struct {
	bundletoolPath string
	javaPath       string
}

// New builds a Converter from explicit paths.
func New(bundletoolPath, javaPath string) *Converter {
	return &Converter{bundletoolPath: bundletoolPath, javaPath: javaPath}
}

// DetectJava probes JAVA_HOME, a handful of well-known install
// locations, then PATH.
func DetectJava() string {
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		candidate := filepath.Join(javaHome, "bin", "java")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	for _, p := range []string{"/usr/bin/java", "/usr/local/bin/java", "/opt/java/bin/java", "/opt/homebrew/bin/java"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if path, err := exec.LookPath("java"); err == nil {
		return path
	}

	return ""
}

// NewWithBundletool builds a Converter with auto-detected Java and an explicit
// bundletool path, or returns nil when either half of the pair is
// unavailable — the caller's contract for an absent Bundle Converter.
func NewWithBundletool(bundletoolPath string) *Converter {
	if bundletoolPath == "" {
		return nil
	}
	if _, err := os.Stat(bundletoolPath); err != nil {
		return nil
	}
	javaPath := DetectJava()
	if javaPath == "" {
		return nil
	}
	return New(bundletoolPath, javaPath)
}

// IsAvailable reports whether both configured paths exist on disk.
func (c *Converter) IsAvailable() bool {
	if c == nil {
		return false
	}
	_, bundletoolErr := os.Stat(c.bundletoolPath)
	_, javaErr := os.Stat(c.javaPath)
	return bundletoolErr == nil && javaErr == nil
}

// Convert validates aabPath as a bundle, invokes bundletool to produce a
// universal APK, extracts it from the resulting container, and returns
// its path inside outputDir (normally the caller's scoped temp
// directory). The intermediate .apks container is removed on both the
// success and failure paths.
func (c *Converter) Convert(ctx context.Context, aabPath, outputDir string) (string, error) {
	data, err := os.ReadFile(aabPath)
	if err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to read aab", err)
	}
	if !isValidBundle(data) {
		return "", domain.NewAppError(domain.CodeInvalidBundle, "not a valid Android app bundle")
	}

	apksPath := filepath.Join(outputDir, "output.apks")
	apkPath := filepath.Join(outputDir, "universal.apk")

	cmd := exec.CommandContext(ctx, c.javaPath,
		"-jar", c.bundletoolPath,
		"build-apks",
		fmt.Sprintf("--bundle=%s", aabPath),
		fmt.Sprintf("--output=%s", apksPath),
		"--mode=universal",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	defer os.Remove(apksPath)

	if runErr != nil {
		return "", domain.WrapError(domain.CodeConversionFailed, "bundletool failed: "+stderr.String(), runErr)
	}

	apksData, err := os.ReadFile(apksPath)
	if err != nil {
		return "", domain.WrapError(domain.CodeConversionFailed, "failed to read bundletool output", err)
	}

	apkData, err := extractUniversalApk(apksData)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(apkPath, apkData, 0644); err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to write universal apk", err)
	}

	return apkPath, nil
}

// isValidBundle checks for the presence of BundleConfig.pb, the marker
// the component design uses to distinguish an AAB from a plain ZIP.
func isValidBundle(data []byte) bool {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range r.File {
		if f.Name == "BundleConfig.pb" {
			return true
		}
	}
	return false
}

// extractUniversalApk locates and reads universal.apk out of a
// bundletool .apks container.
func extractUniversalApk(apksData []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(apksData), int64(len(apksData)))
	if err != nil {
		return nil, domain.WrapError(domain.CodeConversionFailed, "invalid .apks container", err)
	}

	for _, f := range r.File {
		if f.Name != "universal.apk" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, domain.WrapError(domain.CodeConversionFailed, "failed to open universal.apk", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, domain.WrapError(domain.CodeConversionFailed, "failed to read universal.apk", err)
		}
		return data, nil
	}

	return nil, domain.NewAppError(domain.CodeConversionFailed, "universal.apk not found in .apks container")
}
