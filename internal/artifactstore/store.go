// Package artifactstore owns the on-disk layout for APKs and icons:
// scoped temp directories with guaranteed cleanup, path-traversal-safe
// key validation, SHA-256 hashing, and a byte-range-aware file server.
package artifactstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nullstream-oss/apkvault/internal/domain"
)

const (
	apksDir  = "apks"
	iconsDir = "icons"
	tempDir  = "temp"
)

// Store implements the Artifact Store described in the system's component
// design: one configured root directory with fixed apks/, icons/, and
// temp/ subtrees.
type Store struct {
	baseDir string
}

// NewStore creates the fixed subtree layout under baseDir and returns a
// Store rooted there.
func NewStore(baseDir string) (*Store, error) {
	for _, sub := range []string{apksDir, iconsDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create storage subtree %q: %w", sub, err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// ValidatePackageName enforces the naming policy every boundary that
// builds a filesystem path from a package name must apply first.
func ValidatePackageName(name string) error {
	if len(name) == 0 || len(name) > 255 {
		return domain.NewAppError(domain.CodeInvalidPackageName, "package name must be 1-255 bytes")
	}
	if !strings.Contains(name, ".") {
		return domain.NewAppError(domain.CodeInvalidPackageName, "package name must contain at least one dot")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return domain.NewAppError(domain.CodeInvalidPackageName, "package name contains disallowed characters")
	}
	return nil
}

// TempDir is a scoped handle over a temp/<uuid> directory. Calling
// Close removes the directory and everything in it; it is safe to call
// multiple times and is intended to be deferred immediately after
// creation so it fires on every exit path, including cancellation.
type TempDir struct {
	path string
}

// Path returns the absolute path of the temp directory.
func (t *TempDir) Path() string {
	return t.path
}

// Close recursively removes the temp directory.
func (t *TempDir) Close() error {
	return os.RemoveAll(t.path)
}

// CreateTempDir allocates a fresh subdirectory under temp/ named with a
// v4 UUID, guaranteeing no collision across concurrent uploads.
func (s *Store) CreateTempDir(ctx context.Context) (*TempDir, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := uuid.NewString()
	path := filepath.Join(s.baseDir, tempDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "failed to create temp directory", err)
	}
	return &TempDir{path: path}, nil
}

// apkRelPath returns the key under the store root for a given version.
func apkRelPath(packageName string, versionCode int64) string {
	return filepath.Join(apksDir, packageName, fmt.Sprintf("%d.apk", versionCode))
}

// iconRelPath returns the key under the store root for a package's icon.
func iconRelPath(packageName string) string {
	return filepath.Join(iconsDir, fmt.Sprintf("%s.png", packageName))
}

// SaveAPK writes bytes to the canonical path for (package, version_code),
// creating parent directories, and returns the relative key.
func (s *Store) SaveAPK(packageName string, versionCode int64, data []byte) (string, error) {
	if err := ValidatePackageName(packageName); err != nil {
		return "", err
	}
	rel := apkRelPath(packageName, versionCode)
	abs := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to create apk directory", err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to write apk", err)
	}
	return filepath.ToSlash(rel), nil
}

// SaveIcon writes png_bytes to the canonical icon path and returns the
// relative key.
func (s *Store) SaveIcon(packageName string, data []byte) (string, error) {
	if err := ValidatePackageName(packageName); err != nil {
		return "", err
	}
	rel := iconRelPath(packageName)
	abs := filepath.Join(s.baseDir, rel)
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to write icon", err)
	}
	return filepath.ToSlash(rel), nil
}

// DeleteAPK validates packageName, removes the APK file if present, and
// removes its containing package directory if that directory becomes
// empty.
func (s *Store) DeleteAPK(packageName string, versionCode int64) error {
	if err := ValidatePackageName(packageName); err != nil {
		return err
	}
	abs := s.AbsApkPath(packageName, versionCode)
	if err := removeIfExists(abs); err != nil {
		return domain.WrapError(domain.CodeInternal, "failed to delete apk", err)
	}

	dir := filepath.Join(s.baseDir, apksDir, packageName)
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
	return nil
}

// DeleteIcon removes the icon file if present.
func (s *Store) DeleteIcon(packageName string) error {
	if err := ValidatePackageName(packageName); err != nil {
		return err
	}
	if err := removeIfExists(s.AbsIconPath(packageName)); err != nil {
		return domain.WrapError(domain.CodeInternal, "failed to delete icon", err)
	}
	return nil
}

// DeletePackage recursively removes the APK directory for the package and
// its icon. Safe to call when parts are already absent.
func (s *Store) DeletePackage(packageName string) error {
	if err := ValidatePackageName(packageName); err != nil {
		return err
	}
	dir := filepath.Join(s.baseDir, apksDir, packageName)
	if err := os.RemoveAll(dir); err != nil {
		return domain.WrapError(domain.CodeInternal, "failed to delete package apks", err)
	}
	return s.DeleteIcon(packageName)
}

// AbsApkPath returns the absolute path used to serve an APK file.
func (s *Store) AbsApkPath(packageName string, versionCode int64) string {
	return filepath.Join(s.baseDir, apkRelPath(packageName, versionCode))
}

// AbsIconPath returns the absolute path used to serve an icon file.
func (s *Store) AbsIconPath(packageName string) string {
	return filepath.Join(s.baseDir, iconRelPath(packageName))
}

// ApksRoot returns the absolute path of the apks/ subtree, used by the
// startup orphan sweep to walk stored artifacts.
func (s *Store) ApksRoot() string {
	return filepath.Join(s.baseDir, apksDir)
}

// Sha256 computes the lowercase hex SHA-256 digest of data.
func Sha256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha256Reader computes a SHA-256 digest while copying src to dst, so a
// caller can hash and persist in one pass. The upload pipeline hashes its
// in-memory bytes with Sha256 instead.
func Sha256Reader(dst io.Writer, src io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, h), src); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
