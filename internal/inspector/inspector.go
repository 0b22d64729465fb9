// Package inspector wraps an external Android package inspection tool
// (an aapt2-compatible "dump badging" binary), parses its textual
// output into a metadata record, and extracts/normalizes the launcher
// icon.
package inspector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

const iconEdge = 192

// Metadata is the record produced by Inspect.
type Metadata struct {
	PackageName string
	VersionCode int64
	VersionName string
	MinSDK      int64
	AppName     string
	IconData    []byte // normalized 192x192 PNG, nil when no usable icon was found
}

// Inspector invokes the configured tool against an APK path.
type Inspector struct {
	toolPath string
}

// New creates an Inspector with an explicit tool path. An empty path is
// legal: the Inspector still constructs, but every Inspect call fails
// with a domain.CodeInspectionFailed error, matching the "absent tool" behavior the
// component design calls for.
func New(toolPath string) *Inspector {
	return &Inspector{toolPath: toolPath}
}

// AutoDetect probes well-known Android SDK build-tools locations, then
// $ANDROID_HOME/build-tools/<newest>, then PATH, and returns an
// Inspector bound to whatever it finds. If nothing is found it returns
// an Inspector with no tool path configured rather than an error, since
// an inspector without a tool is a valid, if non-functional, value.
func AutoDetect() *Inspector {
	if path := detectTool(); path != "" {
		return New(path)
	}
	return New("")
}

var wellKnownToolPaths = []string{
	"/usr/local/lib/android/sdk/build-tools/34.0.0/aapt2",
	"/usr/local/lib/android/sdk/build-tools/33.0.0/aapt2",
	"/opt/android-sdk/build-tools/34.0.0/aapt2",
	"/opt/android-sdk/build-tools/33.0.0/aapt2",
	"/opt/homebrew/bin/aapt2",
	"/usr/bin/aapt2",
	"/usr/bin/aapt",
}

func detectTool() string {
	for _, p := range wellKnownToolPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if androidHome := os.Getenv("ANDROID_HOME"); androidHome != "" {
		buildTools := filepath.Join(androidHome, "build-tools")
		entries, err := os.ReadDir(buildTools)
		if err == nil {
			versions := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() {
					versions = append(versions, e.Name())
				}
			}
			sort.Sort(sort.Reverse(sort.StringSlice(versions)))
			for _, v := range versions {
				candidate := filepath.Join(buildTools, v, "aapt2")
				if _, err := os.Stat(candidate); err == nil {
					return candidate
				}
			}
		}
	}

	if path, err := exec.LookPath("aapt2"); err == nil {
		return path
	}

	return ""
}

// Available reports whether Inspect has any chance of succeeding.
func (i *Inspector) Available() bool {
	return i.toolPath != ""
}

// Inspect runs the configured tool against apkPath, parses its badging
// output, and attempts to extract and normalize the launcher icon.
// Icon extraction failures are demoted to a nil IconData rather than
// failing the call.
func (i *Inspector) Inspect(ctx context.Context, apkPath string) (*Metadata, error) {
	if !i.Available() {
		return nil, domain.NewAppError(domain.CodeInspectionFailed, "no inspection tool configured")
	}

	cmd := exec.CommandContext(ctx, i.toolPath, "dump", "badging", apkPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, domain.WrapError(domain.CodeInspectionFailed, "inspection tool failed: "+stderr.String(), err)
	}

	parsed, err := parseBadgingOutput(stdout.String())
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		PackageName: parsed.packageName,
		VersionCode: parsed.versionCode,
		VersionName: parsed.versionName,
		MinSDK:      parsed.minSDK,
		AppName:     parsed.appName,
	}

	if parsed.iconPath != "" {
		if data, err := extractIcon(apkPath, parsed.iconPath); err == nil {
			meta.IconData = data
		}
		// Icon extraction failures are non-fatal per the component design.
	}

	return meta, nil
}

// extractIcon opens apkPath as a zip archive, reads the entry at
// iconPath, decodes it as an image, and re-encodes it as a 192x192 PNG.
func extractIcon(apkPath, iconPath string) ([]byte, error) {
	raw, err := readZipEntry(apkPath, iconPath)
	if err != nil {
		return nil, err
	}
	return processIcon(raw)
}

// processIcon decodes data (PNG, JPEG, or WebP) and resizes it to a
// fixed 192x192 PNG using Lanczos3 resampling.
func processIcon(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode icon image: %w", err)
	}

	resized := resize.Resize(iconEdge, iconEdge, img, resize.Lanczos3)

	var out bytes.Buffer
	if err := encodePNG(&out, resized); err != nil {
		return nil, fmt.Errorf("encode icon png: %w", err)
	}
	return out.Bytes(), nil
}

// parsedBadging is the intermediate record extracted from the tool's
// textual output before defaults are applied.
type parsedBadging struct {
	packageName string
	versionCode int64
	versionName string
	minSDK      int64
	appName     string
	iconPath    string
}

// parseBadgingOutput parses "dump badging" output into a metadata
// record, applying the fallback/default rules for version_name, min_sdk,
// and app_name, and rejecting unsafe icon paths.
func parseBadgingOutput(output string) (*parsedBadging, error) {
	var (
		packageName     string
		haveVersionCode bool
		versionCode     int64
		versionName     string
		haveMinSDK      bool
		minSDK          int64
		appName         string
		havePackage     bool
	)

	type iconCandidate struct {
		density int
		path    string
	}
	var icons []iconCandidate

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "package:"):
			if name, ok := extractQuotedValue(line, "name="); ok {
				packageName = name
				havePackage = true
			}
			if code, ok := extractQuotedValue(line, "versionCode="); ok {
				if v, err := strconv.ParseInt(code, 10, 64); err == nil {
					versionCode = v
					haveVersionCode = true
				}
			}
			if name, ok := extractQuotedValue(line, "versionName="); ok {
				versionName = name
			}

		case strings.HasPrefix(line, "sdkVersion:"):
			if sdk, ok := extractQuotedValueColon(line); ok {
				if v, err := strconv.ParseInt(sdk, 10, 64); err == nil {
					minSDK = v
					haveMinSDK = true
				}
			}

		case strings.HasPrefix(line, "application-label:"):
			if label, ok := extractQuotedValueColon(line); ok {
				appName = label
			}

		case strings.HasPrefix(line, "application-icon-"):
			if density, path, ok := parseIconLine(line); ok {
				icons = append(icons, iconCandidate{density, path})
			}
		}
	}

	if !havePackage {
		return nil, domain.NewAppError(domain.CodeInspectionFailed, "missing package name in inspection output")
	}
	if !haveVersionCode {
		return nil, domain.NewAppError(domain.CodeInspectionFailed, "missing version code in inspection output")
	}

	if versionName == "" {
		versionName = strconv.FormatInt(versionCode, 10)
	}
	if !haveMinSDK {
		minSDK = 21
	}
	if appName == "" {
		appName = packageName
	}

	sort.Slice(icons, func(a, b int) bool { return icons[a].density > icons[b].density })

	var iconPath string
	if len(icons) > 0 {
		candidate := icons[0].path
		if !strings.Contains(candidate, "..") && !strings.HasPrefix(candidate, "/") {
			iconPath = candidate
		}
	}

	return &parsedBadging{
		packageName: packageName,
		versionCode: versionCode,
		versionName: versionName,
		minSDK:      minSDK,
		appName:     appName,
		iconPath:    iconPath,
	}, nil
}

// extractQuotedValue extracts the quoted value following "key=" within
// line, accepting both single and double quotes.
func extractQuotedValue(line, key string) (string, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(key):]
	return extractQuoted(rest)
}

// extractQuotedValueColon extracts the quoted value following the first
// colon in line, e.g. sdkVersion:'26'.
func extractQuotedValueColon(line string) (string, bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", false
	}
	return extractQuoted(line[idx+1:])
}

func extractQuoted(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	quote := s[0]
	if quote != '\'' && quote != '"' {
		return "", false
	}
	rest := s[1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// parseIconLine parses "application-icon-<density>:'<path>'".
func parseIconLine(line string) (density int, path string, ok bool) {
	const prefix = "application-icon-"
	if !strings.HasPrefix(line, prefix) {
		return 0, "", false
	}
	colon := strings.Index(line, ":")
	if colon < 0 {
		return 0, "", false
	}
	densityStr := line[len(prefix):colon]
	d, err := strconv.Atoi(densityStr)
	if err != nil {
		return 0, "", false
	}
	p, ok := extractQuoted(line[colon+1:])
	if !ok {
		return 0, "", false
	}
	return d, p, true
}
