package inspector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractQuotedValue(t *testing.T) {
	line := "package: name='com.example.app' versionCode='10' versionName='1.0.0'"

	v, ok := extractQuotedValue(line, "name=")
	require.True(t, ok)
	require.Equal(t, "com.example.app", v)

	v, ok = extractQuotedValue(line, "versionCode=")
	require.True(t, ok)
	require.Equal(t, "10", v)

	v, ok = extractQuotedValue(line, "versionName=")
	require.True(t, ok)
	require.Equal(t, "1.0.0", v)

	_, ok = extractQuotedValue(line, "missing=")
	require.False(t, ok)
}

func TestExtractQuotedValueColon(t *testing.T) {
	v, ok := extractQuotedValueColon("sdkVersion:'26'")
	require.True(t, ok)
	require.Equal(t, "26", v)

	v, ok = extractQuotedValueColon("application-label:'My App'")
	require.True(t, ok)
	require.Equal(t, "My App", v)

	v, ok = extractQuotedValueColon(`application-label:"My App"`)
	require.True(t, ok)
	require.Equal(t, "My App", v)
}

func TestParseIconLine(t *testing.T) {
	density, path, ok := parseIconLine("application-icon-640:'res/mipmap-xxxhdpi-v4/ic_launcher.png'")
	require.True(t, ok)
	require.Equal(t, 640, density)
	require.Equal(t, "res/mipmap-xxxhdpi-v4/ic_launcher.png", path)

	density, path, ok = parseIconLine("application-icon-160:'res/mipmap-mdpi/ic_launcher.png'")
	require.True(t, ok)
	require.Equal(t, 160, density)
	require.Equal(t, "res/mipmap-mdpi/ic_launcher.png", path)
}

func TestParseBadgingOutput(t *testing.T) {
	output := "package: name='com.example.myapp' versionCode='42' versionName='2.1.0' compileSdkVersion='34'\n" +
		"sdkVersion:'26'\n" +
		"targetSdkVersion:'34'\n" +
		"application-label:'My Awesome App'\n" +
		"application-icon-160:'res/mipmap-mdpi-v4/ic_launcher.png'\n" +
		"application-icon-240:'res/mipmap-hdpi-v4/ic_launcher.png'\n" +
		"application-icon-320:'res/mipmap-xhdpi-v4/ic_launcher.png'\n" +
		"application-icon-480:'res/mipmap-xxhdpi-v4/ic_launcher.png'\n" +
		"application-icon-640:'res/mipmap-xxxhdpi-v4/ic_launcher.png'\n"

	parsed, err := parseBadgingOutput(output)
	require.NoError(t, err)

	require.Equal(t, "com.example.myapp", parsed.packageName)
	require.Equal(t, int64(42), parsed.versionCode)
	require.Equal(t, "2.1.0", parsed.versionName)
	require.Equal(t, int64(26), parsed.minSDK)
	require.Equal(t, "My Awesome App", parsed.appName)
	require.Equal(t, "res/mipmap-xxxhdpi-v4/ic_launcher.png", parsed.iconPath)
}

func TestParseBadgingOutputMinimal(t *testing.T) {
	output := "package: name='com.test' versionCode='1'\n"

	parsed, err := parseBadgingOutput(output)
	require.NoError(t, err)

	require.Equal(t, "com.test", parsed.packageName)
	require.Equal(t, int64(1), parsed.versionCode)
	require.Equal(t, "1", parsed.versionName)
	require.Equal(t, int64(21), parsed.minSDK)
	require.Equal(t, "com.test", parsed.appName)
	require.Empty(t, parsed.iconPath)
}

func TestParseBadgingOutputMissingPackage(t *testing.T) {
	_, err := parseBadgingOutput("sdkVersion:'26'\n")
	require.Error(t, err)
}

func TestParseBadgingOutputRejectsTraversalIconPath(t *testing.T) {
	output := "package: name='com.test' versionCode='1'\n" +
		"application-icon-640:'../../../etc/passwd'\n"

	parsed, err := parseBadgingOutput(output)
	require.NoError(t, err)
	require.Empty(t, parsed.iconPath)
}

func TestParseBadgingOutputRejectsAbsoluteIconPath(t *testing.T) {
	output := "package: name='com.test' versionCode='1'\n" +
		"application-icon-640:'/etc/passwd'\n"

	parsed, err := parseBadgingOutput(output)
	require.NoError(t, err)
	require.Empty(t, parsed.iconPath)
}

func TestAvailableFalseWhenNoToolConfigured(t *testing.T) {
	i := New("")
	require.False(t, i.Available())
}
