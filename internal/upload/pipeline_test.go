package upload_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nullstream-oss/apkvault/internal/artifactstore"
	"github.com/nullstream-oss/apkvault/internal/db"
	"github.com/nullstream-oss/apkvault/internal/domain"
	"github.com/nullstream-oss/apkvault/internal/inspector"
	"github.com/nullstream-oss/apkvault/internal/upload"
)

// fakeAapt2 writes a minimal "dump badging"-compatible shell script and
// returns its path, so the Package Inspector can run against it without
// needing a real Android SDK on the test machine.
func fakeAapt2(t *testing.T, packageName string, versionCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aapt2")
	script := "#!/bin/sh\n" +
		"echo \"package: name='" + packageName + "' versionCode='" + strconv.Itoa(versionCode) + "' versionName='1.0'\"\n" +
		"echo \"sdkVersion:'21'\"\n" +
		"echo \"application-label:'Test App'\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

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

func newTestPipeline(t *testing.T, toolPath string) *upload.Pipeline {
	t.Helper()
	storeDir := t.TempDir()
	store, err := artifactstore.NewStore(storeDir)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))

	txManager := db.NewTxManager(sqlDB)
	insp := inspector.New(toolPath)

	return upload.New(store, insp, nil, txManager, 512*1024*1024, nil)
}

func fakeApkBytes(t *testing.T) []byte {
	t.Helper()
	return zipWith(t, "AndroidManifest.xml", []byte("fake manifest"))
}

func TestProcessNewPackage(t *testing.T) {
	tool := fakeAapt2(t, "com.example.testapp", 1)
	p := newTestPipeline(t, tool)

	result, err := p.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.NoError(t, err)
	require.Equal(t, "com.example.testapp", result.PackageName)
	require.Equal(t, int64(1), result.VersionCode)
	require.True(t, result.IsNewPackage)
}

func TestProcessAabWithoutConverterFails(t *testing.T) {
	tool := fakeAapt2(t, "com.example.testapp", 1)
	p := newTestPipeline(t, tool)

	data := zipWith(t, "BundleConfig.pb", []byte("fake bundle config"))
	_, err := p.Process(context.Background(), upload.Input{
		Filename: "app.aab",
		Data:     data,
	})
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, domain.CodeAabNotSupported, appErr.Code)
}

func TestProcessRejectsUnknownFileType(t *testing.T) {
	tool := fakeAapt2(t, "com.example.testapp", 1)
	p := newTestPipeline(t, tool)

	_, err := p.Process(context.Background(), upload.Input{
		Filename: "notes.txt",
		Data:     []byte("just some text"),
	})
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, domain.CodeInvalidFileType, appErr.Code)
}

func TestProcessRejectsOversizedUpload(t *testing.T) {
	tool := fakeAapt2(t, "com.example.testapp", 1)
	storeDir := t.TempDir()
	store, err := artifactstore.NewStore(storeDir)
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	insp := inspector.New(tool)
	p := upload.New(store, insp, nil, db.NewTxManager(sqlDB), 4, nil)

	_, err = p.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, domain.CodeFileTooLarge, appErr.Code)
}

func TestProcessRejectsDuplicateVersion(t *testing.T) {
	tool := fakeAapt2(t, "com.example.dup", 4)
	p := newTestPipeline(t, tool)

	_, err := p.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, domain.CodeVersionExists, appErr.Code)
}

func TestProcessAcceptsSecondVersionOfExistingPackage(t *testing.T) {
	storeDir := t.TempDir()
	store, err := artifactstore.NewStore(storeDir)
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	txManager := db.NewTxManager(sqlDB)

	tool := fakeAapt2(t, "com.example.twoversions", 1)
	p := upload.New(store, inspector.New(tool), nil, txManager, 512*1024*1024, nil)
	result, err := p.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.NoError(t, err)
	require.True(t, result.IsNewPackage)

	tool2 := fakeAapt2(t, "com.example.twoversions", 2)
	p2 := upload.New(store, inspector.New(tool2), nil, txManager, 512*1024*1024, nil)
	result2, err := p2.Process(context.Background(), upload.Input{
		Filename: "app.apk",
		Data:     fakeApkBytes(t),
	})
	require.NoError(t, err)
	require.False(t, result2.IsNewPackage)
	require.Equal(t, int64(2), result2.VersionCode)
}

// TestProcessConcurrentDuplicateUploadsOneWinsAndKeepsFile stresses the
// same (package, version_code) with concurrent uploads, per the
// component's concurrency model. Exactly one must succeed; every loser
// must see CodeVersionExists rather than a generic database error, and
// the winner's APK file must survive every loser's compensating delete —
// losers share the same apk_key with the winner, so compensation must
// not remove a file the winner committed.
func TestProcessConcurrentDuplicateUploadsOneWinsAndKeepsFile(t *testing.T) {
	const packageName = "com.example.race"
	const versionCode = 9

	storeDir := t.TempDir()
	store, err := artifactstore.NewStore(storeDir)
	require.NoError(t, err)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	txManager := db.NewTxManager(sqlDB)

	tool := fakeAapt2(t, packageName, versionCode)
	data := fakeApkBytes(t)

	const attempts = 6
	results := make([]error, attempts)

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		p := upload.New(store, inspector.New(tool), nil, txManager, 512*1024*1024, nil)
		go func(i int, p *upload.Pipeline) {
			defer wg.Done()
			<-start
			_, err := p.Process(context.Background(), upload.Input{
				Filename: "app.apk",
				Data:     data,
			})
			results[i] = err
		}(i, p)
	}
	close(start)
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, domain.CodeVersionExists, appErr.Code)
		conflicted++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, attempts-1, conflicted)

	_, statErr := os.Stat(store.AbsApkPath(packageName, versionCode))
	require.NoError(t, statErr, "the winning upload's apk file must still exist")
}
