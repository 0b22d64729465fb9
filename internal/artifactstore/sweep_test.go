package artifactstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOrphansRemovesUnreferencedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveAPK("com.example.kept", 1, []byte("kept"))
	require.NoError(t, err)
	_, err = s.SaveAPK("com.example.orphan", 1, []byte("orphan"))
	require.NoError(t, err)

	exists := func(_ context.Context, packageName string, versionCode int64) (bool, error) {
		return packageName == "com.example.kept" && versionCode == 1, nil
	}

	removed, err := s.SweepOrphans(ctx, exists)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(s.AbsApkPath("com.example.kept", 1))
	assert.NoError(t, err)

	_, err = os.Stat(s.AbsApkPath("com.example.orphan", 1))
	assert.True(t, os.IsNotExist(err))
}

func TestSweepOrphansNoApksRootIsNoop(t *testing.T) {
	s := newTestStore(t)
	os.RemoveAll(s.ApksRoot())

	removed, err := s.SweepOrphans(context.Background(), func(context.Context, string, int64) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestSweepOrphansPropagatesLookupError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveAPK("com.example.kept", 1, []byte("kept"))
	require.NoError(t, err)

	boom := assert.AnError
	_, err = s.SweepOrphans(context.Background(), func(context.Context, string, int64) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}
