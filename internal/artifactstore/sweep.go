package artifactstore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// VersionExistsFunc reports whether a (package_name, version_code) pair
// has a row in the Catalog Store. Satisfied by *catalog.Queries.VersionExists.
type VersionExistsFunc func(ctx context.Context, packageName string, versionCode int64) (bool, error)

// sweepConcurrency bounds how many catalog lookups the orphan sweep runs
// at once, so a large apks/ tree doesn't open hundreds of connections at
// startup against a database sized for a handful.
const sweepConcurrency = 4

// SweepOrphans walks apks/*/*.apk and removes any file whose
// (package_name, version_code) has no matching Catalog Store row. It never
// creates catalog rows from files found on disk; absence from the catalog
// is the only signal it acts on. Intended as an optional startup pass
// after a prior run crashed between writing a file and committing its
// catalog row.
func (s *Store) SweepOrphans(ctx context.Context, exists VersionExistsFunc) (int, error) {
	root := s.ApksRoot()

	packageDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var removed int
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, dirEntry := range packageDirs {
		if !dirEntry.IsDir() {
			continue
		}
		packageName := dirEntry.Name()
		packageDir := filepath.Join(root, packageName)

		files, err := os.ReadDir(packageDir)
		if err != nil {
			continue
		}

		for _, f := range files {
			f := f
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".apk") {
				continue
			}
			versionCode, err := strconv.ParseInt(strings.TrimSuffix(f.Name(), ".apk"), 10, 64)
			if err != nil {
				continue
			}

			g.Go(func() error {
				found, err := exists(ctx, packageName, versionCode)
				if err != nil {
					return err
				}
				if found {
					return nil
				}
				if err := os.Remove(filepath.Join(packageDir, f.Name())); err != nil && !os.IsNotExist(err) {
					return err
				}
				mu.Lock()
				removed++
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return removed, err
	}
	return removed, nil
}
