package metrics

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CatalogCounter reports the current size of the catalog. Satisfied by
// *catalog.Queries.
type CatalogCounter interface {
	CountPackages(ctx context.Context) (int64, error)
	CountAllVersions(ctx context.Context) (int64, error)
}

// Updater periodically refreshes the catalog-size and storage-footprint
// gauges. Counters computed from a full directory walk or a row count
// are too expensive to do per-request, so they're sampled on a timer
// instead.
type Updater struct {
	catalog     CatalogCounter
	storagePath string
	dbPath      string
	interval    time.Duration
	log         *slog.Logger
}

// NewUpdater builds an Updater. interval defaults to one minute when zero.
func NewUpdater(catalog CatalogCounter, storagePath, dbPath string, interval time.Duration, log *slog.Logger) *Updater {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Updater{catalog: catalog, storagePath: storagePath, dbPath: dbPath, interval: interval, log: log}
}

// Run blocks, refreshing metrics on every tick, until ctx is canceled.
func (u *Updater) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tick(ctx)
		}
	}
}

func (u *Updater) tick(ctx context.Context) {
	u.updateStorage()

	apps, err := u.catalog.CountPackages(ctx)
	if err != nil {
		u.log.Warn("metrics: failed to count packages", slog.Any("error", err))
		return
	}
	versions, err := u.catalog.CountAllVersions(ctx)
	if err != nil {
		u.log.Warn("metrics: failed to count versions", slog.Any("error", err))
		return
	}
	appsTotal.Set(float64(apps))
	appVersionsTotal.Set(float64(versions))
}

func (u *Updater) updateStorage() {
	var total int64

	if apks, err := dirSize(filepath.Join(u.storagePath, "apks")); err == nil {
		storageBytes.WithLabelValues("apkvault", "/apks").Set(float64(apks))
		total += apks
	}
	if icons, err := dirSize(filepath.Join(u.storagePath, "icons")); err == nil {
		storageBytes.WithLabelValues("apkvault", "/icons").Set(float64(icons))
		total += icons
	}
	if info, err := os.Stat(u.dbPath); err == nil {
		storageBytes.WithLabelValues("apkvault", "/db").Set(float64(info.Size()))
		total += info.Size()
	}

	storageBytes.WithLabelValues("apkvault", "/").Set(float64(total))
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
