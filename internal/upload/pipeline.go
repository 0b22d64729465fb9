// Package upload implements the Upload Pipeline: the orchestration that
// turns an inbound APK/AAB byte stream into a persisted Package/Version
// pair, coordinating the Package Inspector, the optional Bundle
// Converter, the Artifact Store, and the Catalog Store.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nullstream-oss/apkvault/internal/artifactstore"
	"github.com/nullstream-oss/apkvault/internal/bundleconv"
	"github.com/nullstream-oss/apkvault/internal/catalog"
	"github.com/nullstream-oss/apkvault/internal/db"
	"github.com/nullstream-oss/apkvault/internal/domain"
	"github.com/nullstream-oss/apkvault/internal/inspector"
)

// Input is one upload request. OverrideDisplayName/OverrideDescription
// let an admin caller supply values that take precedence over whatever
// the Package Inspector read out of the artifact.
type Input struct {
	Filename            string
	Data                []byte
	OverrideDisplayName *string
	OverrideDescription *string
}

// Pipeline runs process_upload: the twelve-step sequence described by
// the component design, including the AAB-to-APK conversion detour and
// the compensating deletes required when the final transaction fails
// after artifacts have already been written to disk.
type Pipeline struct {
	store              *artifactstore.Store
	inspector          *inspector.Inspector
	converter          *bundleconv.Converter // nil when no Bundle Converter is configured
	tx                 *db.TxManager
	maxUploadSizeBytes int64
	log                *slog.Logger
}

// New builds a Pipeline. converter may be nil; every AAB upload then
// fails with a domain.CodeAabNotSupported error instead of panicking.
func New(store *artifactstore.Store, insp *inspector.Inspector, converter *bundleconv.Converter, tx *db.TxManager, maxUploadSizeBytes int64, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:              store,
		inspector:          insp,
		converter:          converter,
		tx:                 tx,
		maxUploadSizeBytes: maxUploadSizeBytes,
		log:                log,
	}
}

// Process runs the full upload pipeline and returns the resulting
// Package/Version identity, or a domain error classifying the failure.
func (p *Pipeline) Process(ctx context.Context, in Input) (*domain.UploadResult, error) {
	// 1. Validate file size.
	size := int64(len(in.Data))
	if size > p.maxUploadSizeBytes {
		return nil, domain.NewAppError(domain.CodeFileTooLarge,
			"file too large (max "+humanize.Bytes(uint64(p.maxUploadSizeBytes))+", got "+humanize.Bytes(uint64(size))+")")
	}

	// 2. Detect file type.
	kind := detectFileType(in.Data, in.Filename)
	if kind == fileTypeUnknown {
		return nil, domain.NewAppError(domain.CodeInvalidFileType, "expected an APK or AAB file")
	}

	// 3. Create a scoped temp directory; every exit path cleans it up.
	temp, err := p.store.CreateTempDir(ctx)
	if err != nil {
		return nil, err
	}
	defer temp.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Resolve to APK bytes, converting an AAB first if needed.
	apkData, err := p.resolveApkData(ctx, in.Data, kind, temp.Path())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Write the APK to the temp dir so the inspector can run against
	// a real file path (subprocess tools need one).
	tempApkPath := filepath.Join(temp.Path(), "app.apk")
	if err := os.WriteFile(tempApkPath, apkData, 0644); err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "failed to stage apk for inspection", err)
	}

	// 6. Parse APK metadata.
	meta, err := p.inspector.Inspect(ctx, tempApkPath)
	if err != nil {
		return nil, err
	}

	if err := artifactstore.ValidatePackageName(meta.PackageName); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := p.tx.Queries()

	// 7. Check for an existing version.
	exists, err := q.VersionExists(ctx, meta.PackageName, meta.VersionCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewAppError(domain.CodeVersionExists,
			"version already exists for "+meta.PackageName)
	}

	// 8. Calculate SHA-256.
	sha256 := artifactstore.Sha256(apkData)

	// 9. Check whether this package already exists.
	_, err = q.GetPackage(ctx, meta.PackageName)
	isNewPackage := false
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		isNewPackage = true
	}

	p.log.Debug("upload pipeline: persisting artifact",
		slog.String("package_name", meta.PackageName),
		slog.Int64("version_code", meta.VersionCode),
		slog.String("size", humanize.Bytes(uint64(len(apkData)))),
		slog.Bool("is_new_package", isNewPackage))

	// 10. Save the APK file.
	apkKey, err := p.store.SaveAPK(meta.PackageName, meta.VersionCode, apkData)
	if err != nil {
		return nil, err
	}

	// 11. Save the icon if the inspector found a usable one.
	var iconKey string
	if len(meta.IconData) > 0 {
		iconKey, err = p.store.SaveIcon(meta.PackageName, meta.IconData)
		if err != nil {
			_ = p.store.DeleteAPK(meta.PackageName, meta.VersionCode)
			return nil, err
		}
	}

	// 12. Persist to the Catalog Store inside one transaction; on
	// failure, compensate by deleting whatever was just written to disk
	// (the icon only if this was a brand new package, per the
	// component's documented compensation rule).
	displayName := meta.AppName
	if in.OverrideDisplayName != nil {
		displayName = *in.OverrideDisplayName
	}

	now := p.now()
	txErr := p.tx.WithTx(ctx, func(tq *catalog.Queries) error {
		if isNewPackage {
			pkg := domain.Package{
				PackageName: meta.PackageName,
				DisplayName: displayName,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if in.OverrideDescription != nil {
				pkg.Description = in.OverrideDescription
			}
			if iconKey != "" {
				pkg.IconKey = &iconKey
			}
			if err := tq.InsertPackage(ctx, pkg); err != nil {
				// A concurrent upload of the same version may have created
				// the package after the step-9 lookup; report that as the
				// version conflict it is rather than a database error.
				exists, existsErr := tq.VersionExists(ctx, meta.PackageName, meta.VersionCode)
				if existsErr == nil && exists {
					return domain.NewAppError(domain.CodeVersionExists,
						"version already exists for "+meta.PackageName)
				}
				return err
			}
		} else {
			update := domain.UpdatePackageInput{}
			if iconKey != "" {
				update.IconKey = &iconKey
			}
			if in.OverrideDisplayName != nil {
				update.DisplayName = in.OverrideDisplayName
			}
			if in.OverrideDescription != nil {
				update.Description = in.OverrideDescription
			}
			if update.HasUpdates() {
				if err := tq.UpdatePackage(ctx, meta.PackageName, update, now); err != nil {
					return err
				}
			}
		}

		return tq.InsertVersion(ctx, domain.Version{
			PackageName: meta.PackageName,
			VersionCode: meta.VersionCode,
			VersionName: meta.VersionName,
			ApkKey:      apkKey,
			SizeBytes:   int64(len(apkData)),
			SHA256:      sha256,
			MinSDK:      meta.MinSDK,
			UploadedAt:  now,
		})
	})

	if txErr != nil {
		if shouldCompensateApk(txErr) {
			_ = p.store.DeleteAPK(meta.PackageName, meta.VersionCode)
		}
		if isNewPackage && iconKey != "" {
			_ = p.store.DeleteIcon(meta.PackageName)
		}
		return nil, txErr
	}

	return &domain.UploadResult{
		PackageName:  meta.PackageName,
		VersionCode:  meta.VersionCode,
		VersionName:  meta.VersionName,
		DisplayName:  displayName,
		IsNewPackage: isNewPackage,
	}, nil
}

// resolveApkData returns APK bytes regardless of the inbound file's
// kind, converting an AAB through the Bundle Converter when one is
// present.
func (p *Pipeline) resolveApkData(ctx context.Context, data []byte, kind fileType, tempDirPath string) ([]byte, error) {
	if kind == fileTypeAPK {
		return data, nil
	}

	if p.converter == nil {
		return nil, domain.NewAppError(domain.CodeAabNotSupported,
			"bundletool not configured; set BUNDLETOOL_PATH and ensure Java is available")
	}

	aabPath := filepath.Join(tempDirPath, "input.aab")
	if err := os.WriteFile(aabPath, data, 0644); err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "failed to stage aab for conversion", err)
	}

	apkPath, err := p.converter.Convert(ctx, aabPath, tempDirPath)
	if err != nil {
		return nil, err
	}

	apkData, err := os.ReadFile(apkPath)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "failed to read converted apk", err)
	}
	return apkData, nil
}

func (p *Pipeline) now() time.Time {
	return time.Now().UTC()
}

// shouldCompensateApk reports whether a failed write transaction should
// delete the APK file Process just saved to disk. A concurrent upload of
// the same (package, version_code) can win this exact race: both sides
// pass the step-7 VersionExists check, both save to the same apk_key, and
// only one InsertVersion commits. The loser must not delete that file —
// it's the winner's committed artifact, not an orphan from this attempt —
// so CodeVersionExists is the one failure that skips compensation.
func shouldCompensateApk(txErr error) bool {
	return domain.GetErrorCode(txErr) != domain.CodeVersionExists
}
