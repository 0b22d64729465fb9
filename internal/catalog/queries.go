// Package catalog is the Catalog Store: the single source of truth for
// Package and Version rows. It knows nothing about files on disk or HTTP;
// internal/db supplies the *sql.DB/*sql.Tx it runs against.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting Queries serve
// plain reads and transactional writes through the same method set.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries is the Catalog Store's data-access handle.
type Queries struct {
	db dbtx
}

// New builds a Queries bound to db, which may be a *sql.DB for read paths
// or a *sql.Tx for the transactional write path driven by internal/db's
// transaction manager.
func New(db dbtx) *Queries {
	return &Queries{db: db}
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// GetPackage fetches a single package by name. Returns domain.ErrNotFound
// when no such row exists.
func (q *Queries) GetPackage(ctx context.Context, packageName string) (*domain.Package, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT package_name, display_name, description, icon_key, created_at, updated_at
		FROM packages WHERE package_name = ?`, packageName)
	return scanPackage(row)
}

// ListPackagesOrderedByDisplayName returns every package, ordered by
// display_name for stable catalog listing.
func (q *Queries) ListPackagesOrderedByDisplayName(ctx context.Context) ([]domain.Package, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT package_name, display_name, description, icon_key, created_at, updated_at
		FROM packages ORDER BY display_name ASC`)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to list packages", err)
	}
	defer rows.Close()

	var out []domain.Package
	for rows.Next() {
		pkg, err := scanPackageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to list packages", err)
	}
	return out, nil
}

// GetVersions returns every version of packageName, ordered by
// version_code descending (newest first).
func (q *Queries) GetVersions(ctx context.Context, packageName string) ([]domain.Version, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT package_name, version_code, version_name, apk_key, size_bytes, sha256, min_sdk, uploaded_at
		FROM versions WHERE package_name = ? ORDER BY version_code DESC`, packageName)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to list versions", err)
	}
	defer rows.Close()

	var out []domain.Version
	for rows.Next() {
		v, err := scanVersionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to list versions", err)
	}
	return out, nil
}

// GetLatestVersion returns the highest version_code row for packageName.
// Returns domain.ErrNotFound when the package has no versions.
func (q *Queries) GetLatestVersion(ctx context.Context, packageName string) (*domain.Version, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT package_name, version_code, version_name, apk_key, size_bytes, sha256, min_sdk, uploaded_at
		FROM versions WHERE package_name = ? ORDER BY version_code DESC LIMIT 1`, packageName)
	return scanVersion(row)
}

// GetVersion fetches one (package_name, version_code) row. Returns
// domain.ErrNotFound when it doesn't exist.
func (q *Queries) GetVersion(ctx context.Context, packageName string, versionCode int64) (*domain.Version, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT package_name, version_code, version_name, apk_key, size_bytes, sha256, min_sdk, uploaded_at
		FROM versions WHERE package_name = ? AND version_code = ?`, packageName, versionCode)
	return scanVersion(row)
}

// VersionExists reports whether (package_name, version_code) already has a row.
func (q *Queries) VersionExists(ctx context.Context, packageName string, versionCode int64) (bool, error) {
	var exists int
	err := q.db.QueryRowContext(ctx, `
		SELECT 1 FROM versions WHERE package_name = ? AND version_code = ?`,
		packageName, versionCode).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapError(domain.CodeDatabase, "failed to check version existence", err)
	}
	return true, nil
}

// CountVersions returns how many versions packageName currently has.
func (q *Queries) CountVersions(ctx context.Context, packageName string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM versions WHERE package_name = ?`, packageName).Scan(&n)
	if err != nil {
		return 0, domain.WrapError(domain.CodeDatabase, "failed to count versions", err)
	}
	return n, nil
}

// CountPackages returns the total number of packages in the catalog.
func (q *Queries) CountPackages(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n); err != nil {
		return 0, domain.WrapError(domain.CodeDatabase, "failed to count packages", err)
	}
	return n, nil
}

// CountAllVersions returns the total number of versions across every package.
func (q *Queries) CountAllVersions(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&n); err != nil {
		return 0, domain.WrapError(domain.CodeDatabase, "failed to count versions", err)
	}
	return n, nil
}

// InsertPackage creates a new package row. The package_name primary key
// makes a duplicate insert fail with a constraint error. The upload
// pipeline looks the package up before opening its transaction, so a
// concurrent upload of the same new package can still reach this error;
// the pipeline then checks VersionExists inside its transaction.
func (q *Queries) InsertPackage(ctx context.Context, pkg domain.Package) error {
	now := formatTime(pkg.CreatedAt)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO packages (package_name, display_name, description, icon_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pkg.PackageName, pkg.DisplayName, pkg.Description, pkg.IconKey, now, now)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to insert package", err)
	}
	return nil
}

// UpdatePackage applies a partial update to packageName: only fields set
// in input are written, updated_at advances whenever at least one field
// is set, and a nil field is left untouched rather than written as NULL.
// Returns domain.ErrNotFound if no row matches. An input with no fields
// set is a no-op that returns nil without looking the row up.
func (q *Queries) UpdatePackage(ctx context.Context, packageName string, input domain.UpdatePackageInput, updatedAt time.Time) error {
	if !input.HasUpdates() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if input.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *input.DisplayName)
	}
	if input.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *input.Description)
	}
	if input.IconKey != nil {
		sets = append(sets, "icon_key = ?")
		args = append(args, *input.IconKey)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(updatedAt))
	args = append(args, packageName)

	query := fmt.Sprintf("UPDATE packages SET %s WHERE package_name = ?", strings.Join(sets, ", "))
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to update package", err)
	}
	return requireRowAffected(res)
}

// DeletePackage removes packageName and, via the schema's ON DELETE
// CASCADE, every one of its versions.
func (q *Queries) DeletePackage(ctx context.Context, packageName string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM packages WHERE package_name = ?`, packageName)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to delete package", err)
	}
	return requireRowAffected(res)
}

// InsertVersion creates a new version row. A concurrent insert racing on
// the same (package_name, version_code) trips the versions table's UNIQUE
// constraint; that case is reported as domain.CodeVersionExists rather
// than a generic database error, so the loser of the race gets the same
// 409 it would have gotten from the earlier VersionExists check had it
// run a moment later.
func (q *Queries) InsertVersion(ctx context.Context, v domain.Version) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO versions (package_name, version_code, version_name, apk_key, size_bytes, sha256, min_sdk, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.PackageName, v.VersionCode, v.VersionName, v.ApkKey, v.SizeBytes, v.SHA256, v.MinSDK, formatTime(v.UploadedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.NewAppError(domain.CodeVersionExists,
				"version already exists for "+v.PackageName)
		}
		return domain.WrapError(domain.CodeDatabase, "failed to insert version", err)
	}
	return nil
}

// sqliteCoder is satisfied by modernc.org/sqlite's *sqlite.Error, whose
// Code() reports the underlying SQLITE_CONSTRAINT* result code. Matching
// on this interface avoids importing the driver package just for error
// inspection.
type sqliteCoder interface {
	Code() int
}

// sqliteConstraintUnique is SQLITE_CONSTRAINT_UNIQUE from sqlite3.h.
const sqliteConstraintUnique = 2067

// isUniqueConstraintError reports whether err is a UNIQUE-constraint
// violation from the sqlite driver.
func isUniqueConstraintError(err error) bool {
	var coder sqliteCoder
	if errors.As(err, &coder) {
		return coder.Code() == sqliteConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DeleteVersion removes one (package_name, version_code) row. It does
// not cascade to the package row even when it was the last version —
// callers that want that behavior check CountVersions first and call
// DeletePackage explicitly, per the component's documented lifecycle.
func (q *Queries) DeleteVersion(ctx context.Context, packageName string, versionCode int64) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM versions WHERE package_name = ? AND version_code = ?`, packageName, versionCode)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to delete version", err)
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to read affected rows", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*domain.Package, error) {
	pkg, err := scanPackageRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return pkg, err
}

func scanPackageRows(row rowScanner) (*domain.Package, error) {
	var (
		pkg         domain.Package
		description sql.NullString
		iconKey     sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&pkg.PackageName, &pkg.DisplayName, &description, &iconKey, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, domain.WrapError(domain.CodeDatabase, "failed to scan package", err)
	}
	if description.Valid {
		pkg.Description = &description.String
	}
	if iconKey.Valid {
		pkg.IconKey = &iconKey.String
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to parse created_at", err)
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to parse updated_at", err)
	}
	pkg.CreatedAt = created
	pkg.UpdatedAt = updated
	return &pkg, nil
}

func scanVersion(row rowScanner) (*domain.Version, error) {
	v, err := scanVersionRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

func scanVersionRows(row rowScanner) (*domain.Version, error) {
	var (
		v          domain.Version
		uploadedAt string
	)
	if err := row.Scan(&v.PackageName, &v.VersionCode, &v.VersionName, &v.ApkKey, &v.SizeBytes, &v.SHA256, &v.MinSDK, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, domain.WrapError(domain.CodeDatabase, "failed to scan version", err)
	}
	uploaded, err := parseTime(uploadedAt)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDatabase, "failed to parse uploaded_at", err)
	}
	v.UploadedAt = uploaded
	return &v, nil
}
