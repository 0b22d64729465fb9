package domain

import "time"

// Package is a distributable Android application, keyed by its dotted
// package name. It is created implicitly by the first successful upload
// bearing its name and destroyed explicitly (admin delete) or implicitly
// when its last Version is removed.
type Package struct {
	PackageName string
	DisplayName string
	Description *string
	IconKey     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpdatePackageInput carries an independently-optional field per column.
// A nil field is left untouched by the Catalog Store; it is never an
// upsert and never writes NULL in place of an omitted field.
type UpdatePackageInput struct {
	DisplayName *string
	Description *string
	IconKey     *string
}

// HasUpdates reports whether at least one field was supplied.
func (u UpdatePackageInput) HasUpdates() bool {
	return u.DisplayName != nil || u.Description != nil || u.IconKey != nil
}

// Version is one uploaded artifact of a Package, keyed by
// (package_name, version_code). version_code is chosen by the upload
// author, never assigned by the system.
type Version struct {
	PackageName string
	VersionCode int64
	VersionName string
	ApkKey      string
	SizeBytes   int64
	SHA256      string
	MinSDK      int64
	UploadedAt  time.Time
}

// UploadResult is the outcome handed back by the Upload Pipeline.
type UploadResult struct {
	PackageName  string
	VersionCode  int64
	VersionName  string
	DisplayName  string
	IsNewPackage bool
}
