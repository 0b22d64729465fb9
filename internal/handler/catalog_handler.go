package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nullstream-oss/apkvault/internal/artifactstore"
	"github.com/nullstream-oss/apkvault/internal/catalog"
	"github.com/nullstream-oss/apkvault/internal/domain"
)

// CatalogHandler serves the public, unauthenticated read routes: list
// catalog, get package, get icon, download APK.
type CatalogHandler struct {
	queries *catalog.Queries
	store   *artifactstore.Store
}

// NewCatalogHandler builds a CatalogHandler.
func NewCatalogHandler(queries *catalog.Queries, store *artifactstore.Store) *CatalogHandler {
	return &CatalogHandler{queries: queries, store: store}
}

// Register registers the catalog routes with the API.
func (h *CatalogHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-packages",
		Method:      http.MethodGet,
		Path:        "/apps",
		Summary:     "List catalog",
		Description: "List every package in the catalog, ordered by display name, each annotated with its latest version.",
		Tags:        []string{"Catalog"},
	}, h.listPackages)

	huma.Register(api, huma.Operation{
		OperationID: "get-package",
		Method:      http.MethodGet,
		Path:        "/apps/{package_name}",
		Summary:     "Get package",
		Description: "Get one package's metadata and every uploaded version, newest first.",
		Tags:        []string{"Catalog"},
	}, h.getPackage)

	huma.Register(api, huma.Operation{
		OperationID: "get-icon",
		Method:      http.MethodGet,
		Path:        "/apps/{package_name}/icon",
		Summary:     "Get package icon",
		Description: "Serve the package's normalized launcher icon, with byte-range support.",
		Tags:        []string{"Catalog"},
	}, h.getIcon)

	huma.Register(api, huma.Operation{
		OperationID: "download-apk",
		Method:      http.MethodGet,
		Path:        "/apps/{package_name}/versions/{version_code}/download",
		Summary:     "Download APK",
		Description: "Download one version's APK, with byte-range support for resumable downloads.",
		Tags:        []string{"Catalog"},
	}, h.downloadApk)
}

// ========== Request/Response Types ==========

type VersionSummary struct {
	VersionCode int64  `json:"version_code"`
	VersionName string `json:"version_name"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
	MinSDK      int64  `json:"min_sdk"`
	UploadedAt  string `json:"uploaded_at"`
}

type PackageSummary struct {
	PackageName string          `json:"package_name"`
	DisplayName string          `json:"display_name"`
	Description *string         `json:"description,omitempty"`
	HasIcon     bool            `json:"has_icon"`
	Latest      *VersionSummary `json:"latest_version,omitempty"`
}

type PackageDetail struct {
	PackageSummary
	Versions []VersionSummary `json:"versions"`
}

func toVersionSummary(v domain.Version) VersionSummary {
	return VersionSummary{
		VersionCode: v.VersionCode,
		VersionName: v.VersionName,
		SizeBytes:   v.SizeBytes,
		SHA256:      v.SHA256,
		MinSDK:      v.MinSDK,
		UploadedAt:  v.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toPackageSummary(pkg domain.Package) PackageSummary {
	return PackageSummary{
		PackageName: pkg.PackageName,
		DisplayName: pkg.DisplayName,
		Description: pkg.Description,
		HasIcon:     pkg.IconKey != nil,
	}
}

type ListPackagesInput struct{}

type ListPackagesOutput struct {
	Body ApiResponse[[]PackageSummary]
}

type GetPackageInput struct {
	PackageName string `path:"package_name"`
}

type GetPackageOutput struct {
	Body ApiResponse[PackageDetail]
}

type GetIconInput struct {
	PackageName string `path:"package_name"`
	Range       string `header:"Range"`
}

type DownloadApkInput struct {
	PackageName string `path:"package_name"`
	VersionCode int64  `path:"version_code"`
	Range       string `header:"Range"`
}

// ========== Handlers ==========

func (h *CatalogHandler) listPackages(ctx context.Context, _ *ListPackagesInput) (*ListPackagesOutput, error) {
	packages, err := h.queries.ListPackagesOrderedByDisplayName(ctx)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	summaries := make([]PackageSummary, 0, len(packages))
	for _, pkg := range packages {
		summary := toPackageSummary(pkg)
		latest, err := h.queries.GetLatestVersion(ctx, pkg.PackageName)
		if err == nil {
			v := toVersionSummary(*latest)
			summary.Latest = &v
		}
		summaries = append(summaries, summary)
	}

	return &ListPackagesOutput{Body: ok("catalog listed", summaries)}, nil
}

func (h *CatalogHandler) getPackage(ctx context.Context, input *GetPackageInput) (*GetPackageOutput, error) {
	pkg, err := h.queries.GetPackage(ctx, input.PackageName)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	versions, err := h.queries.GetVersions(ctx, input.PackageName)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	summaries := make([]VersionSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, toVersionSummary(v))
	}

	detail := PackageDetail{
		PackageSummary: toPackageSummary(*pkg),
		Versions:       summaries,
	}
	if len(summaries) > 0 {
		detail.Latest = &summaries[0]
	}

	return &GetPackageOutput{Body: ok("package retrieved", detail)}, nil
}

func (h *CatalogHandler) getIcon(ctx context.Context, input *GetIconInput) (*huma.StreamResponse, error) {
	pkg, err := h.queries.GetPackage(ctx, input.PackageName)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}
	if pkg.IconKey == nil {
		return nil, mapDomainError(ctx, domain.NewAppError(domain.CodeNotFound, "package has no icon"))
	}

	absPath := h.store.AbsIconPath(input.PackageName)
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			w := newHumaResponseWriter(humaCtx)
			if err := h.store.ServeRange(w, input.Range, absPath, "image/png", nil); err != nil {
				humaCtx.SetStatus(http.StatusInternalServerError)
			}
		},
	}, nil
}

func (h *CatalogHandler) downloadApk(ctx context.Context, input *DownloadApkInput) (*huma.StreamResponse, error) {
	pkg, err := h.queries.GetPackage(ctx, input.PackageName)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	v, err := h.queries.GetVersion(ctx, input.PackageName, input.VersionCode)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	absPath := h.store.AbsApkPath(input.PackageName, input.VersionCode)
	filename := fmt.Sprintf("%s-%s.apk", pkg.PackageName, v.VersionName)

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			w := newHumaResponseWriter(humaCtx)
			if err := h.store.ServeRange(w, input.Range, absPath, "application/vnd.android.package-archive", &filename); err != nil {
				humaCtx.SetStatus(http.StatusInternalServerError)
			}
		},
	}, nil
}
