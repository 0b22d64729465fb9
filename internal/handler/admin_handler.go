package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nullstream-oss/apkvault/internal/catalog"
	"github.com/nullstream-oss/apkvault/internal/domain"
	"github.com/nullstream-oss/apkvault/internal/upload"
)

// AdminHandler serves the admin-gated write routes: upload, update,
// delete package, delete version. Every operation here requires the
// caller to have passed through AuthMiddleware.RequireAdmin.
type AdminHandler struct {
	queries  *catalog.Queries
	store    adminStore
	pipeline *upload.Pipeline
}

// adminStore is the subset of artifactstore.Store the admin routes use
// directly, for deletion after a Catalog Store write.
type adminStore interface {
	DeleteAPK(packageName string, versionCode int64) error
	DeleteIcon(packageName string) error
	DeletePackage(packageName string) error
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(queries *catalog.Queries, store adminStore, pipeline *upload.Pipeline) *AdminHandler {
	return &AdminHandler{queries: queries, store: store, pipeline: pipeline}
}

// Register registers the admin routes with the API.
func (h *AdminHandler) Register(api huma.API) {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(api, huma.Operation{
		OperationID: "upload-package",
		Method:      http.MethodPost,
		Path:        "/admin/apps",
		Summary:     "Upload package",
		Description: "Upload an APK or AAB, creating or updating its package and adding a new version.",
		Tags:        []string{"Admin"},
		Security:    security,
	}, h.upload)

	huma.Register(api, huma.Operation{
		OperationID: "update-package",
		Method:      http.MethodPatch,
		Path:        "/admin/apps/{package_name}",
		Summary:     "Update package",
		Description: "Partially update a package's display name or description. The icon is not changed by this route.",
		Tags:        []string{"Admin"},
		Security:    security,
	}, h.updatePackage)

	huma.Register(api, huma.Operation{
		OperationID: "delete-package",
		Method:      http.MethodDelete,
		Path:        "/admin/apps/{package_name}",
		Summary:     "Delete package",
		Description: "Delete a package and every one of its versions, both on disk and in the catalog.",
		Tags:        []string{"Admin"},
		Security:    security,
	}, h.deletePackage)

	huma.Register(api, huma.Operation{
		OperationID: "delete-version",
		Method:      http.MethodDelete,
		Path:        "/admin/apps/{package_name}/versions/{version_code}",
		Summary:     "Delete version",
		Description: "Delete one version. If it was the package's last version, the package itself (and its icon) are also removed.",
		Tags:        []string{"Admin"},
		Security:    security,
	}, h.deleteVersion)
}

// ========== Request/Response Types ==========

// UploadFormBody is the multipart form body of an upload request: the
// artifact file plus optional display metadata overrides.
type UploadFormBody struct {
	File        huma.FormFile `form:"file" required:"true" doc:"APK or AAB file"`
	DisplayName *string       `form:"display_name" doc:"Override the app name the inspector reads from the artifact"`
	Description *string       `form:"description" doc:"Override the package description"`
}

type UploadInput struct {
	RawBody huma.MultipartFormFiles[UploadFormBody]
}

type UploadOutput struct {
	Body ApiResponse[domain.UploadResult]
}

type UpdatePackageBody struct {
	DisplayName *string `json:"display_name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UpdatePackageInput struct {
	PackageName string `path:"package_name"`
	Body        UpdatePackageBody
}

type UpdatePackageOutput struct {
	Body ApiResponse[emptyData]
}

type DeletePackageInput struct {
	PackageName string `path:"package_name"`
}

type DeletePackageOutput struct {
	Body ApiResponse[emptyData]
}

type DeleteVersionInput struct {
	PackageName string `path:"package_name"`
	VersionCode int64  `path:"version_code"`
}

type DeleteVersionOutput struct {
	Body ApiResponse[emptyData]
}

// ========== Handlers ==========

func (h *AdminHandler) upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	form := input.RawBody.Data()

	file, err := form.File.Open()
	if err != nil {
		return nil, mapDomainError(ctx, domain.WrapError(domain.CodeBadRequest, "failed to read uploaded file", err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, mapDomainError(ctx, domain.WrapError(domain.CodeBadRequest, "failed to read uploaded file", err))
	}

	result, err := h.pipeline.Process(ctx, upload.Input{
		Filename:            form.File.Filename,
		Data:                data,
		OverrideDisplayName: form.DisplayName,
		OverrideDescription: form.Description,
	})
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}

	return &UploadOutput{Body: created("upload processed", *result)}, nil
}

func (h *AdminHandler) updatePackage(ctx context.Context, input *UpdatePackageInput) (*UpdatePackageOutput, error) {
	update := domain.UpdatePackageInput{
		DisplayName: input.Body.DisplayName,
		Description: input.Body.Description,
	}
	if err := h.queries.UpdatePackage(ctx, input.PackageName, update, time.Now()); err != nil {
		return nil, mapDomainError(ctx, err)
	}
	return &UpdatePackageOutput{Body: noContent("package updated")}, nil
}

func (h *AdminHandler) deletePackage(ctx context.Context, input *DeletePackageInput) (*DeletePackageOutput, error) {
	if err := h.store.DeletePackage(input.PackageName); err != nil {
		return nil, mapDomainError(ctx, err)
	}
	if err := h.queries.DeletePackage(ctx, input.PackageName); err != nil {
		return nil, mapDomainError(ctx, err)
	}
	return &DeletePackageOutput{Body: noContent("package deleted")}, nil
}

func (h *AdminHandler) deleteVersion(ctx context.Context, input *DeleteVersionInput) (*DeleteVersionOutput, error) {
	if err := h.store.DeleteAPK(input.PackageName, input.VersionCode); err != nil {
		return nil, mapDomainError(ctx, err)
	}
	if err := h.queries.DeleteVersion(ctx, input.PackageName, input.VersionCode); err != nil {
		return nil, mapDomainError(ctx, err)
	}

	remaining, err := h.queries.CountVersions(ctx, input.PackageName)
	if err != nil {
		return nil, mapDomainError(ctx, err)
	}
	if remaining == 0 {
		_ = h.store.DeleteIcon(input.PackageName)
		if err := h.queries.DeletePackage(ctx, input.PackageName); err != nil {
			return nil, mapDomainError(ctx, err)
		}
	}

	return &DeleteVersionOutput{Body: noContent("version deleted")}, nil
}
