package domain

import "errors"

// Domain errors represent business-level failures; the handler layer
// translates them to HTTP responses. Of the sentinels below, only
// ErrNotFound is returned as-is (by the Catalog Store), and ErrBadRequest
// is what a ValidationError unwraps to. Every other failure kind is
// returned as an *AppError carrying the matching ErrorCode, so
// errors.Is against its sentinel does not match it.

var (
	// ErrNotFound: a requested package or version doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrVersionExists: (package_name, version_code) already has a row.
	ErrVersionExists = errors.New("version already exists")

	// ErrInvalidPackageName: a package name fails the rules in the catalog's naming policy.
	ErrInvalidPackageName = errors.New("invalid package name")

	// ErrInvalidFileType: an uploaded file is neither a recognizable APK nor AAB.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrFileTooLarge: an uploaded file exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrAabNotSupported: an AAB is uploaded but no Bundle Converter is configured.
	ErrAabNotSupported = errors.New("AAB conversion not available")

	// ErrInvalidBundle: an AAB fails the BundleConfig.pb validity check.
	ErrInvalidBundle = errors.New("invalid app bundle")

	// ErrInspectionFailed: the Package Inspector cannot produce metadata.
	ErrInspectionFailed = errors.New("package inspection failed")

	// ErrConversionFailed: the Bundle Converter's external tool invocation fails.
	ErrConversionFailed = errors.New("bundle conversion failed")

	// ErrRangeNotSatisfiable: the requested byte range is out of bounds.
	// ServeRange answers that case itself with a 416 response and returns nil.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	// ErrUnauthorized: no valid identity was attached to the request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden: the caller is authenticated but lacks the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest is a catch-all for malformed request input that doesn't fit a more specific kind.
	ErrBadRequest = errors.New("bad request")
)

// ErrorCode classifies an AppError for HTTP status mapping.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "not_found"
	CodeVersionExists       ErrorCode = "version_exists"
	CodeInvalidPackageName  ErrorCode = "invalid_package_name"
	CodeInvalidFileType     ErrorCode = "invalid_file_type"
	CodeFileTooLarge        ErrorCode = "file_too_large"
	CodeAabNotSupported     ErrorCode = "aab_not_supported"
	CodeInvalidBundle       ErrorCode = "invalid_bundle"
	CodeInspectionFailed    ErrorCode = "inspection_failed"
	CodeConversionFailed    ErrorCode = "conversion_failed"
	CodeRangeNotSatisfiable ErrorCode = "range_not_satisfiable"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeForbidden           ErrorCode = "forbidden"
	CodeBadRequest          ErrorCode = "bad_request"
	CodeDatabase            ErrorCode = "database"
	CodeInternal            ErrorCode = "internal"
)

// AppError is the typed error carried out of the core components, tagged
// with the ErrorCode the HTTP collaborator uses to pick a status code.
type AppError struct {
	Code    ErrorCode
	Message string
	err     error
}

func (e *AppError) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.err
}

// NewAppError builds an AppError with no wrapped cause.
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WrapError builds an AppError carrying an underlying cause for logging,
// without leaking that cause to the HTTP response body.
func WrapError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, err: err}
}

// ValidationError wraps ErrBadRequest with the specific offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError creates a new validation error for a specific field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GetErrorCode extracts the ErrorCode from err, defaulting to
// CodeInternal for errors the domain doesn't recognize.
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CodeBadRequest
	}
	return CodeInternal
}

// GetErrorMessage extracts the user-facing message from err.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	return "internal server error"
}
