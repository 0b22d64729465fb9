// Package handler contains HTTP handlers (transport layer).
// Handlers are responsible for:
//   - Parsing requests
//   - Calling the core components
//   - Formatting responses
//   - Translating domain errors to HTTP errors
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nullstream-oss/apkvault/internal/domain"
	"github.com/nullstream-oss/apkvault/internal/handler/middleware"
)

// ApiResponse is the standard response wrapper for all endpoints.
// Clients can use the 'code' field for programmatic error handling.
type ApiResponse[T any] struct {
	Status  int              `json:"status" doc:"HTTP status code"`
	Code    domain.ErrorCode `json:"code,omitempty" doc:"Machine-readable error code for client-side handling"`
	Message string           `json:"message" doc:"Brief description of the response"`
	Data    T                `json:"data" doc:"The actual response payload"`
}

// ErrorDetail provides additional error information for clients.
// It implements the error interface so it can be passed to huma error functions.
type ErrorDetail struct {
	Code    domain.ErrorCode `json:"code" doc:"Machine-readable error code"`
	Message string           `json:"message" doc:"Human-readable error message"`
	Field   string           `json:"field,omitempty" doc:"Field name for validation errors"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Field, e.Message, e.Code)
	}
	return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
}

// mapDomainError translates domain errors to huma HTTP errors, covering
// every error-kind/status pairing in spec.md §6's route table. Any error
// that ends up mapped to a 5xx has its underlying cause logged at error
// level, tagged with the request's correlation ID, before the redacted
// message goes back to the client.
func mapDomainError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	code := domain.GetErrorCode(err)
	message := domain.GetErrorMessage(err)
	detail := &ErrorDetail{Code: code, Message: message}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		detail.Field = valErr.Field
		return huma.Error422UnprocessableEntity(valErr.Message, detail)
	}

	// The Catalog Store reports missing rows as the bare domain.ErrNotFound
	// sentinel rather than an AppError.
	if errors.Is(err, domain.ErrNotFound) {
		detail.Code = domain.CodeNotFound
		detail.Message = domain.ErrNotFound.Error()
		return huma.Error404NotFound(detail.Message, detail)
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case domain.CodeNotFound:
			return huma.Error404NotFound(message, detail)

		case domain.CodeVersionExists:
			return huma.Error409Conflict(message, detail)

		case domain.CodeUnauthorized:
			return huma.Error401Unauthorized(message, detail)

		case domain.CodeForbidden:
			return huma.Error403Forbidden(message, detail)

		case domain.CodeInvalidPackageName, domain.CodeInvalidFileType, domain.CodeAabNotSupported, domain.CodeInvalidBundle, domain.CodeBadRequest:
			return huma.Error400BadRequest(message, detail)

		case domain.CodeFileTooLarge:
			return huma.NewError(http.StatusRequestEntityTooLarge, message, detail)

		case domain.CodeRangeNotSatisfiable:
			return huma.NewError(http.StatusRequestedRangeNotSatisfiable, message, detail)

		case domain.CodeInspectionFailed, domain.CodeConversionFailed, domain.CodeDatabase, domain.CodeInternal:
			logServerError(ctx, appErr)
			return huma.Error500InternalServerError("an unexpected error occurred", &ErrorDetail{
				Code:    domain.CodeInternal,
				Message: "an unexpected error occurred",
			})
		}
	}

	logServerError(ctx, err)
	return huma.Error500InternalServerError("an unexpected error occurred", &ErrorDetail{
		Code:    domain.CodeInternal,
		Message: "an unexpected error occurred",
	})
}

// logServerError logs the cause behind a 5xx response at error level,
// tagged with the request's correlation ID so an operator can find it
// from the ID returned in the X-Request-ID response header.
func logServerError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "request failed with server error",
		slog.String("request_id", middleware.RequestID(ctx)),
		slog.Any("error", err))
}

// successResponse creates a standard success response.
func successResponse[T any](status int, message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  status,
		Message: message,
		Data:    data,
	}
}

// emptyData is used for responses that don't return data.
type emptyData struct{}

// ok creates a 200 OK response.
func ok[T any](message string, data T) ApiResponse[T] {
	return successResponse(http.StatusOK, message, data)
}

// created builds a success envelope whose status field reads 201 Created.
// The HTTP status line is the operation's own (huma's default 200 for the
// routes that use it).
func created[T any](message string, data T) ApiResponse[T] {
	return successResponse(http.StatusCreated, message, data)
}

// noContent builds an empty-data envelope whose status field reads 204 No
// Content. The envelope is still sent as a JSON body, under the
// operation's own HTTP status (huma's default 200 for the routes that
// use it).
func noContent(message string) ApiResponse[emptyData] {
	return ApiResponse[emptyData]{
		Status:  http.StatusNoContent,
		Message: message,
		Data:    emptyData{},
	}
}
