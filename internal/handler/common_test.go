package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream-oss/apkvault/internal/domain"
	"github.com/nullstream-oss/apkvault/internal/handler/middleware"
)

func TestMapDomainErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.NewAppError(domain.CodeNotFound, "no such package"), http.StatusNotFound},
		{"version exists", domain.NewAppError(domain.CodeVersionExists, "already uploaded"), http.StatusConflict},
		{"unauthorized", domain.NewAppError(domain.CodeUnauthorized, "missing token"), http.StatusUnauthorized},
		{"forbidden", domain.NewAppError(domain.CodeForbidden, "not an admin"), http.StatusForbidden},
		{"invalid package name", domain.NewAppError(domain.CodeInvalidPackageName, "bad name"), http.StatusBadRequest},
		{"invalid file type", domain.NewAppError(domain.CodeInvalidFileType, "not an apk"), http.StatusBadRequest},
		{"aab not supported", domain.NewAppError(domain.CodeAabNotSupported, "no converter"), http.StatusBadRequest},
		{"invalid bundle", domain.NewAppError(domain.CodeInvalidBundle, "bad bundle"), http.StatusBadRequest},
		{"bad request", domain.NewAppError(domain.CodeBadRequest, "malformed"), http.StatusBadRequest},
		{"file too large", domain.NewAppError(domain.CodeFileTooLarge, "too big"), http.StatusRequestEntityTooLarge},
		{"range not satisfiable", domain.NewAppError(domain.CodeRangeNotSatisfiable, "bad range"), http.StatusRequestedRangeNotSatisfiable},
		{"inspection failed", domain.NewAppError(domain.CodeInspectionFailed, "boom"), http.StatusInternalServerError},
		{"conversion failed", domain.NewAppError(domain.CodeConversionFailed, "boom"), http.StatusInternalServerError},
		{"database error", domain.NewAppError(domain.CodeDatabase, "boom"), http.StatusInternalServerError},
		{"internal error", domain.NewAppError(domain.CodeInternal, "boom"), http.StatusInternalServerError},
		{"unrecognized error", errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapDomainError(context.Background(), tc.err)
			require.Error(t, mapped)

			var statusErr huma.StatusError
			require.True(t, errors.As(mapped, &statusErr))
			assert.Equal(t, tc.wantStatus, statusErr.GetStatus())
		})
	}
}

func TestMapDomainErrorNil(t *testing.T) {
	assert.NoError(t, mapDomainError(context.Background(), nil))
}

func TestMapDomainErrorValidation(t *testing.T) {
	err := domain.NewValidationError("display_name", "must not be empty")
	mapped := mapDomainError(context.Background(), err)
	require.Error(t, mapped)

	var statusErr huma.StatusError
	require.True(t, errors.As(mapped, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.GetStatus())
}

func TestMapDomainErrorRedacts5xxDetail(t *testing.T) {
	wrapped := domain.WrapError(domain.CodeDatabase, "catalog lookup failed", errors.New("connection refused"))
	mapped := mapDomainError(context.Background(), wrapped)
	assert.NotContains(t, mapped.Error(), "connection refused")
}

func TestLogServerErrorIncludesRequestIDAndCause(t *testing.T) {
	var buf bytes.Buffer
	prevDefault := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prevDefault)

	lm := middleware.NewLoggingMiddleware(middleware.DefaultLoggingConfig())

	var capturedCtx context.Context
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCtx = r.Context()
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/apps", nil)
	rec := httptest.NewRecorder()
	lm.Handler(next).ServeHTTP(rec, req)

	require.NotNil(t, capturedCtx)
	requestID := middleware.RequestID(capturedCtx)
	require.NotEmpty(t, requestID)

	wrapped := domain.WrapError(domain.CodeDatabase, "catalog lookup failed", errors.New("connection refused"))
	mapped := mapDomainError(capturedCtx, wrapped)
	require.Error(t, mapped)
	assert.NotContains(t, mapped.Error(), "connection refused")

	logged := buf.String()
	assert.Contains(t, logged, requestID)
	assert.Contains(t, logged, "connection refused")
}
