package handler

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// humaResponseWriter adapts a huma.Context to the stdlib http.ResponseWriter
// interface, letting artifactstore.ServeRange — which only knows about
// net/http primitives — drive a huma.StreamResponse body without internal
// artifactstore taking any dependency on the HTTP framework.
type humaResponseWriter struct {
	ctx         huma.Context
	header      http.Header
	wroteHeader bool
}

func newHumaResponseWriter(ctx huma.Context) *humaResponseWriter {
	return &humaResponseWriter{ctx: ctx, header: make(http.Header)}
}

func (w *humaResponseWriter) Header() http.Header {
	return w.header
}

func (w *humaResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	for key := range w.header {
		w.ctx.SetHeader(key, w.header.Get(key))
	}
	w.ctx.SetStatus(statusCode)
}

func (w *humaResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ctx.BodyWriter().Write(p)
}
