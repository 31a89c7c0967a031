// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one record per request through logger, with the request
// context attached so trace IDs reach the handler. Panics recovered by
// middleware.Recoverer are logged through the same entry.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&slogFormatter{logger: logger})
}

type slogFormatter struct {
	logger *slog.Logger
}

func (f *slogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &slogEntry{
		logger: f.logger,
		r:      r,
		attrs: []any{
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		},
	}
}

type slogEntry struct {
	logger *slog.Logger
	r      *http.Request
	attrs  []any
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := append(e.attrs[:len(e.attrs):len(e.attrs)],
		"status", status,
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
	)
	e.logger.Log(e.r.Context(), level, "http request", attrs...)
}

func (e *slogEntry) Panic(v any, stack []byte) {
	attrs := append(e.attrs[:len(e.attrs):len(e.attrs)],
		"panic", fmt.Sprint(v),
		"stack", string(stack),
	)
	e.logger.ErrorContext(e.r.Context(), "http handler panic", attrs...)
}
