/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package api

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"time"

	applog "concepto/internal/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// requestID tags each request with an id, taken from the caller when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(applog.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog writes one line per request through the application logger.
func accessLog(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		switch {
		case status >= 500:
			l.ErrorContext(c.Request.Context(), "request", attrs...)
		case status >= 400:
			l.WarnContext(c.Request.Context(), "request", attrs...)
		default:
			l.DebugContext(c.Request.Context(), "request", attrs...)
		}
	}
}

// recovery turns handler panics into 500 responses.
func recovery(l *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, v any) {
		l.ErrorContext(c.Request.Context(), "handler panic", slog.Any("panic", v), slog.String("path", c.Request.URL.Path))
		fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
	})
}

// requireAPIKey guards the external API. An empty key disables the external API entirely.
func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			fail(c, http.StatusServiceUnavailable, CodeUnavailable, "external API is not configured")
			return
		}
		got := c.GetHeader("X-API-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid API key")
			return
		}
		c.Next()
	}
}
