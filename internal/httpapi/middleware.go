// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keyward/keyward/internal/token"
	"github.com/keyward/keyward/pkg/errutil"
)

const (
	requestIDKey    = "request_id"
	claimsKey       = "claims"
	requestIDHeader = "X-Request-ID"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// requestID tags each request with an id, reusing a well-formed incoming
// X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one slog line per request.
func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// observeRequests reports each finished request to fn.
func observeRequests(fn func(route, method string, status int)) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		fn(c.FullPath(), c.Request.Method, c.Writer.Status())
	}
}

// bearer rejects requests without a valid "Authorization: Bearer" token and
// stores the verified claims for handlers.
func bearer(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", ErrorBody{Code: "TOKEN_MISSING"})
			return
		}
		claims, err := verifier.Verify(strings.TrimSpace(raw))
		if err != nil {
			errutil.LogWarn(logger, "bearer token rejected", err, "request_id", c.GetString(requestIDKey))
			fail(c, logger, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// subject returns the email of the authenticated caller.
func subject(c *gin.Context) string {
	if claims, ok := c.Get(claimsKey); ok {
		if cl, ok := claims.(*token.Claims); ok {
			return cl.Email
		}
	}
	return ""
}
