// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keyward/keyward/pkg/errutil"
)

// Response is the envelope of every API reply.
type Response[T any] struct {
	Status    int       `json:"status"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      T         `json:"data"`
	Error     any       `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func respond[T any](c *gin.Context, status int, data T, message string) {
	c.JSON(status, Response[T]{
		Status:    status,
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now().UTC(),
	})
}

func abort(c *gin.Context, status int, message string, body ErrorBody) {
	c.AbortWithStatusJSON(status, Response[any]{
		Status:    status,
		Message:   message,
		Error:     body,
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now().UTC(),
	})
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind errutil.Kind) int {
	switch kind {
	case errutil.KindNone:
		return http.StatusOK
	case errutil.KindInvalidRequest:
		return http.StatusBadRequest
	case errutil.KindNotFound:
		return http.StatusNotFound
	case errutil.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope. Internal errors are logged and
// replaced with a generic message.
func fail(c *gin.Context, logger *slog.Logger, err error) {
	kind := errutil.KindOf(err)
	status := statusOf(kind)
	if kind == errutil.KindInternal {
		errutil.LogError(logger, "request failed", err,
			"request_id", c.GetString(requestIDKey), "path", c.FullPath())
		abort(c, status, "internal error", ErrorBody{Code: "INTERNAL"})
		return
	}
	abort(c, status, kindMessage(kind), ErrorBody{Code: errutil.Code(err)})
}

func kindMessage(kind errutil.Kind) string {
	switch kind {
	case errutil.KindNotFound:
		return "not found"
	case errutil.KindUnauthenticated:
		return "unauthorized"
	default:
		return "bad request"
	}
}
