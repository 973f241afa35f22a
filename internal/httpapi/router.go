// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package httpapi exposes the account lifecycle over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
)

// BasePath prefixes every API route.
const BasePath = "/v1/authentication"

// Options configures the router.
type Options struct {
	Service  AccountService
	Verifier TokenVerifier
	Logger   *slog.Logger
	// Limiter is optional; nil disables rate limiting.
	Limiter *RateLimiter
	// ObserveRequest is optional and receives every finished request.
	ObserveRequest func(route, method string, status int)
	// AllowOrigins lists the browser origins allowed to call the API.
	// Empty disables CORS handling.
	AllowOrigins []string
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed when resolving the client IP. Empty trusts none, so the
	// client IP is always the socket peer.
	TrustedProxies []string
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{
			requestIDHeader, "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		MaxAge: 12 * time.Hour,
	})
}

// NewRouter builds the gin engine serving the API.
func NewRouter(opts Options) *gin.Engine {
	registerValidators()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", "proxies", opts.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), requestID(), accessLog(logger))
	if len(opts.AllowOrigins) > 0 {
		r.Use(corsMiddleware(opts.AllowOrigins))
	}
	if opts.ObserveRequest != nil {
		r.Use(observeRequests(opts.ObserveRequest))
	}
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware())
	}
	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "not found", ErrorBody{Code: "ROUTE_NOT_FOUND"})
	})

	h := &handler{svc: opts.Service, logger: logger}
	auth := bearer(opts.Verifier, logger)

	api := r.Group(BasePath)
	api.POST("/signUp", h.signUp)
	api.POST("/logIn", h.logIn)
	api.GET("/checkEmail", h.checkEmail)
	api.PATCH("/:email/:code/confirm", h.confirmEmail)
	api.POST("/sendHint", h.sendHint)
	api.GET("/publicKey", h.publicKey)

	api.PUT("/changePassword", auth, h.changePassword)
	api.DELETE("/deleteAccount", auth, h.deleteAccount)
	api.PUT("/changeEmail", auth, h.changeEmail)
	api.PUT("/confirmChangeEmail", auth, h.confirmChangeEmail)
	api.PUT("/changeInformation", auth, h.changeInformation)

	return r
}

// Server runs the API router on an http.Server.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
	srv     *http.Server
	ln      net.Listener
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// Start listens and serves in the background. The returned channel
// receives a serve failure and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}()
	s.logger.Info("api server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}
