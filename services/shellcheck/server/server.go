// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes shellsensor analyses over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/shellsensor/pkg/config"
	"github.com/AleutianAI/shellsensor/services/shellcheck/analysis"
	"github.com/AleutianAI/shellsensor/services/shellcheck/rules"
	"github.com/AleutianAI/shellsensor/services/shellcheck/sink"
)

// ServiceName tags server spans.
const ServiceName = "shellsensor"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// =============================================================================
// Request / Response Types
// =============================================================================

// AnalyzeRequest is the body of POST /v1/shellcheck/analyze. Unset fields
// fall back to the server configuration.
type AnalyzeRequest struct {
	Root         string   `json:"root" binding:"required"`
	Autolaunch   *bool    `json:"autolaunch,omitempty"`
	ReportsRegex string   `json:"reports_regex,omitempty"`
	Format       string   `json:"format,omitempty"`
	Enabled      []string `json:"enabled,omitempty"`
	Disabled     []string `json:"disabled,omitempty"`
}

// RulesResponse is the body of GET /v1/shellcheck/rules.
type RulesResponse struct {
	Repository string       `json:"repository"`
	Profile    string       `json:"profile"`
	Rules      []rules.Rule `json:"rules"`
	Active     []string     `json:"active"`
}

// =============================================================================
// Server
// =============================================================================

// Server routes HTTP requests to an analysis.Service.
//
// # Thread Safety
//
// Safe for concurrent use.
type Server struct {
	svc     *analysis.Service
	base    config.Config
	roots   []string
	metrics http.Handler
	logger  *slog.Logger
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAllowedRoots restricts analyzable roots to these directories and
// their descendants. Without it any root is accepted.
func WithAllowedRoots(roots ...string) Option {
	return func(s *Server) {
		for _, r := range roots {
			if abs, err := filepath.Abs(r); err == nil {
				s.roots = append(s.roots, abs)
			}
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New builds the router.
func New(svc *analysis.Service, base config.Config, opts ...Option) *Server {
	s := &Server{svc: svc, base: base, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))

	r.GET("/v1/health", s.health)
	v1 := r.Group("/v1/shellcheck")
	v1.POST("/analyze", s.analyze)
	v1.GET("/rules", s.rules)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("shellsensor server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("shellsensor server stopped")
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) rules(c *gin.Context) {
	profile, err := s.svc.Profile(s.base)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	catalog := s.svc.Catalog()
	resp := RulesResponse{
		Repository: catalog.RepositoryKey(),
		Profile:    profile.Name(),
		Rules:      catalog.Rules(),
	}
	for _, a := range profile.Active() {
		resp.Active = append(resp.Active, a.Key.Rule)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid root"})
		return
	}
	if !s.allowed(root) {
		s.logger.Warn("rejected analysis outside allowed roots", "root", root)
		c.JSON(http.StatusForbidden, gin.H{"error": "root is not allowed"})
		return
	}

	cfg := s.base
	if req.Autolaunch != nil {
		cfg.ShellCheck.Autolaunch = *req.Autolaunch
	}
	if req.ReportsRegex != "" {
		cfg.ShellCheck.ReportsRegex = req.ReportsRegex
	}
	if req.Enabled != nil {
		cfg.Rules.Enabled = req.Enabled
	}
	if req.Disabled != nil {
		cfg.Rules.Disabled = req.Disabled
	}

	format := sink.FormatJSON
	if req.Format != "" {
		if format, err = sink.ParseFormat(req.Format); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := s.svc.Analyze(c.Request.Context(), root, cfg)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, rules.ErrUnknownRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			s.logger.Error("analysis failed", "root", root, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	var buf bytes.Buffer
	if err := sink.Write(c.Request.Context(), &buf, format, res, sink.Options{}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Server) allowed(root string) bool {
	if len(s.roots) == 0 {
		return true
	}
	for _, r := range s.roots {
		if root == r || strings.HasPrefix(root, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
