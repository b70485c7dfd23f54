/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package devserver is an in-memory stand-in for the Project Service used by
// tests and local UI work. Parsing splits text on lines and commas, image
// search returns generated placeholder images, and processing copies the
// chosen image. Nothing is persisted.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bulkimage/internal/domain"
	applog "bulkimage/internal/log"
)

// Route names accepted by FailNext.
const (
	RouteCreate   = "create"
	RouteParse    = "parse"
	RouteGenerate = "generate"
	RouteGet      = "get"
	RouteProcess  = "process"
	RouteSelect   = "select"
	RouteUpload   = "upload"
)

// maxUpload mirrors the service limit for one image.
const maxUpload = 10 << 20

// Server holds projects in memory. The zero value is not usable; call New.
type Server struct {
	log *slog.Logger

	mu       sync.Mutex
	projects map[string]*domain.Project
	cardOf   map[string]string // card id -> project id
	media    map[string]media  // path under /media/ -> content
	failures map[string][]int
	calls    map[string]int
}

type media struct {
	contentType string
	data        []byte
}

// New returns an empty server.
func New() *Server {
	return &Server{
		log:      applog.WithComponent("devserver"),
		projects: map[string]*domain.Project{},
		cardOf:   map[string]string{},
		media:    map[string]media{},
		failures: map[string][]int{},
		calls:    map[string]int{},
	}
}

// FailNext makes the next call to route answer with status instead of running.
// Calls queue up; each failure is used once.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Calls returns how many requests reached route, including injected failures.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Project returns a copy of the stored project.
func (s *Server) Project(id string) (*domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, false
	}
	return cloneProject(p), true
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects/{$}", s.guard(RouteCreate, s.handleCreate))
	mux.HandleFunc("POST /api/projects/{id}/parse-input/{$}", s.guard(RouteParse, s.handleParse))
	mux.HandleFunc("POST /api/projects/{id}/generate-images/{$}", s.guard(RouteGenerate, s.handleGenerate))
	mux.HandleFunc("GET /api/projects/{id}/{$}", s.guard(RouteGet, s.handleGet))
	mux.HandleFunc("POST /api/projects/{id}/process/{$}", s.guard(RouteProcess, s.handleProcess))
	mux.HandleFunc("POST /api/cards/{id}/select-image/{$}", s.guard(RouteSelect, s.handleSelect))
	mux.HandleFunc("POST /api/cards/{id}/upload-image/{$}", s.guard(RouteUpload, s.handleUpload))
	mux.HandleFunc("GET /media/", s.handleMedia)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			s.log.Error("unable to write healthcheck", slog.Any("err", err))
		}
	})
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("development service listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down development service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) guard(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		var status int
		if q := s.failures[route]; len(q) > 0 {
			status, s.failures[route] = q[0], q[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"error": "injected failure"})
			return
		}
		h(w, r)
	}
}

func newID() string { return uuid.NewString() }

// splitProducts turns free text into product names: one per line or comma.
func splitProducts(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, part := range strings.Split(line, ",") {
			if name := strings.TrimSpace(part); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func cloneProject(p *domain.Project) *domain.Project {
	cp := *p
	cp.Cards = make([]domain.ProductCard, len(p.Cards))
	for i, c := range p.Cards {
		c.ImageOptions = append(make([]domain.ImageOption, 0, len(c.ImageOptions)), c.ImageOptions...)
		cp.Cards[i] = c
	}
	return &cp
}
