/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session owns the current project snapshot and workflow phase. It is
// the only place that calls the Project Service for phase transitions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"bulkimage/internal/backend"
	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
	applog "bulkimage/internal/log"
	"bulkimage/internal/storage"
	"bulkimage/internal/telemetry"
	"bulkimage/internal/workflow"
)

var (
	// ErrBusy is returned when a phase transition is already running.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNoProject is returned by operations that need a current project.
	ErrNoProject = errors.New("no current project")
	// ErrUnknownCard is returned when a card or option id is not in the snapshot.
	ErrUnknownCard = errors.New("unknown card")
	// ErrNotAllowed is returned when the card or phase does not permit the action.
	ErrNotAllowed = errors.New("action not allowed in current state")
)

// API is the subset of the Project Service client used by the session.
type API interface {
	CreateProject(ctx context.Context, name, rawText string, images []imaging.Upload) (*domain.Project, error)
	ParseInput(ctx context.Context, projectID, rawText string, images []imaging.Upload) (*domain.Project, error)
	GenerateImages(ctx context.Context, projectID string, req backend.GenerateRequest) (backend.Ack, error)
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ProcessProject(ctx context.Context, projectID string, req backend.ProcessRequest) (backend.Ack, error)
	SelectImage(ctx context.Context, cardID, optionID string) (backend.Ack, error)
	UploadImage(ctx context.Context, cardID string, img imaging.Upload) (backend.Ack, error)
}

// Store persists snapshots between runs.
type Store interface {
	SaveProject(ctx context.Context, p *domain.Project, phase domain.Phase) error
	Latest(ctx context.Context) (storage.Entry, error)
	PruneSnapshots(ctx context.Context, projectID string, keepLast int) (int64, error)
}

// State is a consistent view of the session for one render.
type State struct {
	Project    *domain.Project
	Phase      domain.Phase
	Processing bool
}

// Cards returns the snapshot's cards or nil.
func (s State) Cards() []domain.ProductCard {
	if s.Project == nil {
		return nil
	}
	return s.Project.Cards
}

// Options configures a Session. Only API is required.
type Options struct {
	API           API
	Store         Store
	Events        telemetry.Sink
	KeepSnapshots int
}

// Session is safe for concurrent use. The cached project is never mutated;
// every successful fetch replaces the pointer.
type Session struct {
	api    API
	store  Store
	events telemetry.Sink
	keep   int
	log    *slog.Logger

	mu         sync.Mutex
	project    *domain.Project
	phase      domain.Phase
	processing bool
	nextObs    int
	observers  map[int]func(State)
}

// New creates a session in the input phase with no project.
func New(opts Options) *Session {
	ev := opts.Events
	if ev == nil {
		ev = telemetry.Nop{}
	}
	return &Session{
		api:       opts.API,
		store:     opts.Store,
		events:    ev,
		keep:      opts.KeepSnapshots,
		log:       applog.WithComponent("session"),
		observers: map[int]func(State){},
	}
}

// Current returns the cached project snapshot, nil before the first create.
func (s *Session) Current() *domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Phase returns the workflow phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Processing reports whether a phase transition is running.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// State returns project, phase and processing flag read together.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Gates evaluates the grid rules against the current state.
func (s *Session) Gates() workflow.Gates {
	st := s.State()
	return workflow.Evaluate(st.Phase, st.Cards())
}

func (s *Session) stateLocked() State {
	return State{Project: s.project, Phase: s.phase, Processing: s.processing}
}

// OnChange registers fn to run after every snapshot, phase or processing change.
// fn runs on the goroutine that made the change. The returned func unregisters it.
func (s *Session) OnChange(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	st := s.stateLocked()
	fns := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// begin claims the processing flag for a phase transition.
func (s *Session) begin() error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.processing = true
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
	s.notify()
}

// currentID returns the project id or ErrNoProject.
func (s *Session) currentID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil || s.project.ID == "" {
		return "", ErrNoProject
	}
	return s.project.ID, nil
}

// commit replaces the snapshot and, when phase is non-nil, the phase. It then
// persists and notifies.
func (s *Session) commit(ctx context.Context, p *domain.Project, phase *domain.Phase) {
	s.mu.Lock()
	if p != nil {
		s.project = p
	}
	if phase != nil {
		s.phase = *phase
	}
	snap, ph := s.project, s.phase
	s.mu.Unlock()
	s.persist(ctx, snap, ph)
	s.notify()
}

// commitRefresh replaces the snapshot with p only while the project it was
// fetched for is still current. It reports whether p was kept.
func (s *Session) commitRefresh(ctx context.Context, id string, p *domain.Project) bool {
	s.mu.Lock()
	if s.project == nil || s.project.ID != id {
		s.mu.Unlock()
		return false
	}
	s.project = p
	snap, ph := s.project, s.phase
	s.mu.Unlock()
	s.persist(ctx, snap, ph)
	s.notify()
	return true
}

func (s *Session) persist(ctx context.Context, p *domain.Project, phase domain.Phase) {
	if s.store == nil || p == nil {
		return
	}
	// a cancelled caller must not lose the cache write
	ctx = context.WithoutCancel(ctx)
	if err := s.store.SaveProject(ctx, p, phase); err != nil {
		s.log.Warn("persist snapshot failed", slog.String("project", p.ID), slog.Any("err", err))
		return
	}
	if s.keep > 0 {
		if _, err := s.store.PruneSnapshots(ctx, p.ID, s.keep); err != nil {
			s.log.Warn("prune snapshots failed", slog.String("project", p.ID), slog.Any("err", err))
		}
	}
}

func phasePtr(p domain.Phase) *domain.Phase { return &p }

// Resume restores the last cached project and phase. It reports false when
// the workspace has nothing to restore.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	e, err := s.store.Latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resume: %w", err)
	}
	s.mu.Lock()
	s.project, s.phase = e.Project, e.Phase
	s.mu.Unlock()
	s.log.Debug("session resumed", slog.String("project", e.Project.ID), slog.String("phase", e.Phase.String()))
	s.notify()
	return true, nil
}

// Reset forgets the current project and returns to the input phase.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.project, s.phase = nil, domain.PhaseInput
	s.mu.Unlock()
	s.notify()
	return nil
}
