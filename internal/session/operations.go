/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"bulkimage/internal/backend"
	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
	applog "bulkimage/internal/log"
	"bulkimage/internal/telemetry"
	"bulkimage/internal/workflow"
)

// GenerateOptions controls the image search.
type GenerateOptions struct {
	CountPerProduct int    `validate:"min=1,max=50"`
	Size            string `validate:"oneof=small medium large"`
}

// ProcessOptions controls batch processing.
type ProcessOptions struct {
	RemoveBackground bool
	AddBackground    bool
	Format           string `validate:"oneof=png jpg jpeg webp"`
}

// DefaultGenerateOptions returns 5 medium images per product.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{CountPerProduct: 5, Size: "medium"}
}

// DefaultProcessOptions removes and adds a background and outputs PNG.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{RemoveBackground: true, AddBackground: true, Format: "png"}
}

var validate = validator.New()

// CreateProject creates a project and caches it. The phase stays input.
func (s *Session) CreateProject(ctx context.Context, name, rawText string, images []imaging.Upload) (*domain.Project, error) {
	l := applog.WithOperation(s.log, "create_project")
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	p, err := s.api.CreateProject(ctx, name, rawText, images)
	if err != nil {
		l.Error("create project failed", slog.Any("err", err))
		return nil, err
	}
	s.commit(ctx, p, phasePtr(domain.PhaseInput))
	s.events.Event(telemetry.EventProjectCreated, map[string]any{"images": len(images)})
	l.Info("project created", slog.String("project", p.ID))
	return p, nil
}

// ParseInput turns text and images into cards and moves to the parsed phase.
func (s *Session) ParseInput(ctx context.Context, projectID, rawText string, images []imaging.Upload) (*domain.Project, error) {
	l := applog.WithOperation(s.log, "parse_input").With(slog.String("project", projectID))
	if projectID == "" {
		return nil, ErrNoProject
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	p, err := s.api.ParseInput(ctx, projectID, rawText, images)
	if err != nil {
		l.Error("parse input failed", slog.Any("err", err))
		return nil, err
	}
	s.commit(ctx, p, phasePtr(domain.PhaseParsed))
	s.events.Event(telemetry.EventInputParsed, map[string]any{"cards": len(p.Cards), "images": len(images)})
	l.Info("input parsed", slog.Int("cards", len(p.Cards)))
	return p, nil
}

// GenerateImages starts the image search, refreshes and moves to the generated phase.
func (s *Session) GenerateImages(ctx context.Context, opts GenerateOptions) (backend.Ack, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("generate options: %w", err)
	}
	id, err := s.currentID()
	if err != nil {
		return nil, err
	}
	l := applog.WithOperation(s.log, "generate_images").With(slog.String("project", id))
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	ack, err := s.api.GenerateImages(ctx, id, backend.GenerateRequest{NumImagesPerProduct: opts.CountPerProduct, ImageSize: opts.Size})
	if err != nil {
		l.Error("generate images failed", slog.Any("err", err))
		return nil, err
	}
	s.Refresh(ctx)
	s.commit(ctx, nil, phasePtr(domain.PhaseGenerated))
	s.events.Event(telemetry.EventImagesGenerated, map[string]any{"per_product": opts.CountPerProduct, "size": opts.Size})
	l.Info("images generated")
	return ack, nil
}

// SaveAndProcess starts batch processing, refreshes and moves to the completed phase.
func (s *Session) SaveAndProcess(ctx context.Context, opts ProcessOptions) (backend.Ack, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("process options: %w", err)
	}
	id, err := s.currentID()
	if err != nil {
		return nil, err
	}
	l := applog.WithOperation(s.log, "process_project").With(slog.String("project", id))
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	ack, err := s.api.ProcessProject(ctx, id, backend.ProcessRequest{
		RemoveBackground: opts.RemoveBackground,
		AddBackground:    opts.AddBackground,
		OutputFormat:     opts.Format,
	})
	if err != nil {
		l.Error("process project failed", slog.Any("err", err))
		return nil, err
	}
	s.Refresh(ctx)
	s.commit(ctx, nil, phasePtr(domain.PhaseCompleted))
	s.events.Event(telemetry.EventProjectProcessed, map[string]any{"format": opts.Format})
	l.Info("project processed")
	return ack, nil
}

// Refresh re-fetches the snapshot. Failures are logged and leave the cached
// pointer untouched. A response for a project that is no longer current is
// dropped. The phase never changes. It reports whether the snapshot was
// replaced.
func (s *Session) Refresh(ctx context.Context) bool {
	id, err := s.currentID()
	if err != nil {
		return false
	}
	l := applog.WithOperation(s.log, "refresh_project").With(slog.String("project", id))
	p, err := s.api.GetProject(ctx, id)
	if err != nil {
		l.Warn("refresh project failed", slog.Any("err", err))
		return false
	}
	if !s.commitRefresh(ctx, id, p) {
		l.Debug("stale refresh dropped")
		return false
	}
	return true
}

// SelectImage marks an option of a card as selected and refreshes on success.
// It does not take the processing flag.
func (s *Session) SelectImage(ctx context.Context, cardID, optionID string) error {
	l := applog.WithOperation(s.log, "select_image").With(slog.String("card", cardID), slog.String("option", optionID))
	st := s.State()
	if st.Project == nil {
		return ErrNoProject
	}
	c, ok := st.Project.Card(cardID)
	if !ok {
		return fmt.Errorf("%s: %w", cardID, ErrUnknownCard)
	}
	if _, ok := c.Option(optionID); !ok {
		return fmt.Errorf("option %s of card %s: %w", optionID, cardID, ErrUnknownCard)
	}
	if !workflow.CanSelect(c) {
		return fmt.Errorf("select on %s card: %w", c.Status, ErrNotAllowed)
	}
	if _, err := s.api.SelectImage(ctx, cardID, optionID); err != nil {
		l.Error("select image failed", slog.Any("err", err))
		return err
	}
	s.events.Event(telemetry.EventImageSelected, nil)
	s.Refresh(ctx)
	return nil
}

// UploadImage replaces a card's selection with a custom image and refreshes on
// success. Uploads are only accepted in the generated phase.
func (s *Session) UploadImage(ctx context.Context, cardID string, img imaging.Upload) error {
	l := applog.WithOperation(s.log, "upload_image").With(slog.String("card", cardID), slog.String("file", img.Name))
	st := s.State()
	if st.Project == nil {
		return ErrNoProject
	}
	if _, ok := st.Project.Card(cardID); !ok {
		return fmt.Errorf("%s: %w", cardID, ErrUnknownCard)
	}
	if !workflow.CanUpload(st.Phase) {
		return fmt.Errorf("upload in %s phase: %w", st.Phase, ErrNotAllowed)
	}
	if _, err := s.api.UploadImage(ctx, cardID, img); err != nil {
		l.Error("upload image failed", slog.Any("err", err))
		return err
	}
	s.events.Event(telemetry.EventImageUploaded, map[string]any{"bytes": img.Size()})
	s.Refresh(ctx)
	return nil
}
