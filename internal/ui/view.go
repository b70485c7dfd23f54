/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"

	"bulkimage/internal/domain"
	"bulkimage/internal/session"
	"bulkimage/internal/workflow"
)

// MediaFetcher downloads images referenced by the Project Service.
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Options wires the desktop UI to a session. Session and Media are required.
type Options struct {
	Session       *session.Session
	Media         MediaFetcher
	WorkspaceRoot string
	Generate      session.GenerateOptions
	Process       session.ProcessOptions
}

func (o Options) validate() error {
	if o.Session == nil {
		return fmt.Errorf("ui: session is required")
	}
	if o.Media == nil {
		return fmt.Errorf("ui: media fetcher is required")
	}
	return nil
}

// Header is the cards grid header for one render.
type Header struct {
	Title         string
	Message       string
	GenerateLabel string
	ShowGenerate  bool
	ShowProcess   bool
	Busy          bool
	Empty         string
}

// HeaderFor derives the header from a session state.
func HeaderFor(st session.State) Header {
	cards := st.Cards()
	g := workflow.Evaluate(st.Phase, cards)
	h := Header{
		Title:         fmt.Sprintf("Product Cards (%d)", len(cards)),
		Message:       g.Message,
		GenerateLabel: g.GenerateLabel,
		ShowGenerate:  g.CanGenerate,
		ShowProcess:   g.CanProcess,
		Busy:          st.Processing,
	}
	if len(cards) == 0 && st.Phase.ShowsCards() {
		h.Empty = workflow.EmptyGridMessage
	}
	return h
}

// OptionView is one carousel entry.
type OptionView struct {
	ID       string
	Thumb    string
	Selected bool
}

// CardView is everything a card widget shows.
type CardView struct {
	ID           string
	Title        string
	Badge        string
	Tone         domain.Tone
	Selection    string
	MainImage    string
	Placeholder  string
	Count        string
	Notice       string
	CanSelect    bool
	CanUpload    bool
	Downloadable bool
	FinalImage   string
	FileName     string
	Options      []OptionView
}

// CardViewFor derives a card widget's contents.
func CardViewFor(c domain.ProductCard, phase domain.Phase) CardView {
	badge, tone := c.Status.Badge()
	v := CardView{
		ID:           c.ID,
		Title:        c.ProductName,
		Badge:        badge,
		Tone:         tone,
		Selection:    workflow.SelectionBadge(c),
		MainImage:    workflow.MainImage(c),
		Placeholder:  workflow.PlaceholderHint(c),
		Count:        workflow.ImageCountLabel(c),
		Notice:       workflow.Notice(c, phase),
		CanSelect:    workflow.CanSelect(c),
		CanUpload:    workflow.CanUpload(phase),
		Downloadable: c.FinalImageURL != "",
		FinalImage:   c.FinalImageURL,
		FileName:     workflow.DownloadName(c),
	}
	for _, o := range c.ImageOptions {
		v.Options = append(v.Options, OptionView{ID: o.ID, Thumb: workflow.ThumbnailURL(o), Selected: o.IsSelected})
	}
	return v
}

// CardErrorNotice is the status bar text for a failed select or upload. Only
// actions refused before any request is sent are shown; service failures are
// logged by the session and leave the card as it was.
func CardErrorNotice(err error) string {
	if errors.Is(err, session.ErrNotAllowed) || errors.Is(err, session.ErrUnknownCard) {
		return err.Error()
	}
	return ""
}
