/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes a project's processed images and a PDF contact sheet
// to the local filesystem.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"bulkimage/internal/domain"
	applog "bulkimage/internal/log"
	"bulkimage/internal/storage"
	"bulkimage/internal/workflow"
)

// DefaultParallel bounds concurrent downloads.
const DefaultParallel = 4

// ErrNoFinalImage marks a card that has not been processed.
var ErrNoFinalImage = errors.New("no final image")

// Fetcher downloads a media URL returned by the Project Service.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Download is one saved final image.
type Download struct {
	CardID string
	Path   string
	Bytes  int
}

// Skipped is a card that produced no file.
type Skipped struct {
	CardID string
	Name   string
	Err    error
}

// Result lists what DownloadFinals wrote and skipped, both in card order.
type Result struct {
	Downloaded []Download
	Skipped    []Skipped
}

// ByCard maps card id to the downloaded file path.
func (r Result) ByCard() map[string]string {
	out := make(map[string]string, len(r.Downloaded))
	for _, d := range r.Downloaded {
		out[d.CardID] = d.Path
	}
	return out
}

// DownloadFinals saves every card's final image into dir. Cards without a
// final image, and cards whose fetch fails, are reported in Skipped; only a
// context cancellation or an unwritable dir fails the whole call.
func DownloadFinals(ctx context.Context, f Fetcher, p *domain.Project, dir string, parallel int) (Result, error) {
	var res Result
	if p == nil {
		return res, errors.New("project is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("ensure download dir: %w", err)
	}
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	l := applog.WithOperation(applog.WithComponent("export"), "download").With(slog.String("project", p.ID))

	names := uniqueNames(p.Cards)
	slots := make([]*Download, len(p.Cards))
	errs := make([]error, len(p.Cards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	// each goroutine writes only its own index of slots and errs
	for i, c := range p.Cards {
		if c.FinalImageURL == "" {
			errs[i] = ErrNoFinalImage
			continue
		}
		g.Go(func() error {
			data, err := f.Fetch(gctx, c.FinalImageURL)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				l.Warn("fetch final image failed", slog.String("card", c.ID), slog.Any("err", err))
				return nil
			}
			path := filepath.Join(dir, names[i])
			if err := storage.WriteFileAtomic(path, data); err != nil {
				return fmt.Errorf("write %s: %w", names[i], err)
			}
			slots[i] = &Download{CardID: c.ID, Path: path, Bytes: len(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	for i, c := range p.Cards {
		if slots[i] != nil {
			res.Downloaded = append(res.Downloaded, *slots[i])
			continue
		}
		res.Skipped = append(res.Skipped, Skipped{CardID: c.ID, Name: c.ProductName, Err: errs[i]})
	}
	l.Info("downloads finished", slog.Int("saved", len(res.Downloaded)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// uniqueNames returns one file name per card; a name already handed out gets
// the lowest free numeric suffix in card order. Names compare case-insensitively.
func uniqueNames(cards []domain.ProductCard) []string {
	out := make([]string, len(cards))
	used := map[string]bool{}
	for i, c := range cards {
		name := workflow.DownloadName(c)
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = stem + "_" + strconv.Itoa(n) + ext
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}
