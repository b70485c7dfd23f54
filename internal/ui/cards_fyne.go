//go:build fyne && cgo

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
	"bytes"
	"context"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"bulkimage/internal/domain"
	"bulkimage/internal/imaging"
	applog "bulkimage/internal/log"
)

const (
	cardWidth  = 300
	cardHeight = 470
	mainImage  = 220
	thumbSize  = 64
)

var toneColors = map[domain.Tone]color.NRGBA{
	domain.ToneNeutral: {R: 107, G: 114, B: 128, A: 255},
	domain.ToneInfo:    {R: 37, G: 99, B: 235, A: 255},
	domain.ToneSuccess: {R: 22, G: 163, B: 74, A: 255},
	domain.ToneAccent:  {R: 147, G: 51, B: 234, A: 255},
	domain.ToneDone:    {R: 5, G: 150, B: 105, A: 255},
	domain.ToneDanger:  {R: 220, G: 38, B: 38, A: 255},
}

// mediaCache keeps fetched image bytes per URL for the lifetime of the window.
type mediaCache struct {
	fetch MediaFetcher
	l     *slog.Logger

	mu   sync.Mutex
	data map[string][]byte
}

func newMediaCache(f MediaFetcher) *mediaCache {
	return &mediaCache{fetch: f, l: applog.WithComponent("ui.media"), data: map[string][]byte{}}
}

// load calls done on the Fyne goroutine once the image bytes are available.
func (m *mediaCache) load(url string, done func([]byte)) {
	m.mu.Lock()
	b, ok := m.data[url]
	m.mu.Unlock()
	if ok {
		done(b)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b, err := m.fetch.Fetch(ctx, url)
		if err != nil {
			m.l.Warn("image fetch failed", slog.String("url", url), slog.Any("err", err))
			return
		}
		m.mu.Lock()
		m.data[url] = b
		m.mu.Unlock()
		fyne.Do(func() { done(b) })
	}()
}

// imageSlot swaps its placeholder for the image at url once loaded.
func (s *shell) imageSlot(url string, size float32, placeholder fyne.CanvasObject) fyne.CanvasObject {
	bg := canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground))
	bg.SetMinSize(fyne.NewSize(size, size))
	slot := container.NewStack(bg, placeholder)
	if url == "" {
		return slot
	}
	s.media.load(url, func(b []byte) {
		img := canvas.NewImageFromReader(bytes.NewReader(b), url)
		if img == nil {
			return
		}
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(size, size))
		slot.Objects = []fyne.CanvasObject{bg, img}
		slot.Refresh()
	})
	return slot
}

func badge(text string, tone domain.Tone) fyne.CanvasObject {
	bg := canvas.NewRectangle(toneColors[tone])
	bg.CornerRadius = 4
	t := canvas.NewText(text, color.White)
	t.TextSize = theme.CaptionTextSize()
	t.TextStyle = fyne.TextStyle{Bold: true}
	return container.NewStack(bg, container.NewPadded(t))
}

func (s *shell) cardWidget(v CardView) fyne.CanvasObject {
	title := widget.NewLabelWithStyle(v.Title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	title.Truncation = fyne.TextTruncateEllipsis
	head := container.NewBorder(nil, nil, nil, badge(v.Badge, v.Tone), title)

	hint := widget.NewLabelWithStyle("No image selected\n"+v.Placeholder, fyne.TextAlignCenter, fyne.TextStyle{Italic: true})
	hint.Wrapping = fyne.TextWrapWord
	main := s.imageSlot(v.MainImage, mainImage, container.NewCenter(hint))
	if v.Selection != "" {
		main = container.NewStack(main, container.NewVBox(container.NewHBox(badge(v.Selection, domain.ToneSuccess))))
	}

	rows := []fyne.CanvasObject{head, main}
	if v.FinalImage != "" && v.FinalImage != v.MainImage {
		rows = append(rows, container.NewHBox(widget.NewLabel("Processed"), s.imageSlot(v.FinalImage, thumbSize, widget.NewLabel("…"))))
	}
	if v.Count != "" {
		rows = append(rows, widget.NewLabel(v.Count))
	}
	if len(v.Options) > 0 {
		thumbs := make([]fyne.CanvasObject, 0, len(v.Options))
		for _, o := range v.Options {
			btn := widget.NewButton("Use", func() { s.selectOption(v.ID, o.ID) })
			if o.Selected {
				btn.SetText("Selected")
				btn.Importance = widget.SuccessImportance
			}
			if !v.CanSelect {
				btn.Disable()
			}
			thumbs = append(thumbs, container.NewVBox(s.imageSlot(o.Thumb, thumbSize, widget.NewLabel("…")), btn))
		}
		rows = append(rows, container.NewHScroll(container.NewHBox(thumbs...)))
	}

	var actions []fyne.CanvasObject
	if v.CanUpload {
		actions = append(actions, widget.NewButtonWithIcon("Upload", theme.FolderOpenIcon(), func() { s.uploadFor(v.ID) }))
	}
	if v.Downloadable {
		actions = append(actions, widget.NewButtonWithIcon("Download", theme.DownloadIcon(), func() { s.downloadOne(v, v.FinalImage) }))
	}
	if len(actions) > 0 {
		rows = append(rows, container.NewHBox(actions...))
	}
	if v.Notice != "" {
		n := widget.NewLabel(v.Notice)
		n.Wrapping = fyne.TextWrapWord
		rows = append(rows, n)
	}
	return widget.NewCard("", "", container.NewVBox(rows...))
}

func (s *shell) selectOption(cardID, optionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err := s.sess.SelectImage(ctx, cardID, optionID)
		s.cardError(err)
	}()
}

func (s *shell) uploadFor(cardID string) {
	s.openImage(func(u imaging.Upload) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			err := s.sess.UploadImage(ctx, cardID, u)
			s.cardError(err)
		}()
	})
}

// cardError shows refused per-card actions in the status bar. Service
// failures are already logged by the session and stay off screen.
func (s *shell) cardError(err error) {
	msg := CardErrorNotice(err)
	if msg == "" {
		return
	}
	fyne.Do(func() { s.status.SetText(msg) })
}

func (s *shell) downloadOne(v CardView, url string) {
	save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		s.media.load(url, func(b []byte) {
			defer func() { _ = wc.Close() }()
			if _, err := wc.Write(b); err != nil {
				dialog.ShowError(err, s.w)
				return
			}
			s.status.SetText("Saved " + wc.URI().Name())
		})
	}, s.w)
	save.SetFileName(v.FileName)
	save.Show()
}
