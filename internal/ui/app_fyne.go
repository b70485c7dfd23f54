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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"bulkimage/internal/crash"
	"bulkimage/internal/domain"
	"bulkimage/internal/export"
	"bulkimage/internal/imaging"
	applog "bulkimage/internal/log"
	"bulkimage/internal/session"
	"bulkimage/internal/version"
	"bulkimage/internal/workflow"
)

const opTimeout = 5 * time.Minute

type shell struct {
	opts  Options
	sess  *session.Session
	l     *slog.Logger
	w     fyne.Window
	media *mediaCache

	form       workflow.InputForm
	textEntry  *widget.Entry
	imagesBox  *fyne.Container
	inputView  fyne.CanvasObject
	gridView   fyne.CanvasObject
	body       *fyne.Container
	title      *widget.Label
	message    *widget.Label
	generate   *widget.Button
	process    *widget.Button
	refresh    *widget.Button
	grid       *fyne.Container
	empty      *widget.Label
	progress   *widget.PopUp
	status     *widget.Label
	lastRender session.State
}

// Run starts the Fyne desktop UI and blocks until the window closes.
func Run(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	sess := opts.Session
	defer crash.Recover(&crash.Target{Root: opts.WorkspaceRoot, State: func() (*domain.Project, domain.Phase) {
		st := sess.State()
		return st.Project, st.Phase
	}})
	if opts.Generate.CountPerProduct == 0 {
		opts.Generate = session.DefaultGenerateOptions()
	}
	if opts.Process.Format == "" {
		opts.Process = session.DefaultProcessOptions()
	}

	fyneApp := app.NewWithID("bulkimage")
	w := fyneApp.NewWindow("Bulk Product Image Processor")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 860)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	s := &shell{opts: opts, sess: sess, l: l, w: w, media: newMediaCache(opts.Media)}
	s.build()
	cancel := sess.OnChange(func(st session.State) {
		fyne.Do(func() { s.render(st) })
	})
	defer cancel()
	s.render(sess.State())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ok, err := sess.Resume(ctx)
		if err != nil {
			l.Warn("resume failed", slog.Any("err", err))
			return
		}
		if ok {
			l.Info("resumed last project")
			sess.Refresh(ctx)
		}
	}()

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

func (s *shell) build() {
	s.status = widget.NewLabel("Ready")

	// Input form
	s.textEntry = widget.NewMultiLineEntry()
	s.textEntry.SetPlaceHolder("One product per line, or separated by commas")
	s.textEntry.SetMinRowsVisible(8)
	s.textEntry.OnChanged = func(v string) { s.form.RawText = v }
	s.imagesBox = container.NewVBox()
	addImages := widget.NewButtonWithIcon("Add Images…", theme.FolderOpenIcon(), s.pickInputImage)
	submit := widget.NewButtonWithIcon("Process Products", theme.ConfirmIcon(), s.submitInput)
	submit.Importance = widget.HighImportance
	s.inputView = container.NewVScroll(container.NewPadded(container.NewVBox(
		widget.NewLabelWithStyle("Bulk Product Input", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabel("Enter product names or upload images with product names."),
		s.textEntry,
		container.NewHBox(addImages),
		s.imagesBox,
		container.NewHBox(submit),
	)))

	// Cards grid
	s.title = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	s.message = widget.NewLabel("")
	s.message.Wrapping = fyne.TextWrapWord
	s.generate = widget.NewButtonWithIcon("Generate Images", theme.SearchIcon(), s.runGenerate)
	s.process = widget.NewButtonWithIcon("Save & Process", theme.DocumentSaveIcon(), s.runProcess)
	s.process.Importance = widget.HighImportance
	s.refresh = widget.NewButtonWithIcon("Refresh", theme.ViewRefreshIcon(), func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			s.sess.Refresh(ctx)
		}()
	})
	s.empty = widget.NewLabel(workflow.EmptyGridMessage)
	s.grid = container.NewGridWrap(fyne.NewSize(cardWidth, cardHeight))
	header := container.NewVBox(
		container.NewBorder(nil, nil, s.title, container.NewHBox(s.refresh, s.generate, s.process)),
		s.message,
		widget.NewSeparator(),
	)
	s.gridView = container.NewBorder(header, nil, nil, nil, container.NewVScroll(container.NewVBox(s.empty, s.grid)))

	// Progress overlay
	s.progress = widget.NewModalPopUp(container.NewPadded(container.NewVBox(
		widget.NewProgressBarInfinite(),
		widget.NewLabelWithStyle("Processing your images...", fyne.TextAlignCenter, fyne.TextStyle{}),
	)), s.w.Canvas())

	s.body = container.NewStack(s.inputView)
	s.w.SetContent(container.NewBorder(nil, s.status, nil, nil, s.body))
	s.w.SetMainMenu(s.menu())
}

func (s *shell) menu() *fyne.MainMenu {
	newItem := fyne.NewMenuItem("New Batch", func() {
		if err := s.sess.Reset(); err != nil {
			dialog.ShowError(err, s.w)
			return
		}
		s.form = workflow.InputForm{}
		s.textEntry.SetText("")
		s.renderInputImages()
	})
	downloadItem := fyne.NewMenuItem("Download Processed Images…", s.downloadAll)
	pdfItem := fyne.NewMenuItem("Export Contact Sheet PDF…", s.exportPDF)
	fileMenu := fyne.NewMenu("File", newItem, fyne.NewMenuItemSeparator(), downloadItem, pdfItem)
	aboutItem := fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", "bulkimage "+version.String(), s.w)
	})
	return fyne.NewMainMenu(fileMenu, fyne.NewMenu("Help", aboutItem))
}

// render must run on the Fyne goroutine.
func (s *shell) render(st session.State) {
	if st.Phase.ShowsCards() {
		s.body.Objects = []fyne.CanvasObject{s.gridView}
	} else {
		s.body.Objects = []fyne.CanvasObject{s.inputView}
	}
	s.body.Refresh()

	h := HeaderFor(st)
	s.title.SetText(h.Title)
	s.message.SetText(h.Message)
	s.generate.SetText(h.GenerateLabel)
	toggle(s.generate, h.ShowGenerate)
	toggle(s.process, h.ShowProcess)
	if h.Busy {
		s.generate.Disable()
		s.process.Disable()
		s.progress.Show()
	} else {
		s.generate.Enable()
		s.process.Enable()
		s.progress.Hide()
	}
	if h.Empty != "" {
		s.empty.Show()
	} else {
		s.empty.Hide()
	}

	// widgets are rebuilt only when the snapshot or phase changed
	if st.Project != s.lastRender.Project || st.Phase != s.lastRender.Phase {
		objs := make([]fyne.CanvasObject, 0, len(st.Cards()))
		for _, c := range st.Cards() {
			objs = append(objs, s.cardWidget(CardViewFor(c, st.Phase)))
		}
		s.grid.Objects = objs
		s.grid.Refresh()
	}
	s.lastRender = st
}

func toggle(o fyne.CanvasObject, visible bool) {
	if visible {
		o.Show()
		return
	}
	o.Hide()
}

func (s *shell) renderInputImages() {
	objs := make([]fyne.CanvasObject, 0, len(s.form.Images))
	for i, img := range s.form.Images {
		label := widget.NewLabel(fmt.Sprintf("%s (%dx%d, %s)", img.Name, img.Width, img.Height, humanSize(img.Size())))
		remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			s.form.RemoveImage(i)
			s.renderInputImages()
		})
		objs = append(objs, container.NewBorder(nil, nil, nil, remove, label))
	}
	s.imagesBox.Objects = objs
	s.imagesBox.Refresh()
}

func (s *shell) pickInputImage() {
	s.openImage(func(u imaging.Upload) {
		s.form.Images = append(s.form.Images, u)
		s.renderInputImages()
	})
}

// openImage shows a file dialog and validates the chosen file as an upload.
func (s *shell) openImage(done func(imaging.Upload)) {
	fd := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, s.w)
			return
		}
		if r == nil {
			return
		}
		defer func() { _ = r.Close() }()
		data, err := io.ReadAll(io.LimitReader(r, imaging.MaxUploadSize+1))
		if err != nil {
			dialog.ShowError(err, s.w)
			return
		}
		u, err := imaging.NewUpload(r.URI().Name(), data)
		if err != nil {
			dialog.ShowError(err, s.w)
			return
		}
		done(u)
	}, s.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".jpg", ".jpeg", ".png", ".webp"}))
	fd.Show()
}

func (s *shell) submitInput() {
	form := s.form
	if err := form.Validate(); err != nil {
		dialog.ShowError(err, s.w)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := form.Submit(ctx, s.sess)
		fyne.Do(func() {
			if err != nil {
				s.l.Error("submit input failed", slog.Any("err", err))
				dialog.ShowError(err, s.w)
				return
			}
			s.status.SetText("Products parsed.")
		})
	}()
}

func (s *shell) runGenerate() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		ack, err := s.sess.GenerateImages(ctx, s.opts.Generate)
		s.finish(ack, err, "Images generated.")
	}()
}

func (s *shell) runProcess() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		ack, err := s.sess.SaveAndProcess(ctx, s.opts.Process)
		s.finish(ack, err, "Processing finished.")
	}()
}

func (s *shell) finish(ack interface{ Message() string }, err error, fallback string) {
	fyne.Do(func() {
		if err != nil {
			if !errors.Is(err, session.ErrBusy) {
				dialog.ShowError(err, s.w)
			}
			return
		}
		msg := fallback
		if m := ack.Message(); m != "" {
			msg = m
		}
		s.status.SetText(msg)
	})
}

func (s *shell) downloadAll() {
	p := s.sess.Current()
	if p == nil {
		dialog.ShowInformation("Download", "No project yet.", s.w)
		return
	}
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		dir := uri.Path()
		s.status.SetText("Downloading…")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			res, err := export.DownloadFinals(ctx, s.opts.Media, p, dir, 0)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, s.w)
					s.status.SetText("Download failed.")
					return
				}
				s.status.SetText(fmt.Sprintf("Saved %d images, skipped %d.", len(res.Downloaded), len(res.Skipped)))
			})
		}()
	}, s.w)
}

func (s *shell) exportPDF() {
	p := s.sess.Current()
	if p == nil {
		dialog.ShowInformation("Export", "No project yet.", s.w)
		return
	}
	save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		out := wc.URI().Path()
		_ = wc.Close()
		s.status.SetText("Exporting…")
		go func() {
			err := s.writePDF(p, out)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, s.w)
					s.status.SetText("Export failed.")
					return
				}
				s.status.SetText("Exported " + filepath.Base(out))
			})
		}()
	}, s.w)
	save.SetFileName(strings.ReplaceAll(strings.ToLower(workflow.DefaultProjectName), " ", "-") + ".pdf")
	save.SetFilter(fstorage.NewExtensionFileFilter([]string{".pdf"}))
	save.Show()
}

func (s *shell) writePDF(p *domain.Project, out string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	tmp, err := os.MkdirTemp("", "bulkimage-pdf-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	res, err := export.DownloadFinals(ctx, s.opts.Media, p, tmp, 0)
	if err != nil {
		return err
	}
	return export.ProjectPDF(p, res.ByCard(), out, export.PDFOptions{})
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
