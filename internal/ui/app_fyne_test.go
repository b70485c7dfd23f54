//go:build fyne && cgo

// These tests build card widgets with the Fyne test driver. They are gated
// behind the "fyne" build tag so headless CI does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"

	"bulkimage/internal/domain"
	"bulkimage/internal/session"
)

type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, string) ([]byte, error) { return nil, context.Canceled }

func newTestShell(t *testing.T) *shell {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	w := a.NewWindow("test")
	s := &shell{opts: Options{Media: emptyFetcher{}}, sess: session.New(session.Options{}), w: w, media: newMediaCache(emptyFetcher{})}
	s.build()
	return s
}

func TestRenderShowsInputFirst(t *testing.T) {
	s := newTestShell(t)
	s.render(s.sess.State())
	if s.body.Objects[0] != s.inputView {
		t.Fatal("expected input view in input phase")
	}
}

func TestRenderHeaderGates(t *testing.T) {
	s := newTestShell(t)
	p := &domain.Project{ID: "p", Cards: []domain.ProductCard{
		{ID: "a", ProductName: "Mug", Status: domain.StatusImageSelected, ImageOptions: []domain.ImageOption{{ID: "o", OriginalURL: "/o.png", IsSelected: true}}, SelectedImageURL: "/o.png"},
	}}
	s.render(session.State{Project: p, Phase: domain.PhaseGenerated})
	if s.body.Objects[0] != s.gridView {
		t.Fatal("expected grid view")
	}
	if s.title.Text != "Product Cards (1)" {
		t.Fatalf("title = %q", s.title.Text)
	}
	if s.generate.Visible() || !s.process.Visible() {
		t.Fatalf("generate visible=%v process visible=%v", s.generate.Visible(), s.process.Visible())
	}
	if len(s.grid.Objects) != 1 {
		t.Fatalf("cards = %d", len(s.grid.Objects))
	}
	if _, ok := s.grid.Objects[0].(*widget.Card); !ok {
		t.Fatalf("card widget type %T", s.grid.Objects[0])
	}
}
