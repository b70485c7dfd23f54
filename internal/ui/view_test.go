package ui

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"bulkimage/internal/backend"
	"bulkimage/internal/domain"
	"bulkimage/internal/session"
	"bulkimage/internal/workflow"
)

func TestHeaderFor(t *testing.T) {
	p := &domain.Project{ID: "p", Cards: []domain.ProductCard{
		{ID: "a", ProductName: "Mug", Status: domain.StatusPending},
		{ID: "b", ProductName: "Lamp", Status: domain.StatusImagesFetched, ImageOptions: []domain.ImageOption{{ID: "1"}, {ID: "2"}, {ID: "3"}}},
	}}
	h := HeaderFor(session.State{Project: p, Phase: domain.PhaseGenerated})
	if h.Title != "Product Cards (2)" {
		t.Fatalf("title = %q", h.Title)
	}
	if !h.ShowGenerate || h.ShowProcess {
		t.Fatalf("gates = generate %v, process %v", h.ShowGenerate, h.ShowProcess)
	}
	if h.GenerateLabel != "Generate Missing Images" {
		t.Fatalf("label = %q", h.GenerateLabel)
	}
	if h.Empty != "" {
		t.Fatalf("unexpected empty message %q", h.Empty)
	}
}

func TestHeaderForEmptyGrid(t *testing.T) {
	h := HeaderFor(session.State{Project: &domain.Project{ID: "p"}, Phase: domain.PhaseParsed, Processing: true})
	if h.Empty != workflow.EmptyGridMessage {
		t.Fatalf("empty = %q", h.Empty)
	}
	if !h.Busy {
		t.Fatal("expected busy header")
	}
	if h := HeaderFor(session.State{}); h.Empty != "" || h.ShowGenerate {
		t.Fatalf("input phase header = %+v", h)
	}
}

func TestCardViewFor(t *testing.T) {
	c := domain.ProductCard{
		ID:          "c1",
		ProductName: "Desk/Chair",
		Status:      domain.StatusImageSelected,
		ImageOptions: []domain.ImageOption{
			{ID: "o1", OriginalURL: "/big1.png", ThumbnailURL: "/t1.png"},
			{ID: "o2", OriginalURL: "/big2.png", IsSelected: true},
		},
		SelectedImageURL: "/big2.png",
	}
	v := CardViewFor(c, domain.PhaseGenerated)
	if v.Badge != "Image Selected" || v.Tone != domain.ToneSuccess {
		t.Fatalf("badge = %q/%s", v.Badge, v.Tone)
	}
	if v.MainImage != "/big2.png" || v.Selection != "Selected" || v.Count != "2 images found" {
		t.Fatalf("view = %+v", v)
	}
	if !v.CanSelect || !v.CanUpload || v.Downloadable {
		t.Fatalf("actions = %+v", v)
	}
	if v.FileName != "Desk_Chair_processed.png" {
		t.Fatalf("file name = %q", v.FileName)
	}
	if len(v.Options) != 2 || v.Options[0].Thumb != "/t1.png" || v.Options[1].Thumb != "/big2.png" || !v.Options[1].Selected {
		t.Fatalf("options = %+v", v.Options)
	}

	done := CardViewFor(domain.ProductCard{ID: "c2", Status: domain.StatusCompleted, FinalImageURL: "/f.png"}, domain.PhaseCompleted)
	if !done.Downloadable || done.CanUpload || done.MainImage != "" || done.FinalImage != "/f.png" {
		t.Fatalf("completed view = %+v", done)
	}
}

func TestFinalImageKeepsMainImagePriority(t *testing.T) {
	c := domain.ProductCard{
		ID:               "c3",
		Status:           domain.StatusImageSelected,
		SelectedImageURL: "/chosen.png",
		FinalImageURL:    "/final.png",
	}
	v := CardViewFor(c, domain.PhaseCompleted)
	if v.MainImage != "/chosen.png" {
		t.Fatalf("main image = %q", v.MainImage)
	}
	if !v.Downloadable || v.FinalImage != "/final.png" {
		t.Fatalf("download = %v %q", v.Downloadable, v.FinalImage)
	}
	if CardViewFor(domain.ProductCard{ID: "c4", Status: domain.StatusImagesFetched}, domain.PhaseGenerated).Downloadable {
		t.Fatalf("card without final image offers download")
	}
}

func TestCardErrorNotice(t *testing.T) {
	req := &backend.RequestError{Op: "select image", Method: http.MethodPost, Path: "/api/cards/c1/select-image/", Status: 500}
	if got := CardErrorNotice(req); got != "" {
		t.Fatalf("service failure shown: %q", got)
	}
	if got := CardErrorNotice(errors.New("connection refused")); got != "" {
		t.Fatalf("transport failure shown: %q", got)
	}
	refused := fmt.Errorf("select on pending card: %w", session.ErrNotAllowed)
	if got := CardErrorNotice(refused); got != refused.Error() {
		t.Fatalf("refused action = %q", got)
	}
}
