/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"bulkimage/internal/domain"
)

type mapFetcher struct {
	files map[string][]byte
	calls atomic.Int32
}

func (m *mapFetcher) Fetch(_ context.Context, u string) ([]byte, error) {
	m.calls.Add(1)
	b, ok := m.files[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func sampleProject() *domain.Project {
	return &domain.Project{
		ID:   "p1",
		Name: "Spring catalogue",
		Cards: []domain.ProductCard{
			{ID: "c1", ProductName: "Red Mug", Status: domain.StatusCompleted, FinalImageURL: "/media/final/c1.png"},
			{ID: "c2", ProductName: "Red Mug", Status: domain.StatusCompleted, FinalImageURL: "/media/final/c2.png"},
			{ID: "c3", ProductName: "Lamp", Status: domain.StatusImagesFetched, ImageOptions: []domain.ImageOption{{ID: "o1", OriginalURL: "/x.png"}}},
			{ID: "c4", ProductName: "Desk", Status: domain.StatusCompleted, FinalImageURL: "/media/final/missing.png"},
		},
	}
}

func TestDownloadFinals(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := &mapFetcher{files: map[string][]byte{
		"/media/final/c1.png": testPNG(t, 8, 8),
		"/media/final/c2.png": testPNG(t, 4, 4),
	}}
	res, err := DownloadFinals(context.Background(), f, sampleProject(), dir, 2)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(res.Downloaded) != 2 {
		t.Fatalf("downloaded = %d, want 2", len(res.Downloaded))
	}
	if got := filepath.Base(res.Downloaded[0].Path); got != "Red Mug_processed.png" {
		t.Fatalf("first name = %q", got)
	}
	if got := filepath.Base(res.Downloaded[1].Path); got != "Red Mug_processed_2.png" {
		t.Fatalf("second name = %q", got)
	}
	for _, d := range res.Downloaded {
		b, err := os.ReadFile(d.Path)
		if err != nil || len(b) != d.Bytes {
			t.Fatalf("read %s: %v (%d bytes, want %d)", d.Path, err, len(b), d.Bytes)
		}
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %d, want 2", len(res.Skipped))
	}
	if res.Skipped[0].CardID != "c3" || !errors.Is(res.Skipped[0].Err, ErrNoFinalImage) {
		t.Fatalf("unexpected first skip: %+v", res.Skipped[0])
	}
	if res.Skipped[1].CardID != "c4" || res.Skipped[1].Err == nil {
		t.Fatalf("unexpected second skip: %+v", res.Skipped[1])
	}
	if n := f.calls.Load(); n != 3 {
		t.Fatalf("fetch calls = %d, want 3", n)
	}
	if m := res.ByCard(); m["c1"] == "" || m["c3"] != "" {
		t.Fatalf("ByCard = %v", m)
	}
}

func TestDownloadFinalsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mapFetcher{files: map[string][]byte{}}
	_, err := DownloadFinals(ctx, f, sampleProject(), t.TempDir(), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDownloadFinalsNilProject(t *testing.T) {
	if _, err := DownloadFinals(context.Background(), &mapFetcher{}, nil, t.TempDir(), 0); err == nil {
		t.Fatal("expected error for nil project")
	}
}

func TestProjectPDF_CreatesFile(t *testing.T) {
	root := t.TempDir()
	img := filepath.Join(root, "c1.png")
	if err := os.WriteFile(img, testPNG(t, 64, 32), 0o644); err != nil {
		t.Fatal(err)
	}
	bogus := filepath.Join(root, "c2.png")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := sampleProject()
	for i := 0; i < 12; i++ {
		p.Cards = append(p.Cards, domain.ProductCard{ID: "extra", ProductName: "Ünïcode item", Status: domain.StatusPending})
	}
	out := filepath.Join(root, "exports", "sheet.pdf")
	err := ProjectPDF(p, map[string]string{"c1": img, "c2": bogus}, out, PDFOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestProjectPDF_EmptyProject(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.pdf")
	if err := ProjectPDF(&domain.Project{ID: "p"}, nil, out, PDFOptions{NoImages: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("missing output: %v", err)
	}
	if err := ProjectPDF(nil, nil, out, PDFOptions{}); err == nil {
		t.Fatal("expected error for nil project")
	}
}

func TestUniqueNamesNeverRepeat(t *testing.T) {
	cards := []domain.ProductCard{
		{ID: "1", ProductName: "Mug"},
		{ID: "2", ProductName: "mug"},
		{ID: "3", ProductName: "Mug"},
		{ID: "4", ProductName: "Mug_processed_2"},
		{ID: "5", ProductName: ""},
		{ID: "6", ProductName: " "},
	}
	got := uniqueNames(cards)
	want := []string{
		"Mug_processed.png",
		"mug_processed_2.png",
		"Mug_processed_3.png",
		"Mug_processed_2_processed.png",
		"5_processed.png",
		"6_processed.png",
	}
	seen := map[string]bool{}
	for i, name := range got {
		if name != want[i] {
			t.Fatalf("name %d = %q, want %q", i, name, want[i])
		}
		key := strings.ToLower(name)
		if seen[key] {
			t.Fatalf("duplicate name %q in %v", name, got)
		}
		seen[key] = true
	}
}
