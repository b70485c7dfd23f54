package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewUploadAcceptsPNGAndJPEG(t *testing.T) {
	u, err := NewUpload("a.png", encodePNG(t, 40, 20))
	if err != nil {
		t.Fatalf("NewUpload png: %v", err)
	}
	if u.ContentType != "image/png" || u.Width != 40 || u.Height != 20 {
		t.Fatalf("unexpected upload: %+v", u)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	u, err = NewUpload("b.jpg", buf.Bytes())
	if err != nil {
		t.Fatalf("NewUpload jpeg: %v", err)
	}
	if u.ContentType != "image/jpeg" {
		t.Fatalf("content type = %q", u.ContentType)
	}
}

func TestNewUploadRejectsOtherTypes(t *testing.T) {
	_, err := NewUpload("doc.png", []byte("%PDF-1.4 not an image"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	if _, err := NewUpload("x.gif", gif); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("gif should be rejected, got %v", err)
	}
}

func TestNewUploadRejectsOversize(t *testing.T) {
	big := make([]byte, MaxUploadSize+1)
	copy(big, encodePNG(t, 2, 2))
	if _, err := NewUpload("big.png", big); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestLoadUpload(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "label.png")
	if err := os.WriteFile(p, encodePNG(t, 3, 3), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := LoadUpload(p)
	if err != nil {
		t.Fatalf("LoadUpload: %v", err)
	}
	if u.Name != "label.png" || u.Size() == 0 {
		t.Fatalf("unexpected upload: %+v", u)
	}
	if _, err := LoadUpload(dir); err == nil {
		t.Fatalf("expected error for directory")
	}
	if _, err := LoadUpload(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDetectContentTypeWebP(t *testing.T) {
	hdr := []byte("RIFF\x00\x00\x00\x00WEBPVP8L")
	if ct := DetectContentType(hdr); ct != "image/webp" {
		t.Fatalf("DetectContentType = %q", ct)
	}
}

func TestThumbnailKeepsAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	th := Thumbnail(src, 100, 100)
	if b := th.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("thumbnail bounds = %v", b)
	}
	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if Thumbnail(small, 100, 100) != image.Image(small) {
		t.Fatalf("small image should be returned unchanged")
	}
}

func TestThumbnailPNG(t *testing.T) {
	out, err := ThumbnailPNG(encodePNG(t, 300, 30), 60, 60)
	if err != nil {
		t.Fatalf("ThumbnailPNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 6 {
		t.Fatalf("size = %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := ThumbnailPNG([]byte("junk"), 10, 10); err == nil {
		t.Fatalf("expected decode error")
	}
}
