/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imaging validates user supplied product images before they are
// sent to the Project Service and produces small previews for the UI and
// PDF export.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp" // register decoder
)

// MaxUploadSize is the largest accepted image, in bytes.
const MaxUploadSize = 10 << 20

var (
	// ErrUnsupportedImage is returned for anything but JPEG, PNG or WebP.
	ErrUnsupportedImage = errors.New("unsupported image type")
	// ErrImageTooLarge is returned for images over MaxUploadSize.
	ErrImageTooLarge = errors.New("image exceeds 10MB limit")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Upload is a validated image ready to be sent as a multipart file part.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Size returns the payload length in bytes.
func (u Upload) Size() int { return len(u.Data) }

// LoadUpload reads and validates an image file from disk.
func LoadUpload(path string) (Upload, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	if fi.IsDir() {
		return Upload{}, fmt.Errorf("%s: is a directory", path)
	}
	if fi.Size() > MaxUploadSize {
		return Upload{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrImageTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, err
	}
	return NewUpload(filepath.Base(path), data)
}

// NewUpload validates in-memory image bytes. The content type is sniffed from
// the data, never taken from the file name.
func NewUpload(name string, data []byte) (Upload, error) {
	if len(data) > MaxUploadSize {
		return Upload{}, fmt.Errorf("%s: %w", name, ErrImageTooLarge)
	}
	ct := DetectContentType(data)
	if !allowedTypes[ct] {
		return Upload{}, fmt.Errorf("%s (%s): %w", name, ct, ErrUnsupportedImage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Upload{}, fmt.Errorf("%s: decode header: %w", name, err)
	}
	return Upload{Name: name, ContentType: ct, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// DetectContentType sniffs the MIME type of data.
func DetectContentType(data []byte) string {
	return http.DetectContentType(data)
}
