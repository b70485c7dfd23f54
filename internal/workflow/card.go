/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package workflow

import (
	"fmt"
	"strings"
	"unicode"

	"bulkimage/internal/domain"
)

// MainImage picks the image shown large on a card:
// uploaded image, then the explicitly selected URL, then the option flagged
// selected, then the first option. An empty string means show the placeholder.
func MainImage(c domain.ProductCard) string {
	if c.UploadedImage != "" {
		return c.UploadedImage
	}
	if c.SelectedImageURL != "" {
		return c.SelectedImageURL
	}
	if len(c.ImageOptions) == 0 {
		return ""
	}
	if o, ok := c.SelectedOption(); ok {
		return o.OriginalURL
	}
	return c.ImageOptions[0].OriginalURL
}

// HasSelection reports whether the user has chosen or uploaded an image.
func HasSelection(c domain.ProductCard) bool {
	return c.SelectedImageURL != "" || c.UploadedImage != ""
}

// SelectionBadge is the overlay label on the main image, empty when nothing is chosen.
func SelectionBadge(c domain.ProductCard) string {
	switch {
	case c.UploadedImage != "":
		return "Custom Upload"
	case c.SelectedImageURL != "":
		return "Selected"
	}
	return ""
}

// CanSelect reports whether the option carousel accepts clicks.
func CanSelect(c domain.ProductCard) bool {
	if len(c.ImageOptions) == 0 {
		return false
	}
	return c.Status == domain.StatusImagesFetched || c.Status == domain.StatusImageSelected
}

// CanUpload reports whether a custom image may be uploaded in this phase.
func CanUpload(phase domain.Phase) bool { return phase == domain.PhaseGenerated }

// ImageCountLabel reads "N images found", or "" when the card has no options.
func ImageCountLabel(c domain.ProductCard) string {
	switch n := len(c.ImageOptions); n {
	case 0:
		return ""
	case 1:
		return "1 image found"
	default:
		return fmt.Sprintf("%d images found", n)
	}
}

// PlaceholderHint is the second line of the empty image placeholder.
func PlaceholderHint(c domain.ProductCard) string {
	if c.Status == domain.StatusPending {
		return "Generate images first"
	}
	return "Choose from options below or upload custom image"
}

// Notice returns an informational line under the card actions, if any.
func Notice(c domain.ProductCard, phase domain.Phase) string {
	switch {
	case c.Status == domain.StatusPending && !CanSelect(c) && !CanUpload(phase):
		return "Generate images first to see options"
	case c.Status == domain.StatusCompleted && c.FinalImageURL == "":
		return "Processing completed but final image not available"
	}
	return ""
}

// ThumbnailURL is the carousel image for an option.
func ThumbnailURL(o domain.ImageOption) string {
	if o.ThumbnailURL != "" {
		return o.ThumbnailURL
	}
	return o.OriginalURL
}

// DownloadName is the file name offered for a card's processed image.
func DownloadName(c domain.ProductCard) string {
	return safeFileStem(c.ProductName, c.ID) + "_processed.png"
}

func safeFileStem(name, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), ". ")
	if s == "" {
		s = strings.TrimSpace(fallback)
	}
	if s == "" {
		s = "card"
	}
	return s
}
