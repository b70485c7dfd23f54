/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package workflow holds the pure rules of the bulk image workflow: which
// grid actions are available for a phase and set of cards, how a card is
// displayed, and how the input form is validated and submitted. Nothing here
// caches results; callers re-evaluate on every render.
package workflow

import "bulkimage/internal/domain"

// CardNeedsImages reports whether generate should still run for the card.
func CardNeedsImages(c domain.ProductCard) bool {
	return c.Status == domain.StatusPending ||
		len(c.ImageOptions) == 0 ||
		(c.Status == domain.StatusImagesFetched && len(c.ImageOptions) == 0)
}

// NeedsImages reports whether any card still lacks image options.
func NeedsImages(cards []domain.ProductCard) bool {
	for _, c := range cards {
		if CardNeedsImages(c) {
			return true
		}
	}
	return false
}

// CanGenerate reports whether the Generate action is offered.
func CanGenerate(phase domain.Phase, cards []domain.ProductCard) bool {
	switch phase {
	case domain.PhaseParsed:
		return true
	case domain.PhaseGenerated, domain.PhaseCompleted:
		return NeedsImages(cards)
	case domain.PhaseInput:
		return false
	}
	return false
}

// CanProcess reports whether Save & Process is offered.
func CanProcess(phase domain.Phase, cards []domain.ProductCard) bool {
	if phase != domain.PhaseGenerated && phase != domain.PhaseCompleted {
		return false
	}
	for _, c := range cards {
		if c.Status.HasChosenImage() {
			return true
		}
	}
	return false
}

// Gates is the set of grid decisions for one render.
type Gates struct {
	NeedsImages   bool
	CanGenerate   bool
	CanProcess    bool
	GenerateLabel string
	Message       string
}

// Evaluate computes every grid decision from the current phase and cards.
func Evaluate(phase domain.Phase, cards []domain.ProductCard) Gates {
	return Gates{
		NeedsImages:   NeedsImages(cards),
		CanGenerate:   CanGenerate(phase, cards),
		CanProcess:    CanProcess(phase, cards),
		GenerateLabel: GenerateLabel(phase, cards),
		Message:       StatusMessage(phase, cards),
	}
}

// GenerateLabel is the caption of the Generate button.
func GenerateLabel(phase domain.Phase, cards []domain.ProductCard) string {
	if NeedsImages(cards) && phase != domain.PhaseParsed {
		return "Generate Missing Images"
	}
	return "Generate Images"
}

// StatusMessage is the grid header hint for the current phase.
func StatusMessage(phase domain.Phase, cards []domain.ProductCard) string {
	needs := NeedsImages(cards)
	switch phase {
	case domain.PhaseParsed:
		return "Products parsed successfully. Click Generate to search for images."
	case domain.PhaseGenerated:
		if needs {
			return "Some cards need images. Click Generate for missing images, or Save to process selected ones."
		}
		return "Images loaded. Select or upload images for each product, then Save to process."
	case domain.PhaseCompleted:
		if needs {
			return "Processing completed! Some cards still need images - click Generate for remaining ones."
		}
		return "Processing completed! All images have been processed."
	case domain.PhaseInput:
		return ""
	}
	return ""
}

// EmptyGridMessage is shown when parsing produced no cards.
const EmptyGridMessage = "No products found. Go back to input more product names or images."
