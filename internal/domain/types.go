/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the client-side view of the records owned by the remote
// Project Service. The client holds a read-mostly copy that is replaced
// wholesale on every fetch; nothing here is mutated in place after decoding.

// Project is one batch of product cards.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	RawInputText string        `json:"raw_input_text,omitempty"`
	Status       string        `json:"status,omitempty"` // server label, informational only
	Cards        []ProductCard `json:"cards"`
}

// ProductCard tracks image options, the chosen image and the processed result for one product.
type ProductCard struct {
	ID               string        `json:"id"`
	ProductName      string        `json:"product_name"`
	Status           CardStatus    `json:"status"`
	ImageOptions     []ImageOption `json:"image_options"`
	SelectedImageURL string        `json:"selected_image_url,omitempty"`
	UploadedImage    string        `json:"uploaded_image,omitempty"`
	FinalImageURL    string        `json:"final_image_url,omitempty"`
}

// ImageOption is one candidate image fetched for a product.
// IsSelected is exclusive across a card's options; the backend enforces it.
type ImageOption struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	OriginalURL  string `json:"original_url"`
	IsSelected   bool   `json:"is_selected"`
}

// Card returns the card with the given id.
func (p *Project) Card(id string) (ProductCard, bool) {
	if p == nil {
		return ProductCard{}, false
	}
	for _, c := range p.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return ProductCard{}, false
}

// SelectedOption returns the option flagged as selected, if any.
func (c ProductCard) SelectedOption() (ImageOption, bool) {
	for _, o := range c.ImageOptions {
		if o.IsSelected {
			return o, true
		}
	}
	return ImageOption{}, false
}

// Option returns the option with the given id.
func (c ProductCard) Option(id string) (ImageOption, bool) {
	for _, o := range c.ImageOptions {
		if o.ID == id {
			return o, true
		}
	}
	return ImageOption{}, false
}

// StatusCounts tallies cards per status.
func (p *Project) StatusCounts() map[CardStatus]int {
	out := make(map[CardStatus]int, len(AllCardStatuses))
	if p == nil {
		return out
	}
	for _, c := range p.Cards {
		out[c.Status]++
	}
	return out
}
