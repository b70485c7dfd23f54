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

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCardStatusRoundTripsWireValues(t *testing.T) {
	for _, s := range AllCardStatuses {
		got, err := ParseCardStatus(s.String())
		if err != nil {
			t.Fatalf("ParseCardStatus(%q) error: %v", s.String(), err)
		}
		if got != s {
			t.Fatalf("ParseCardStatus(%q) = %v, want %v", s.String(), got, s)
		}
		if label, _ := s.Badge(); label == "" || label == s.String() {
			t.Fatalf("status %v has no badge label", s)
		}
	}
}

func TestDecodeProjectRejectsUnknownStatus(t *testing.T) {
	raw := `{"id":"p1","name":"n","cards":[{"id":"c1","product_name":"x","status":"archived","image_options":[]}]}`
	var p Project
	err := json.Unmarshal([]byte(raw), &p)
	if err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if !strings.Contains(err.Error(), "archived") {
		t.Fatalf("error should name the bad status: %v", err)
	}
}

func TestDecodeProjectFromServerShape(t *testing.T) {
	raw := `{
		"id": "p1",
		"name": "Bulk Product Processing",
		"raw_input_text": "iPhone 15 Pro\nMacBook Air M3",
		"cards": [
			{"id": "c1", "product_name": "iPhone 15 Pro", "status": "images_fetched",
			 "image_options": [
				{"id": "o1", "source": "bing", "thumbnail_url": "http://t/1", "original_url": "http://o/1", "is_selected": false},
				{"id": "o2", "source": "google", "original_url": "http://o/2", "is_selected": true}
			 ]},
			{"id": "c2", "product_name": "MacBook Air M3", "status": "pending", "image_options": [], "selected_image_url": null}
		]
	}`
	var p Project
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(p.Cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(p.Cards))
	}
	c1, ok := p.Card("c1")
	if !ok || c1.Status != StatusImagesFetched {
		t.Fatalf("card c1 = %+v, ok=%v", c1, ok)
	}
	sel, ok := c1.SelectedOption()
	if !ok || sel.ID != "o2" {
		t.Fatalf("selected option = %+v, ok=%v", sel, ok)
	}
	if _, ok := p.Card("missing"); ok {
		t.Fatalf("unexpected card for missing id")
	}
	counts := p.StatusCounts()
	if counts[StatusPending] != 1 || counts[StatusImagesFetched] != 1 {
		t.Fatalf("status counts = %v", counts)
	}
}

func TestZeroCardStatusDoesNotMarshal(t *testing.T) {
	var s CardStatus
	if s.Valid() {
		t.Fatalf("zero status must be invalid")
	}
	if _, err := json.Marshal(ProductCard{ID: "c"}); err == nil {
		t.Fatalf("expected marshal error for zero status")
	}
}

func TestPhaseOrderingAndText(t *testing.T) {
	order := []Phase{PhaseInput, PhaseParsed, PhaseGenerated, PhaseCompleted}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("phase %v should rank after %v", order[i], order[i-1])
		}
	}
	for _, p := range order {
		b, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", p, err)
		}
		var back Phase
		if err := back.UnmarshalText(b); err != nil || back != p {
			t.Fatalf("UnmarshalText(%q) = %v, %v", b, back, err)
		}
	}
	if PhaseInput.ShowsCards() || !PhaseParsed.ShowsCards() {
		t.Fatalf("ShowsCards mismatch")
	}
	if _, err := ParsePhase("done"); err == nil {
		t.Fatalf("expected error for unknown phase")
	}
}
