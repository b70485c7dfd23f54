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
	"fmt"
)

// CardStatus is the closed set of product card states reported by the backend.
// The zero value is invalid so an undecoded status is never mistaken for pending.
type CardStatus uint8

const (
	StatusPending CardStatus = iota + 1
	StatusImagesFetched
	StatusImageSelected
	StatusImageUploaded
	StatusCompleted
	StatusFailed
)

// AllCardStatuses lists every status in workflow order.
var AllCardStatuses = []CardStatus{
	StatusPending,
	StatusImagesFetched,
	StatusImageSelected,
	StatusImageUploaded,
	StatusCompleted,
	StatusFailed,
}

// ParseCardStatus maps the wire value to a CardStatus.
func ParseCardStatus(s string) (CardStatus, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "images_fetched":
		return StatusImagesFetched, nil
	case "image_selected":
		return StatusImageSelected, nil
	case "image_uploaded":
		return StatusImageUploaded, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	}
	return 0, fmt.Errorf("unknown card status %q", s)
}

// String returns the wire value.
func (s CardStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusImagesFetched:
		return "images_fetched"
	case StatusImageSelected:
		return "image_selected"
	case StatusImageUploaded:
		return "image_uploaded"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("CardStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the known statuses.
func (s CardStatus) Valid() bool { return s >= StatusPending && s <= StatusFailed }

func (s CardStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid card status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *CardStatus) UnmarshalText(b []byte) error {
	v, err := ParseCardStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Tone is the color family used to render a status badge.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneAccent  Tone = "accent"
	ToneDone    Tone = "done"
	ToneDanger  Tone = "danger"
)

// Badge returns the label and tone shown for a card status.
func (s CardStatus) Badge() (string, Tone) {
	switch s {
	case StatusPending:
		return "Pending", ToneNeutral
	case StatusImagesFetched:
		return "Images Ready", ToneInfo
	case StatusImageSelected:
		return "Image Selected", ToneSuccess
	case StatusImageUploaded:
		return "Custom Image", ToneAccent
	case StatusCompleted:
		return "Completed", ToneDone
	case StatusFailed:
		return "Failed", ToneDanger
	}
	return s.String(), ToneNeutral
}

// HasChosenImage reports whether the card is ready for processing.
func (s CardStatus) HasChosenImage() bool {
	return s == StatusImageSelected || s == StatusImageUploaded
}

// Phase is the coarse workflow stage of the current project on the client.
type Phase uint8

const (
	PhaseInput Phase = iota
	PhaseParsed
	PhaseGenerated
	PhaseCompleted
)

// ParsePhase maps a stored label back to a Phase.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "input":
		return PhaseInput, nil
	case "parsed":
		return PhaseParsed, nil
	case "generated":
		return PhaseGenerated, nil
	case "completed":
		return PhaseCompleted, nil
	}
	return PhaseInput, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseParsed:
		return "parsed"
	case PhaseGenerated:
		return "generated"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Rank orders phases along the workflow; later phases rank higher.
func (p Phase) Rank() int { return int(p) }

// ShowsCards reports whether the cards grid is visible in this phase.
func (p Phase) ShowsCards() bool {
	switch p {
	case PhaseParsed, PhaseGenerated, PhaseCompleted:
		return true
	case PhaseInput:
		return false
	}
	return false
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
