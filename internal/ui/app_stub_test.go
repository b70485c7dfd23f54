//go:build !fyne

package ui

import (
	"context"
	"strings"
	"testing"

	"bulkimage/internal/session"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string) ([]byte, error) { return nil, nil }

func TestRunStub_ReturnsHelpfulError(t *testing.T) {
	err := Run(Options{Session: session.New(session.Options{}), Media: nopFetcher{}})
	if err == nil {
		t.Fatal("expected error from Run() in non-fyne build, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "UI not built") || !strings.Contains(msg, "-tags fyne") {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestRunStub_RequiresSession(t *testing.T) {
	err := Run(Options{})
	if err == nil || !strings.Contains(err.Error(), "session is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}
