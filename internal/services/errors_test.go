package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapMatchesMarker(t *testing.T) {
	err := Wrap(ErrValidation, "queue", "enqueue", "unknown kind", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation match, got %v", err)
	}
	if errors.Is(err, ErrDriver) {
		t.Fatalf("unexpected ErrDriver match: %v", err)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrTransient, "results", "send", "delivery attempt failed", cause)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient match, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("cause missing from message: %v", err)
	}
}

func TestWrapDetailOrdering(t *testing.T) {
	err := Wrap(ErrDriver, "driver", "unit_action", "article rejected", nil)
	want := "driver error: driver: unit_action: article rejected"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := Wrap(ErrNotFound, "", "", "", nil)
	if !strings.Contains(err.Error(), "unspecified") {
		t.Fatalf("expected placeholder detail, got %v", err)
	}
}
