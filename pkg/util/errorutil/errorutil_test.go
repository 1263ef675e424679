package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorUnwrapsWrapped(t *testing.T) {
	base := NewNotFound("ticket", map[string]any{"id": "TICK-404"})
	wrapped := fmt.Errorf("get ticket: %w", base)
	de := ToDomainError(wrapped)
	if de.Code != "NOT_FOUND" || de.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected mapping: %+v", de)
	}
	if de.Details["id"] != "TICK-404" {
		t.Fatalf("details lost: %+v", de.Details)
	}
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("connection refused")
	de := ToDomainError(cause)
	if de.Code != "INTERNAL_ERROR" || de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping: %+v", de)
	}
	if !errors.Is(de, cause) {
		t.Fatalf("cause not preserved")
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}

func TestInvalidTransitionKeepsCause(t *testing.T) {
	cause := errors.New("Pending -> Resolved")
	de := ToDomainError(NewInvalidTransition(cause, nil))
	if de.HTTPStatus != http.StatusConflict || de.Code != "INVALID_TRANSITION" {
		t.Fatalf("unexpected mapping: %+v", de)
	}
	if !errors.Is(de, cause) {
		t.Fatalf("cause not preserved")
	}
}

func TestNewStatusError(t *testing.T) {
	cases := map[int]string{
		http.StatusNotFound:              "NOT_FOUND",
		http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
		http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
		http.StatusBadGateway:            "INTERNAL_ERROR",
		http.StatusTeapot:                "REQUEST_FAILED",
	}
	for status, code := range cases {
		de := ToDomainError(NewStatusError(status, "x"))
		if de.Code != code || de.HTTPStatus != status {
			t.Fatalf("status %d: got %+v", status, de)
		}
	}
}
