package dto

import (
	"errors"
	"testing"

	apperrors "github.com/spec-kit/direct-line/pkg/util/errorutil"
)

func TestValidateReportsFieldsByJSONName(t *testing.T) {
	err := Validate(CreateTicketRequest{Location: "Main St"})
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	fields, ok := domainErr.Details["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected field details, got %+v", domainErr.Details)
	}
	if fields["description"] != "description is required" {
		t.Fatalf("unexpected field message %v", fields["description"])
	}
}

func TestValidateStatusValues(t *testing.T) {
	cases := []struct {
		status string
		ok     bool
	}{
		{"Dispatched", true},
		{"Resolved", true},
		{"Pending", true},
		{"Closed", false},
		{"dispatched", false},
		{"", false},
	}
	for _, tc := range cases {
		err := Validate(UpdateStatusRequest{Status: tc.status})
		if (err == nil) != tc.ok {
			t.Fatalf("status %q: expected ok=%v, got %v", tc.status, tc.ok, err)
		}
	}
}
