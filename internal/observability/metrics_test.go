package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 2*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 4*time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/api/tickets/:id/status", "PATCH", "INVALID_TRANSITION")

	snap := m.Snapshot()
	if len(snap.Requests) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", snap.Requests)
	}
	get := snap.Requests[0]
	if get.Key != "/api/tickets|GET|200" || get.Count != 2 || get.AvgLatencyMS != 3 {
		t.Fatalf("unexpected GET bucket: %+v", get)
	}
	if snap.Errors["/api/tickets/:id/status|PATCH|INVALID_TRANSITION"] != 1 {
		t.Fatalf("unexpected errors: %+v", snap.Errors)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	if snap := m.Snapshot(); len(snap.Requests) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}
