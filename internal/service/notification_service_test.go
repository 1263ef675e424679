package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spec-kit/direct-line/internal/config"
	"github.com/spec-kit/direct-line/internal/events"
)

type capturePublisher struct {
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, payload []byte) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestNotificationServiceQueuesAndDelivers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &capturePublisher{}
	svc := NewNotificationService(dispatcher, publisher, nil, config.NotificationConfig{})
	svc.RegisterHandlers()

	event := events.Event{ID: "evt-1", Type: events.EventTicketCreated, TicketID: "TICK-001"}
	if err := dispatcher.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	queued := <-svc.Queue()
	if err := svc.Deliver(context.Background(), queued); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(publisher.payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(publisher.payloads))
	}
	var decoded events.Event
	if err := json.Unmarshal(publisher.payloads[0], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TicketID != "TICK-001" || decoded.Type != events.EventTicketCreated {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestNotificationServiceSkipsQueueWithoutSinks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, nil, nil, config.NotificationConfig{})
	svc.RegisterHandlers()

	if err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketStatusChanged}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case event := <-svc.Queue():
		t.Fatalf("unexpected queued event %+v", event)
	default:
	}
}

func TestNotificationServiceReportsPublisherFailure(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("redis down")}
	svc := NewNotificationService(nil, publisher, nil, config.NotificationConfig{})
	if err := svc.Deliver(context.Background(), events.Event{Type: events.EventTicketCreated}); err == nil {
		t.Fatalf("expected delivery error")
	}
}
