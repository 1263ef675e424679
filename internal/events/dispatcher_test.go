package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherInvokesAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	boom := errors.New("boom")
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { calls++; return boom })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { calls++; return nil })
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error { calls += 100; return nil })

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "TICK-001"})
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
}

func TestDispatcherNoHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	after := false
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { panic("bad handler") })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { after = true; return nil })

	if err := d.Publish(context.Background(), Event{Type: EventTicketCreated}); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	if !after {
		t.Fatalf("expected later handler to run")
	}
}
