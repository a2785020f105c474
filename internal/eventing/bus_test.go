package eventing

import (
	"context"
	"errors"
	"testing"
)

type testEvent struct {
	Value int
}

func TestInMemoryBusDelivers(t *testing.T) {
	bus := NewInMemoryBus()

	var received []testEvent
	bus.Subscribe(EventTypeOf[testEvent](), func(_ context.Context, event any) error {
		received = append(received, event.(testEvent))
		return nil
	})

	if err := bus.Publish(context.Background(), testEvent{Value: 7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(received) != 1 || received[0].Value != 7 {
		t.Fatalf("received %+v", received)
	}
}

func TestInMemoryBusTypeIsolation(t *testing.T) {
	type otherEvent struct{ Value int }
	bus := NewInMemoryBus()

	calls := 0
	bus.Subscribe(EventTypeOf[testEvent](), func(context.Context, any) error {
		calls++
		return nil
	})

	if err := bus.Publish(context.Background(), otherEvent{Value: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("handler called %d times for a foreign type", calls)
	}
}

func TestInMemoryBusNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("err %v, want ErrNilEvent", err)
	}
}

func TestInMemoryBusHandlerErrorSurfaces(t *testing.T) {
	bus := NewInMemoryBus()
	handlerErr := errors.New("downstream failed")
	calls := 0
	bus.Subscribe(EventTypeOf[testEvent](), func(context.Context, any) error {
		return handlerErr
	})
	bus.Subscribe(EventTypeOf[testEvent](), func(context.Context, any) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), testEvent{})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("err %v, want handler error", err)
	}
	if calls != 1 {
		t.Fatalf("later handler skipped after an earlier error")
	}
}

func TestEventTypePointerNormalization(t *testing.T) {
	if EventType(testEvent{}) != EventType(&testEvent{}) {
		t.Fatalf("pointer and value events must share a type key")
	}
}
