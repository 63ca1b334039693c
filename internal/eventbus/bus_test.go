package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewInMemoryBus()

	var got []MonthSettled
	bus.Subscribe(EventTypeOf[MonthSettled](), func(ctx context.Context, event any) error {
		settled, ok := event.(MonthSettled)
		if !ok {
			t.Fatalf("event type = %T, want MonthSettled", event)
		}
		got = append(got, settled)
		return nil
	})

	event := MonthSettled{
		Client:      "ACME Industries",
		PlantID:     "PLANT-01",
		Month:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RecordCount: 124,
	}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(got))
	}
	if got[0].RecordCount != 124 {
		t.Fatalf("record count = %d, want 124", got[0].RecordCount)
	}
}

func TestPublishIgnoresOtherTypes(t *testing.T) {
	bus := NewInMemoryBus()

	calls := 0
	bus.Subscribe(EventTypeOf[MonthSettled](), func(ctx context.Context, event any) error {
		calls++
		return nil
	})

	if err := bus.Publish(context.Background(), AggregationObserved{EntityID: "PLANT-01"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("handler ran %d times for a different event type, want 0", calls)
	}
}

func TestPublishReportsFirstHandlerError(t *testing.T) {
	bus := NewInMemoryBus()

	wantErr := errors.New("subscriber failed")
	ran := 0
	bus.Subscribe(EventTypeOf[MonthSettled](), func(ctx context.Context, event any) error {
		ran++
		return wantErr
	})
	bus.Subscribe(EventTypeOf[MonthSettled](), func(ctx context.Context, event any) error {
		ran++
		return errors.New("second failure")
	})

	err := bus.Publish(context.Background(), MonthSettled{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Publish error = %v, want first handler error", err)
	}
	if ran != 2 {
		t.Fatalf("handlers ran %d times, want both despite errors", ran)
	}
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("Publish(nil) error = %v, want ErrNilEvent", err)
	}
}
