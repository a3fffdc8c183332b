package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"camsession/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventVideoRecorded, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventVideoRecorded {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventVideoRecorded))
	bus.Publish(context.Background(), newEvent(domain.EventCameraError))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventVideoRecorded))
	bus.Publish(context.Background(), newEvent(domain.EventPictureTaken))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventCameraError, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()
	unsub()

	bus.Publish(context.Background(), newEvent(domain.EventCameraError))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", got.Load())
	}
}

func TestDeliveryOrderPerSubscriber(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var seen []domain.EventType
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	order := []domain.EventType{
		domain.EventRecordingStarted,
		domain.EventRecordingStopped,
		domain.EventVideoRecorded,
		domain.EventCameraDisposed,
	}
	for _, et := range order {
		bus.Publish(context.Background(), newEvent(et))
	}
	bus.Close()

	assert.Equal(t, order, seen)
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventPictureTaken, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventPictureTaken))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventCameraError, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventCameraError, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventCameraError))
	bus.Publish(context.Background(), newEvent(domain.EventCameraError))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2 (second handler), got %d", got.Load())
	}
}

func TestPublishDoesNotBlockOnSlowHandler(t *testing.T) {
	bus := newTestBus()

	release := make(chan struct{})
	bus.Subscribe(domain.EventPictureTaken, func(_ context.Context, _ domain.Event) {
		<-release
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), newEvent(domain.EventPictureTaken))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow handler")
	}
	close(release)
	bus.Close()
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventVideoRecorded, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventVideoRecorded))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	bus.Publish(context.Background(), newEvent(domain.EventVideoRecorded))
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
	bus.Close()
}

func TestCanceledPublisherContextStillDelivers(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(ctx context.Context, _ domain.Event) {
		if ctx.Err() == nil {
			got.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, newEvent(domain.EventCameraCreated))
	bus.Close()

	assert.Equal(t, int32(1), got.Load())
}
