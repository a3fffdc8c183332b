package engine

import (
	"log/slog"
	"sync"

	"camsession/internal/domain"
)

// eventQueue delivers engine events to the observer from its own goroutine,
// in post order. post never blocks, so it is safe under the engine lock.
type eventQueue struct {
	logger *slog.Logger

	mu       sync.Mutex
	observer domain.EngineObserver
	queue    []domain.EngineEvent
	closed   bool
	wake     chan struct{}
}

func newEventQueue(logger *slog.Logger) *eventQueue {
	q := &eventQueue{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	go q.run()
	return q
}

func (q *eventQueue) setObserver(obs domain.EngineObserver) {
	q.mu.Lock()
	q.observer = obs
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) post(kind domain.EngineEventKind, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, domain.EngineEvent{Kind: kind, Err: err})
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close drops undelivered events and stops the delivery goroutine. It does
// not wait: close may run on the delivery goroutine itself when the observer
// tears the engine down from OnEvent.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.queue = nil
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) run() {
	for range q.wake {
		for {
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return
			}
			if len(q.queue) == 0 || q.observer == nil {
				q.mu.Unlock()
				break
			}
			ev := q.queue[0]
			q.queue = q.queue[1:]
			obs := q.observer
			q.mu.Unlock()

			q.logger.Debug("engine event", "kind", ev.Kind.String(), "error", ev.Err)
			obs.OnEvent(ev)
		}
	}
}
