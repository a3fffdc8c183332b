package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"camsession/internal/domain"
)

type delivery struct {
	ctx   context.Context
	event domain.Event
}

// mailbox delivers events to one handler in publish order.
type mailbox struct {
	id      uint64
	handler domain.EventHandler

	mu      sync.Mutex
	queue   []delivery
	stopped bool
	wake    chan struct{}
}

func newMailbox(id uint64, handler domain.EventHandler) *mailbox {
	return &mailbox{id: id, handler: handler, wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(d delivery) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, d)
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run drains the queue until the mailbox is stopped and empty.
func (m *mailbox) run(logger *slog.Logger) {
	for range m.wake {
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				stopped := m.stopped
				m.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			d := m.queue[0]
			m.queue[0] = delivery{}
			m.queue = m.queue[1:]
			m.mu.Unlock()

			m.invoke(logger, d)
		}
	}
}

func (m *mailbox) invoke(logger *slog.Logger, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	m.handler(d.ctx, d.event)
}

// Bus is an in-process, goroutine-safe event bus. Every subscriber owns a
// mailbox goroutine, so a subscriber sees events in publish order and a
// slow subscriber never blocks Publish.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]*mailbox
	allSubs []*mailbox
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:  make(map[domain.EventType][]*mailbox),
		logger: logger,
	}
}

// Publish queues an event for matching typed subscribers and all-event
// subscribers. It never blocks on handlers.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}
	d := delivery{ctx: context.WithoutCancel(ctx), event: event}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.typed[event.Type] {
		m.push(d)
	}
	for _, m := range b.allSubs {
		m.push(d)
	}
}

func (b *Bus) start(handler domain.EventHandler) *mailbox {
	m := newMailbox(b.nextID.Add(1), handler)
	if b.closed.Load() {
		m.stop()
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		m.run(b.logger)
	}()
	return m
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function; events already queued are still delivered.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	m := b.start(handler)

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], m)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.typed[eventType] = remove(b.typed[eventType], m.id)
		b.mu.Unlock()
		m.stop()
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	m := b.start(handler)

	b.mu.Lock()
	b.allSubs = append(b.allSubs, m)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.allSubs = remove(b.allSubs, m.id)
		b.mu.Unlock()
		m.stop()
	}
}

func remove(subs []*mailbox, id uint64) []*mailbox {
	for i, m := range subs {
		if m.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Close prevents new publishes and waits for every queued event to be handled.
// Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.RLock()
	for _, subs := range b.typed {
		for _, m := range subs {
			m.stop()
		}
	}
	for _, m := range b.allSubs {
		m.stop()
	}
	b.mu.RUnlock()
	b.wg.Wait()
}
