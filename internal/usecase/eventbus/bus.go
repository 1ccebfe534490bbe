package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"noelle/internal/domain"
)

// mailboxSize bounds how far a slow subscriber may lag before events to it
// are dropped.
const mailboxSize = 256

type delivery struct {
	ctx   context.Context
	event domain.Event
}

type subscription struct {
	id      uint64
	handler domain.EventHandler
	mailbox chan delivery
	quit    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() { s.once.Do(func() { close(s.quit) }) }

// Bus is an in-process, goroutine-safe event bus. Every subscriber owns a
// mailbox drained by its own goroutine, so one subscriber sees events in
// publish order and a slow subscriber never blocks publishers.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]*subscription
	allSubs []*subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
}

var _ domain.EventBus = (*Bus)(nil)

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:  make(map[domain.EventType][]*subscription),
		logger: logger,
	}
}

// Publish enqueues an event for matching typed subscribers and all-event subscribers.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.typed[event.Type])+len(b.allSubs))
	subs = append(subs, b.typed[event.Type]...)
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.mailbox <- delivery{ctx: context.WithoutCancel(ctx), event: event}:
		case <-sub.quit:
		default:
			b.logger.Warn("event dropped, subscriber mailbox full", "event", string(event.Type))
		}
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	sub := b.start(handler)

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.typed[eventType] = without(b.typed[eventType], sub.id)
		b.mu.Unlock()
		sub.stop()
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	sub := b.start(handler)

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.allSubs = without(b.allSubs, sub.id)
		b.mu.Unlock()
		sub.stop()
	}
}

// Close prevents new publishes, delivers what is already queued and waits
// for every subscriber goroutine to exit. Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.RLock()
	var subs []*subscription
	for _, typed := range b.typed {
		subs = append(subs, typed...)
	}
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.stop()
	}
	b.wg.Wait()
}

func (b *Bus) start(handler domain.EventHandler) *subscription {
	sub := &subscription{
		id:      b.nextID.Add(1),
		handler: handler,
		mailbox: make(chan delivery, mailboxSize),
		quit:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run(sub)
	return sub
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case d := <-sub.mailbox:
			b.invoke(sub, d)
		case <-sub.quit:
			if !b.closed.Load() {
				return
			}
			for {
				select {
				case d := <-sub.mailbox:
					b.invoke(sub, d)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) invoke(sub *subscription, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(d.ctx, d.event)
}

func without(subs []*subscription, id uint64) []*subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
