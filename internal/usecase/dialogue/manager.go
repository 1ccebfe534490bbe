// Package dialogue runs streaming chat sessions and routes their chunks to
// per-message subscribers.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"noelle/internal/domain"
	"noelle/internal/infra/tracer"
)

// Callback receives the events of one message id, in provider order.
type Callback func(domain.DialogueBack)

type subscriber struct {
	id     uint64
	fn     Callback
	active atomic.Bool
}

// Manager multiplexes streaming sessions keyed by message id. Each session
// runs on its own goroutine and delivers to subscribers synchronously, so
// per-message ordering equals provider emission order.
type Manager struct {
	factory domain.ProviderFactory
	bus     domain.EventBus
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]bool
	subs   map[string][]*subscriber
	nextID uint64
	closed bool
}

// NewManager creates a session manager. bus may be nil.
func NewManager(factory domain.ProviderFactory, bus domain.EventBus, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory: factory,
		bus:     bus,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]bool),
		subs:    make(map[string][]*subscriber),
	}
}

// StartDialogue begins streaming for req and returns immediately. Every
// accepted request yields exactly one terminal event on req.MessageID.
// A request is rejected only when its message id is empty or already
// streaming; provider failures are reported as a terminal error event.
func (m *Manager) StartDialogue(req domain.DialogueRequest) error {
	if req.MessageID == "" {
		return domain.NewDomainError("Dialogue.Start", domain.ErrInvalidInput, "message id is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.NewDomainError("Dialogue.Start", domain.ErrInvalidInput, "manager closed")
	}
	if m.active[req.MessageID] {
		m.mu.Unlock()
		return domain.NewDomainError("Dialogue.Start", domain.ErrDuplicateStream, req.MessageID)
	}
	m.active[req.MessageID] = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.publish(domain.EventDialogueStarted, domain.DialogueEventPayload{
		MessageID: req.MessageID,
		Provider:  req.Provider,
		Model:     req.Model,
	})

	go m.run(req)
	return nil
}

// OnDialogueBack subscribes fn to the events of messageID. The returned
// function detaches fn: no event dispatched after it returns reaches fn. A
// delivery already dispatched may still be running, and fn may call the
// returned function from inside itself.
func (m *Manager) OnDialogueBack(messageID string, fn Callback) func() {
	m.mu.Lock()
	m.nextID++
	s := &subscriber{id: m.nextID, fn: fn}
	s.active.Store(true)
	m.subs[messageID] = append(m.subs[messageID], s)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			m.mu.Lock()
			m.subs[messageID] = without(m.subs[messageID], s.id)
			if len(m.subs[messageID]) == 0 {
				delete(m.subs, messageID)
			}
			m.mu.Unlock()
		})
	}
}

// Streaming reports whether messageID has a session in flight.
func (m *Manager) Streaming(messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[messageID]
}

// Close cancels every in-flight session and waits for their terminal events.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(req domain.DialogueRequest) {
	defer m.wg.Done()

	ctx, span := tracer.StartSpan(m.ctx, "dialogue.session",
		trace.WithAttributes(
			tracer.StringAttr("dialogue.message_id", req.MessageID),
			tracer.StringAttr("dialogue.provider", req.Provider),
			tracer.StringAttr("dialogue.model", req.Model),
		),
	)
	defer span.End()

	var (
		chunks   int
		terminal bool
		failure  error
	)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("dialogue session panic", "message_id", req.MessageID, "panic", r)
			failure = fmt.Errorf("dialogue session panic: %v", r)
		}
		if !terminal {
			if failure == nil {
				failure = domain.ErrStreamTruncated
			}
			m.deliver(req.MessageID, domain.UniversalChunk{IsEnd: true, IsError: true, Result: failure.Error()})
		}
		span.SetAttributes(tracer.IntAttr("dialogue.chunks", chunks))
		if failure != nil {
			tracer.RecordError(span, failure)
		} else {
			tracer.SetOK(span)
		}
		m.finish(req, failure)
	}()

	provider, err := m.factory.Create(req.Provider)
	if err != nil {
		m.logger.Warn("dialogue provider unavailable", "provider", req.Provider, "error", err)
		failure = err
		return
	}

	stream, err := provider.ChatStream(ctx, req.Messages, req.Model)
	if err != nil {
		m.logger.Warn("dialogue stream failed to open", "provider", req.Provider, "error", err)
		failure = err
		return
	}

	for item := range stream {
		if item.Err != nil {
			failure = item.Err
			m.logger.Warn("dialogue stream error", "message_id", req.MessageID, "error", item.Err)
			return
		}
		c := item.UniversalChunk
		c.IsError = false
		chunks++
		m.deliver(req.MessageID, c)
		if c.IsEnd {
			terminal = true
			return
		}
	}

	if err := ctx.Err(); err != nil {
		failure = err
	} else {
		failure = domain.ErrStreamTruncated
	}
}

// deliver calls each active subscriber in subscription order. The active
// check is the dispatch point for OnDialogueBack's guarantee.
func (m *Manager) deliver(messageID string, c domain.UniversalChunk) {
	m.mu.Lock()
	subs := append([]*subscriber(nil), m.subs[messageID]...)
	m.mu.Unlock()

	ev := domain.DialogueBack{MessageID: messageID, Data: c}
	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		m.invoke(s, ev)
	}
}

func (m *Manager) invoke(s *subscriber, ev domain.DialogueBack) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("dialogue subscriber panic", "message_id", ev.MessageID, "panic", r)
		}
	}()
	s.fn(ev)
}

// finish releases the session. Subscribers of a finished message id are
// dropped since the channel has terminated.
func (m *Manager) finish(req domain.DialogueRequest, failure error) {
	m.mu.Lock()
	delete(m.active, req.MessageID)
	for _, s := range m.subs[req.MessageID] {
		s.active.Store(false)
	}
	delete(m.subs, req.MessageID)
	m.mu.Unlock()

	payload := domain.DialogueEventPayload{MessageID: req.MessageID, Provider: req.Provider, Model: req.Model}
	if failure != nil && !errors.Is(failure, context.Canceled) {
		payload.Error = failure.Error()
	}
	m.publish(domain.EventDialogueEnded, payload)
}

func (m *Manager) publish(typ domain.EventType, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(context.Background(), domain.NewEvent(typ, payload))
}

func without(subs []*subscriber, id uint64) []*subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
