package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noelle/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider replays items on a channel the test controls.
type scriptedProvider struct {
	name    string
	ch      chan domain.StreamChunk
	openErr error

	mu    sync.Mutex
	turns []domain.Turn
	model string
}

func newScripted(name string) *scriptedProvider {
	return &scriptedProvider{name: name, ch: make(chan domain.StreamChunk)}
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	p.mu.Lock()
	p.turns, p.model = turns, model
	p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.ch, nil
}

func (p *scriptedProvider) send(c domain.UniversalChunk) { p.ch <- domain.StreamChunk{UniversalChunk: c} }

type fakeFactory struct {
	providers map[string]domain.ChatProvider
	err       error
}

func (f *fakeFactory) Create(name string) (domain.ChatProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found: %w", name, domain.ErrProviderNotFound)
	}
	return p, nil
}

// sink collects delivered events.
type sink struct {
	mu     sync.Mutex
	events []domain.DialogueBack
}

func (s *sink) add(ev domain.DialogueBack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sink) snapshot() []domain.DialogueBack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DialogueBack(nil), s.events...)
}

func (s *sink) terminals() int {
	n := 0
	for _, ev := range s.snapshot() {
		if ev.Data.IsEnd {
			n++
		}
	}
	return n
}

func request(id, provider string) domain.DialogueRequest {
	return domain.DialogueRequest{
		Messages:  []domain.Turn{{Role: domain.RoleUser, Content: "Hello"}},
		Provider:  provider,
		Model:     "deepseek-chat",
		MessageID: id,
	}
}

func TestStartDialogueStreamsInOrder(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	for _, r := range []string{"Hel", "lo", ", ", "world"} {
		p.send(domain.UniversalChunk{Result: r})
	}
	p.send(domain.UniversalChunk{IsEnd: true})

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)

	events := s.snapshot()
	require.Len(t, events, 5)
	var text string
	for _, ev := range events {
		assert.Equal(t, "m1", ev.MessageID)
		text += ev.Data.Result
	}
	assert.Equal(t, "Hello, world", text)
	last := events[len(events)-1].Data
	assert.True(t, last.IsEnd)
	assert.False(t, last.IsError)

	p.mu.Lock()
	assert.Equal(t, "deepseek-chat", p.model)
	assert.Len(t, p.turns, 1)
	p.mu.Unlock()

	require.Eventually(t, func() bool { return !m.Streaming("m1") }, time.Second, 5*time.Millisecond)
}

func TestStartDialogueMissingCredentials(t *testing.T) {
	missing := errors.New("deepseek apiKey or baseUrl not found")
	m := NewManager(&fakeFactory{err: fmt.Errorf("%w", missing)}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	events := s.snapshot()
	require.Len(t, events, 1)
	assert.True(t, events[0].Data.IsEnd)
	assert.True(t, events[0].Data.IsError)
	assert.Equal(t, "deepseek apiKey or baseUrl not found", events[0].Data.Result)
}

func TestStartDialogueOpenError(t *testing.T) {
	p := newScripted("deepseek")
	p.openErr = fmt.Errorf("%w: API error 503", domain.ErrProviderError)
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	ev := s.snapshot()[0]
	assert.True(t, ev.Data.IsError)
	assert.Contains(t, ev.Data.Result, "API error 503")
}

func TestStartDialogueMidStreamError(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	p.send(domain.UniversalChunk{Result: "partial"})
	p.ch <- domain.StreamChunk{Err: errors.New("connection reset")}

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	events := s.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Data.Result)
	assert.Equal(t, domain.UniversalChunk{IsEnd: true, IsError: true, Result: "connection reset"}, events[1].Data)
}

func TestStartDialogueTruncatedStream(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	p.send(domain.UniversalChunk{Result: "a"})
	close(p.ch)

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	last := s.snapshot()[1].Data
	assert.True(t, last.IsError)
	assert.Equal(t, domain.ErrStreamTruncated.Error(), last.Result)
}

func TestStartDialogueRejectsInvalidIDs(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	err := m.StartDialogue(request("", "deepseek"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))
	err = m.StartDialogue(request("m1", "deepseek"))
	assert.ErrorIs(t, err, domain.ErrDuplicateStream)

	p.send(domain.UniversalChunk{IsEnd: true})
}

func TestUnsubscribeMidStream(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	unsub := m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	p.send(domain.UniversalChunk{Result: "one"})
	require.Eventually(t, func() bool { return len(s.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	unsub()
	p.send(domain.UniversalChunk{Result: "two"})
	p.send(domain.UniversalChunk{IsEnd: true})

	require.Eventually(t, func() bool { return !m.Streaming("m1") }, time.Second, 5*time.Millisecond)
	assert.Len(t, s.snapshot(), 1)
}

func TestConcurrentSessionsDoNotCrossTalk(t *testing.T) {
	providers := map[string]domain.ChatProvider{}
	scripted := map[string]*scriptedProvider{}
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("p%d", i)
		sp := newScripted(name)
		providers[name] = sp
		scripted[name] = sp
	}
	m := NewManager(&fakeFactory{providers: providers}, nil, testLogger())
	defer m.Close()

	sinks := map[string]*sink{}
	for name := range scripted {
		id := "msg-" + name
		sinks[id] = &sink{}
		m.OnDialogueBack(id, sinks[id].add)
		require.NoError(t, m.StartDialogue(request(id, name)))
	}

	var wg sync.WaitGroup
	for name, sp := range scripted {
		wg.Add(1)
		go func(name string, sp *scriptedProvider) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				sp.send(domain.UniversalChunk{Result: fmt.Sprintf("%s-%02d|", name, i)})
			}
			sp.send(domain.UniversalChunk{IsEnd: true})
		}(name, sp)
	}
	wg.Wait()

	for name := range scripted {
		id := "msg-" + name
		s := sinks[id]
		require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
		events := s.snapshot()
		require.Len(t, events, 21)
		for i := 0; i < 20; i++ {
			assert.Equal(t, id, events[i].MessageID)
			assert.Equal(t, fmt.Sprintf("%s-%02d|", name, i), events[i].Data.Result)
		}
	}
}

func TestCloseTerminatesInFlightSessions(t *testing.T) {
	p := &blockingProvider{}
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())

	var s sink
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	m.Close()
	require.Equal(t, 1, s.terminals())
	assert.True(t, s.snapshot()[0].Data.IsError)
	assert.Error(t, m.StartDialogue(request("m2", "deepseek")))
}

// blockingProvider streams nothing until ctx is cancelled.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "deepseek" }

func (blockingProvider) ChatStream(ctx context.Context, _ []domain.Turn, _ string) (<-chan domain.StreamChunk, error) {
	ch := make(chan domain.StreamChunk)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}
func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestDialogueLifecycleEvents(t *testing.T) {
	p := newScripted("deepseek")
	bus := &recordingBus{}
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, bus, testLogger())
	defer m.Close()

	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))
	p.send(domain.UniversalChunk{IsEnd: true})

	require.Eventually(t, func() bool { return len(bus.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.EventType{domain.EventDialogueStarted, domain.EventDialogueEnded}, bus.types())
}

func TestSubscriberPanicDoesNotBreakSession(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var s sink
	m.OnDialogueBack("m1", func(domain.DialogueBack) { panic("boom") })
	m.OnDialogueBack("m1", s.add)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	p.send(domain.UniversalChunk{Result: "x"})
	p.send(domain.UniversalChunk{IsEnd: true})

	require.Eventually(t, func() bool { return s.terminals() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, s.snapshot(), 2)
}

func TestUnsubscribeFromInsideCallback(t *testing.T) {
	p := newScripted("deepseek")
	m := NewManager(&fakeFactory{providers: map[string]domain.ChatProvider{"deepseek": p}}, nil, testLogger())
	defer m.Close()

	var (
		s     sink
		unsub func()
		ready = make(chan struct{})
	)
	unsub = m.OnDialogueBack("m1", func(ev domain.DialogueBack) {
		<-ready
		s.add(ev)
		unsub()
	})
	close(ready)
	require.NoError(t, m.StartDialogue(request("m1", "deepseek")))

	p.send(domain.UniversalChunk{Result: "one"})
	p.send(domain.UniversalChunk{Result: "two"})
	p.send(domain.UniversalChunk{IsEnd: true})

	require.Eventually(t, func() bool { return !m.Streaming("m1") }, time.Second, 5*time.Millisecond)
	events := s.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "one", events[0].Data.Result)
}
