package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"noelle/internal/domain"
)

// Subscriber is the subscription side of Manager.
type Subscriber interface {
	OnDialogueBack(messageID string, fn Callback) func()
}

// Recorder accumulates streamed text per message id and persists content
// and status on every chunk. Each buffer is owned by its message's session
// and released exactly once, on the terminal chunk or on Stop.
type Recorder struct {
	sessions Subscriber
	messages domain.MessageStore
	logger   *slog.Logger

	mu      sync.Mutex
	buffers map[string]*recording
}

type recording struct {
	text        strings.Builder
	unsubscribe func()
	onEnd       func(domain.UniversalChunk)
}

// NewRecorder creates a recorder persisting through messages.
func NewRecorder(sessions Subscriber, messages domain.MessageStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		sessions: sessions,
		messages: messages,
		logger:   logger,
		buffers:  make(map[string]*recording),
	}
}

// Record starts accumulating messageID. onEnd, if set, runs after the
// terminal chunk has been persisted.
func (r *Recorder) Record(messageID string, onEnd func(domain.UniversalChunk)) {
	rec := &recording{onEnd: onEnd}

	r.mu.Lock()
	if old, ok := r.buffers[messageID]; ok && old.unsubscribe != nil {
		old.unsubscribe()
	}
	r.buffers[messageID] = rec
	r.mu.Unlock()

	unsub := r.sessions.OnDialogueBack(messageID, func(ev domain.DialogueBack) {
		r.apply(messageID, rec, ev.Data)
	})

	r.mu.Lock()
	if r.buffers[messageID] == rec {
		rec.unsubscribe = unsub
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	unsub()
}

// Stop detaches messageID and drops its buffer. It reports whether a
// recording was active.
func (r *Recorder) Stop(messageID string) bool {
	r.mu.Lock()
	rec, ok := r.buffers[messageID]
	delete(r.buffers, messageID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if rec.unsubscribe != nil {
		rec.unsubscribe()
	}
	return true
}

// Active lists the message ids currently being recorded.
func (r *Recorder) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.buffers))
	for id := range r.buffers {
		ids = append(ids, id)
	}
	return ids
}

func (r *Recorder) apply(messageID string, rec *recording, c domain.UniversalChunk) {
	r.mu.Lock()
	if r.buffers[messageID] != rec {
		r.mu.Unlock()
		return
	}
	rec.text.WriteString(c.Result)
	content := rec.text.String()
	if c.IsEnd {
		delete(r.buffers, messageID)
	}
	r.mu.Unlock()

	status := domain.StatusOf(c)
	if err := r.messages.UpdateMessageContent(context.Background(), messageID, content, status); err != nil {
		r.logger.Warn("persist message chunk failed", "message_id", messageID, "status", status, "error", err)
	}

	if c.IsEnd && rec.onEnd != nil {
		rec.onEnd(c)
	}
}
