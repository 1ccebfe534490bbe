package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventConfigChanged   EventType = "config.changed"
	EventThemeChanged    EventType = "theme.changed"
	EventLanguageChanged EventType = "language.changed"
	EventWindowOpened    EventType = "window.opened"
	EventWindowClosed    EventType = "window.closed"
	EventDialogueStarted EventType = "dialogue.started"
	EventDialogueEnded   EventType = "dialogue.ended"
	EventMenuClicked     EventType = "menu.clicked"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event with a JSON-encoded payload.
// A payload that cannot be encoded is dropped.
func NewEvent(typ EventType, payload any) Event {
	ev := Event{Type: typ, Timestamp: time.Now()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// ThemeChangedPayload is published when the effective dark/light value flips.
type ThemeChangedPayload struct {
	IsDark bool   `json:"isDark"`
	Mode   string `json:"mode"`
}

// WindowEventPayload accompanies window.opened and window.closed.
type WindowEventPayload struct {
	Name      string `json:"name"`
	ContentID string `json:"contentId"`
}

// DialogueEventPayload accompanies dialogue.started and dialogue.ended.
type DialogueEventPayload struct {
	MessageID string `json:"messageId"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MenuClickedPayload accompanies menu.clicked.
type MenuClickedPayload struct {
	MenuID string `json:"menuId"`
	ItemID string `json:"itemId"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
