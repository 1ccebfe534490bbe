package gateway

import (
	"context"
	"encoding/json"

	"noelle/internal/domain"
)

// Renderer channels fed from the event bus.
const (
	ChannelConfigChange    = "config-change"
	ChannelThemeChanged    = "system-theme-changed"
	ChannelMenuClicked     = "menu-clicked"
	ChannelLanguageChanged = "language-changed"
	ChannelDialogueBack    = "dialogue-back"
)

// forwardEvent broadcasts the bus events renderers listen to.
func (s *Server) forwardEvent(_ context.Context, event domain.Event) {
	switch event.Type {
	case domain.EventConfigChanged:
		s.Broadcast(ChannelConfigChange, event.Payload)
	case domain.EventThemeChanged:
		var p domain.ThemeChangedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			s.logger.Warn("gateway: bad theme event", "error", err)
			return
		}
		s.Broadcast(ChannelThemeChanged, p.IsDark)
	case domain.EventMenuClicked:
		s.Broadcast(ChannelMenuClicked, event.Payload)
	case domain.EventLanguageChanged:
		s.Broadcast(ChannelLanguageChanged, event.Payload)
	}
}
