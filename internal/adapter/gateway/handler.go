package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"noelle/internal/domain"
	"noelle/internal/usecase/dialogue"
)

// WindowControl is the window registry as seen by renderer commands.
type WindowControl interface {
	ByContent(contentID string) (domain.Window, bool)
	CloseByPolicy(win domain.Window)
	Minimize(win domain.Window)
	ToggleMax(win domain.Window)
	RendererReady(contentID string) bool
}

// SceneOpener opens a named window for a requesting window.
type SceneOpener interface {
	Open(ctx context.Context, name string, requester domain.Window, params json.RawMessage) (string, error)
}

// DialogScene answers the dialog window's own content.
type DialogScene interface {
	Params(contentID string) (map[string]any, bool)
	Feedback(contentID, winID, kind string) bool
}

// ThemeControl reads and changes the theme mode.
type ThemeControl interface {
	SetThemeMode(mode string) (bool, error)
	ThemeMode() string
	IsDark() bool
}

// MenuShower pops up a registered context menu and waits for the click.
type MenuShower interface {
	Show(ctx context.Context, menuID string, overrides json.RawMessage) (string, error)
}

// MenuChooser receives the renderer's answer to a pushed popup.
type MenuChooser interface {
	Choose(popupID, itemID string) bool
}

// Dialogues starts streaming sessions and routes their chunks.
type Dialogues interface {
	StartDialogue(req domain.DialogueRequest) error
	OnDialogueBack(messageID string, fn dialogue.Callback) func()
}

// Messages is the persisted send/stop/delete flow.
type Messages interface {
	SendMessage(ctx context.Context, conversationID, content string, watch ...func(answerID string)) (string, error)
	StopMessage(ctx context.Context, messageID string, update bool) error
	DeleteMessage(ctx context.Context, messageID string) error
	LoadingIDs(ctx context.Context, conversationID string) ([]string, error)
}

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Windows       WindowControl
	Scenes        SceneOpener
	Dialog        DialogScene // can be nil
	Theme         ThemeControl
	Menus         MenuShower
	MenuChooser   MenuChooser // can be nil
	Dialogues     Dialogues
	Messages      Messages // can be nil
	Settings      domain.SettingsStore
	Conversations domain.ConversationStore // can be nil
	History       domain.MessageStore      // can be nil
	Providers     domain.ProviderStore     // can be nil
	Bus           domain.EventBus
	Logger        *slog.Logger
	// ConfigDelay is the quiet window applied to renderer config writes.
	ConfigDelay time.Duration
	Version     string
}

// DefaultConfigDelay is used when HandlerDeps.ConfigDelay is zero.
const DefaultConfigDelay = 200 * time.Millisecond

// RegisterRESTHandlers registers HTTP REST endpoints on the gateway server.
func RegisterRESTHandlers(s *Server, deps HandlerDeps) *Metrics {
	startTime := time.Now()
	metrics := &Metrics{}

	// Subscribe to events for metric counters.
	if deps.Bus != nil {
		deps.Bus.Subscribe(domain.EventDialogueStarted, func(_ context.Context, e domain.Event) {
			metrics.DialoguesStarted.Add(1)
		})
		deps.Bus.Subscribe(domain.EventDialogueEnded, func(_ context.Context, e domain.Event) {
			metrics.DialoguesEnded.Add(1)
			var p domain.DialogueEventPayload
			if json.Unmarshal(e.Payload, &p) == nil && p.Error != "" {
				metrics.DialogueErrors.Add(1)
			}
		})
		deps.Bus.Subscribe(domain.EventWindowOpened, func(_ context.Context, e domain.Event) {
			metrics.WindowsOpened.Add(1)
		})
		deps.Bus.Subscribe(domain.EventWindowClosed, func(_ context.Context, e domain.Event) {
			metrics.WindowsClosed.Add(1)
		})
		deps.Bus.Subscribe(domain.EventMenuClicked, func(_ context.Context, e domain.Event) {
			metrics.MenuClicks.Add(1)
		})
	}

	// Auth middleware for REST endpoints.
	authMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = r.Header.Get("Authorization")
				if len(token) > 7 && token[:7] == "Bearer " {
					token = token[7:]
				}
			}
			if _, err := s.auth.Authenticate(token); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	s.RegisterHTTPRoute("/api/v1/status", authMiddleware(statusHandler(s, deps, startTime, metrics)))
	s.RegisterHTTPRoute("/metrics", authMiddleware(metricsHandler(s, startTime, metrics)))

	return metrics
}

// RegisterDefaultHandlers registers all built-in RPC handlers on the server.
// The returned func flushes pending config writes; call it on shutdown.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) (flush func()) {
	if deps.ConfigDelay <= 0 {
		deps.ConfigDelay = DefaultConfigDelay
	}
	subs := newSubscriptions()
	s.OnDisconnect(subs.releaseClient)
	writes := newConfigWrites(deps)

	rpc := s.RegisterHandler

	// windows
	rpc("open-window", openWindowHandler(deps))
	rpc("close-window", closeWindowHandler(deps))
	rpc("minimize-window", minimizeWindowHandler(deps))
	rpc("maximize-window", maximizeWindowHandler(deps))
	rpc("is-window-maximized", isMaximizedHandler(deps))
	rpc("renderer-is-ready", rendererReadyHandler(deps))

	// settings
	rpc("get-config", getConfigHandler(deps))
	rpc("set-config", writes.setHandler())
	rpc("update-config", writes.updateHandler())

	// theme
	rpc("set-theme-mode", setThemeModeHandler(deps))
	rpc("get-theme-mode", getThemeModeHandler(deps))
	rpc("is-dark-theme", isDarkThemeHandler(deps))

	// menus
	rpc("show-context-menu", showContextMenuHandler(deps))
	if deps.MenuChooser != nil {
		rpc("context-menu-select", contextMenuSelectHandler(deps))
	}

	// dialogue streaming
	rpc("start-a-dialogue", startDialogueHandler(s, deps, subs))
	rpc("dialogue-subscribe", dialogueSubscribeHandler(s, deps, subs))
	rpc("dialogue-unsubscribe", dialogueUnsubscribeHandler(subs))

	if deps.Dialog != nil {
		rpc("dialog-feedback", dialogFeedbackHandler(deps))
		rpc("dialog-params", dialogParamsHandler(deps))
	}
	if deps.Messages != nil {
		rpc("message.send", messageSendHandler(s, deps, subs))
		rpc("message.stop", messageStopHandler(deps, subs))
		rpc("message.delete", messageDeleteHandler(deps, subs))
		rpc("message.loading", messageLoadingHandler(deps))
	}
	if deps.Conversations != nil {
		rpc("conversation.list", conversationListHandler(deps))
		rpc("conversation.get", conversationGetHandler(deps))
		rpc("conversation.create", conversationCreateHandler(deps))
		rpc("conversation.update", conversationUpdateHandler(deps))
		rpc("conversation.delete", conversationDeleteHandler(deps))
	}
	if deps.Providers != nil {
		rpc("provider.list", providerListHandler(deps))
		rpc("provider.create", providerCreateHandler(deps))
		rpc("provider.update", providerUpdateHandler(deps))
		rpc("provider.delete", providerDeleteHandler(deps))
	}
	return writes.flush
}

// decode unmarshals an RPC payload, mapping failures to ErrRPCInvalidPayload.
// An empty payload leaves v untouched.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.ErrRPCInvalidPayload
	}
	return nil
}

// senderWindow resolves the window hosting the calling connection.
func senderWindow(deps HandlerDeps, client *ClientInfo) (domain.Window, error) {
	win, ok := deps.Windows.ByContent(client.ContentID)
	if !ok {
		return nil, domain.NewDomainError("gateway.window", domain.ErrWindowNotFound, client.ContentID)
	}
	return win, nil
}

var okResult = json.RawMessage(`{"ok":true}`)
