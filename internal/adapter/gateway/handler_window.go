package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"noelle/internal/domain"
)

// --- windows ---

type openWindowRequest struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

type openWindowResponse struct {
	Result string `json:"result"`
}

func openWindowHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req openWindowRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.Name == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		// The requester may be a window that is not tracked, e.g. a
		// connection opened before its window finished loading.
		requester, _ := deps.Windows.ByContent(client.ContentID)
		result, err := deps.Scenes.Open(ctx, req.Name, requester, req.Params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(openWindowResponse{Result: result})
	}
}

func closeWindowHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		win, err := senderWindow(deps, client)
		if err != nil {
			return nil, err
		}
		deps.Windows.CloseByPolicy(win)
		return okResult, nil
	}
}

func minimizeWindowHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		win, err := senderWindow(deps, client)
		if err != nil {
			return nil, err
		}
		deps.Windows.Minimize(win)
		return okResult, nil
	}
}

func maximizeWindowHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		win, err := senderWindow(deps, client)
		if err != nil {
			return nil, err
		}
		deps.Windows.ToggleMax(win)
		return okResult, nil
	}
}

type maximizedResponse struct {
	Maximized bool `json:"maximized"`
}

func isMaximizedHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		win, err := senderWindow(deps, client)
		if err != nil {
			return nil, err
		}
		return json.Marshal(maximizedResponse{Maximized: win.IsMaximized()})
	}
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

func rendererReadyHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(readyResponse{Ready: deps.Windows.RendererReady(client.ContentID)})
	}
}

// --- theme ---

type themeModeRequest struct {
	Mode string `json:"mode"`
}

type themeModeResponse struct {
	Mode   string `json:"mode"`
	IsDark bool   `json:"isDark"`
}

func setThemeModeHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req themeModeRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		isDark, err := deps.Theme.SetThemeMode(req.Mode)
		if err != nil {
			return nil, err
		}
		return json.Marshal(themeModeResponse{Mode: deps.Theme.ThemeMode(), IsDark: isDark})
	}
}

func getThemeModeHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(themeModeResponse{Mode: deps.Theme.ThemeMode(), IsDark: deps.Theme.IsDark()})
	}
}

type isDarkResponse struct {
	IsDark bool `json:"isDark"`
}

func isDarkThemeHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(isDarkResponse{IsDark: deps.Theme.IsDark()})
	}
}

// --- menus ---

type showMenuRequest struct {
	MenuID         string          `json:"menuId"`
	DynamicOptions json.RawMessage `json:"dynamicOptions,omitempty"`
}

type showMenuResponse struct {
	ItemID string `json:"itemId"`
}

func showContextMenuHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req showMenuRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MenuID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		itemID, err := deps.Menus.Show(ctx, req.MenuID, req.DynamicOptions)
		if err != nil {
			return nil, err
		}
		return json.Marshal(showMenuResponse{ItemID: itemID})
	}
}

type menuSelectRequest struct {
	PopupID string `json:"popupId"`
	ItemID  string `json:"itemId"`
}

type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

func contextMenuSelectHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req menuSelectRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.PopupID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		return json.Marshal(acceptedResponse{Accepted: deps.MenuChooser.Choose(req.PopupID, req.ItemID)})
	}
}

// --- dialog window ---

type dialogFeedbackRequest struct {
	Type  string `json:"type"`
	WinID string `json:"winId"`
}

func dialogFeedbackHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req dialogFeedbackRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return json.Marshal(acceptedResponse{Accepted: deps.Dialog.Feedback(client.ContentID, req.WinID, req.Type)})
	}
}

func dialogParamsHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		params, ok := deps.Dialog.Params(client.ContentID)
		if !ok {
			return nil, domain.NewDomainError("gateway.dialog-params", domain.ErrWindowNotFound,
				fmt.Sprintf("content %s is not the dialog", client.ContentID))
		}
		return json.Marshal(params)
	}
}
