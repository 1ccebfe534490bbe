package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"noelle/internal/domain"
	"noelle/internal/infra/debounce"
)

type getConfigRequest struct {
	Key string `json:"key,omitempty"`
}

func getConfigHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req getConfigRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.Key == "" {
			return json.Marshal(deps.Settings.All())
		}
		v, _ := deps.Settings.Get(req.Key)
		return json.Marshal(v)
	}
}

// configWrites debounces renderer writes to the settings store: set-config
// per key, update-config as a whole.
type configWrites struct {
	settings domain.SettingsStore
	logger   *slog.Logger
	perKey   *debounce.Group
	partial  *debounce.Debouncer
}

func newConfigWrites(deps HandlerDeps) *configWrites {
	return &configWrites{
		settings: deps.Settings,
		logger:   deps.Logger,
		perKey:   debounce.NewGroup(deps.ConfigDelay),
		partial:  debounce.New(deps.ConfigDelay),
	}
}

type setConfigRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (c *configWrites) setHandler() RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req setConfigRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.Key == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		c.perKey.Do(req.Key, func() {
			if err := c.settings.Set(req.Key, req.Value); err != nil {
				c.logger.Warn("gateway: set-config failed", "key", req.Key, "error", err)
			}
		})
		return okResult, nil
	}
}

func (c *configWrites) updateHandler() RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var partial map[string]any
		if err := decode(payload, &partial); err != nil {
			return nil, err
		}
		if len(partial) == 0 {
			return okResult, nil
		}
		c.partial.Do(func() {
			if err := c.settings.Update(partial); err != nil {
				c.logger.Warn("gateway: update-config failed", "error", err)
			}
		})
		return okResult, nil
	}
}

func (c *configWrites) flush() {
	c.perKey.Flush()
	c.partial.Flush()
}
