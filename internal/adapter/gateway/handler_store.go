package gateway

import (
	"context"
	"encoding/json"

	"noelle/internal/domain"
)

// --- conversations ---

type idRequest struct {
	ID string `json:"id"`
}

func (r idRequest) validate() error {
	if r.ID == "" {
		return domain.ErrRPCInvalidPayload
	}
	return nil
}

func conversationListHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		convs, err := deps.Conversations.ListConversations(ctx)
		if err != nil {
			return nil, err
		}
		if convs == nil {
			convs = []*domain.Conversation{}
		}
		return json.Marshal(convs)
	}
}

type conversationDetail struct {
	*domain.Conversation
	Messages []*domain.Message `json:"messages,omitempty"`
}

func conversationGetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req idRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		conv, err := deps.Conversations.GetConversation(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		out := conversationDetail{Conversation: conv}
		if deps.History != nil {
			if out.Messages, err = deps.History.ListMessages(ctx, req.ID); err != nil {
				return nil, err
			}
		}
		return json.Marshal(out)
	}
}

func conversationCreateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var conv domain.Conversation
		if err := decode(payload, &conv); err != nil {
			return nil, err
		}
		if conv.ProviderID == "" {
			return nil, domain.NewDomainError("gateway.conversation.create", domain.ErrInvalidInput, "providerId is required")
		}
		conv.ID = ""
		if err := deps.Conversations.CreateConversation(ctx, &conv); err != nil {
			return nil, err
		}
		return json.Marshal(conv)
	}
}

func conversationUpdateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var conv domain.Conversation
		if err := decode(payload, &conv); err != nil {
			return nil, err
		}
		if conv.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Conversations.UpdateConversation(ctx, &conv); err != nil {
			return nil, err
		}
		return json.Marshal(conv)
	}
}

func conversationDeleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req idRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		if err := deps.Conversations.DeleteConversation(ctx, req.ID); err != nil {
			return nil, err
		}
		return okResult, nil
	}
}

// --- providers ---

func providerListHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		providers, err := deps.Providers.ListProviders(ctx)
		if err != nil {
			return nil, err
		}
		if providers == nil {
			providers = []*domain.Provider{}
		}
		return json.Marshal(providers)
	}
}

func providerCreateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var p domain.Provider
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, domain.NewDomainError("gateway.provider.create", domain.ErrInvalidInput, "name is required")
		}
		p.ID = ""
		if err := deps.Providers.CreateProvider(ctx, &p); err != nil {
			return nil, err
		}
		return json.Marshal(p)
	}
}

func providerUpdateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var p domain.Provider
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Providers.UpdateProvider(ctx, &p); err != nil {
			return nil, err
		}
		return json.Marshal(p)
	}
}

func providerDeleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req idRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		if err := deps.Providers.DeleteProvider(ctx, req.ID); err != nil {
			return nil, err
		}
		return okResult, nil
	}
}
