package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"noelle/internal/domain"
)

const defaultBedrockRegion = "us-east-1"

// bedrockConverseAPI abstracts the Bedrock runtime method for testability.
type bedrockConverseAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// bedrockEventReader is the subset of the event stream the pump consumes.
type bedrockEventReader interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

// BedrockProvider implements domain.ChatProvider via the AWS Bedrock Converse API.
type BedrockProvider struct {
	region string
	creds  Credentials
	logger *slog.Logger

	// client is built lazily so construction stays free of I/O.
	client bedrockConverseAPI
}

// NewBedrockProvider creates a Bedrock provider. Static keys are used when
// present; otherwise the default AWS credential chain applies.
func NewBedrockProvider(creds Credentials, logger *slog.Logger) *BedrockProvider {
	region := creds.Region
	if region == "" {
		region = defaultBedrockRegion
	}
	return &BedrockProvider{region: region, creds: creds, logger: logger}
}

// newBedrockProviderWithClient creates a BedrockProvider with an injected client (for testing).
func newBedrockProviderWithClient(client bedrockConverseAPI, logger *slog.Logger) *BedrockProvider {
	return &BedrockProvider{region: defaultBedrockRegion, client: client, logger: logger}
}

// Name implements domain.ChatProvider.
func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) api(ctx context.Context) (bedrockConverseAPI, error) {
	if p.client != nil {
		return p.client, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(p.region)}
	if p.creds.AccessKey != "" && p.creds.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.creds.AccessKey, p.creds.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = bedrockruntime.NewFromConfig(awsCfg)
	return p.client, nil
}

// ChatStream implements domain.ChatProvider.
func (p *BedrockProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	client, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	output, err := client.ConverseStream(ctx, toBedrockConverseStreamInput(turns, model))
	if err != nil {
		return nil, mapBedrockError(err)
	}

	return pumpBedrockStream(ctx, output.GetStream()), nil
}

// pumpBedrockStream forwards converse events as chunks. A stream that ends
// without a stop event and without an error produces no terminal chunk.
func pumpBedrockStream(ctx context.Context, stream bedrockEventReader) <-chan domain.StreamChunk {
	ch := make(chan domain.StreamChunk, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		for evt := range stream.Events() {
			chunk := processBedrockStreamEvent(evt)
			if chunk == nil {
				continue
			}
			select {
			case ch <- domain.StreamChunk{UniversalChunk: *chunk}:
			case <-ctx.Done():
				return
			}
			if chunk.IsEnd {
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- domain.StreamChunk{Err: mapBedrockError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// --- Bedrock request/response conversion ---

func toBedrockConverseStreamInput(turns []domain.Turn, model string) *bedrockruntime.ConverseStreamInput {
	input := &bedrockruntime.ConverseStreamInput{ModelId: aws.String(model)}
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: t.Content})
			continue
		}
		role := types.ConversationRoleUser
		if t.Role == domain.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: t.Content}},
		})
	}
	return input
}

func processBedrockStreamEvent(evt types.ConverseStreamOutput) *domain.UniversalChunk {
	switch e := evt.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		if d, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
			return &domain.UniversalChunk{Result: d.Value}
		}
		return nil

	case *types.ConverseStreamOutputMemberMessageStop:
		return &domain.UniversalChunk{IsEnd: true}

	default:
		return nil
	}
}

// --- Error mapping ---

func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)
		case code == "ValidationException" && strings.Contains(msg, "too long"):
			return fmt.Errorf("%w: %s", domain.ErrContextOverflow, msg)
		case code == "ModelNotReadyException" || code == "ServiceUnavailableException" ||
			code == "InternalServerException":
			return fmt.Errorf("%w: %s", domain.ErrProviderError, msg)
		}
	}

	return fmt.Errorf("bedrock: %w", err)
}
