package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"noelle/internal/domain"
)

type fakeEventReader struct {
	events chan types.ConverseStreamOutput
	err    error
	closed bool
}

func newFakeEventReader(err error, events ...types.ConverseStreamOutput) *fakeEventReader {
	ch := make(chan types.ConverseStreamOutput, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return &fakeEventReader{events: ch, err: err}
}

func (f *fakeEventReader) Events() <-chan types.ConverseStreamOutput { return f.events }
func (f *fakeEventReader) Close() error                              { f.closed = true; return nil }
func (f *fakeEventReader) Err() error                                { return f.err }

func textDelta(s string) types.ConverseStreamOutput {
	return &types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta:             &types.ContentBlockDeltaMemberText{Value: s},
		},
	}
}

func TestPumpBedrockStream(t *testing.T) {
	reader := newFakeEventReader(nil,
		&types.ConverseStreamOutputMemberMessageStart{Value: types.MessageStartEvent{Role: types.ConversationRoleAssistant}},
		textDelta("Hello"),
		textDelta(" world"),
		&types.ConverseStreamOutputMemberMessageStop{Value: types.MessageStopEvent{StopReason: types.StopReasonEndTurn}},
		&types.ConverseStreamOutputMemberMetadata{},
	)

	chunks := collect(t, pumpBedrockStream(context.Background(), reader))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	if chunks[0].Result+chunks[1].Result != "Hello world" {
		t.Errorf("text = %q", chunks[0].Result+chunks[1].Result)
	}
	if !chunks[2].IsEnd {
		t.Error("message stop should end the stream")
	}
	if !reader.closed {
		t.Error("event stream should be closed")
	}
}

func TestPumpBedrockStreamError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	reader := newFakeEventReader(apiErr, textDelta("partial"))

	chunks := collect(t, pumpBedrockStream(context.Background(), reader))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 items, got %+v", chunks)
	}
	if !errors.Is(chunks[1].Err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", chunks[1].Err)
	}
}

type fakeConverse struct {
	input *bedrockruntime.ConverseStreamInput
	err   error
}

func (f *fakeConverse) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	f.input = params
	return nil, f.err
}

func TestBedrockProviderMapsInitError(t *testing.T) {
	fake := &fakeConverse{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}}
	p := newBedrockProviderWithClient(fake, newTestLogger())

	_, err := p.ChatStream(context.Background(), []domain.Turn{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}, "anthropic.claude-3-haiku")
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected ErrAuthInvalid, got %v", err)
	}

	in := fake.input
	if aws.ToString(in.ModelId) != "anthropic.claude-3-haiku" {
		t.Errorf("model = %q", aws.ToString(in.ModelId))
	}
	if len(in.System) != 1 || len(in.Messages) != 2 {
		t.Fatalf("system=%d messages=%d", len(in.System), len(in.Messages))
	}
	if in.Messages[1].Role != types.ConversationRoleAssistant {
		t.Errorf("role = %v", in.Messages[1].Role)
	}
}

func TestMapBedrockError(t *testing.T) {
	tests := []struct {
		code string
		msg  string
		want error
	}{
		{"ThrottlingException", "x", domain.ErrRateLimit},
		{"UnrecognizedClientException", "x", domain.ErrAuthInvalid},
		{"ValidationException", "input is too long", domain.ErrContextOverflow},
		{"ServiceUnavailableException", "x", domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapBedrockError(&smithy.GenericAPIError{Code: tt.code, Message: tt.msg})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.code, tt.want, err)
		}
	}
	if mapBedrockError(nil) != nil {
		t.Error("nil should map to nil")
	}
}
