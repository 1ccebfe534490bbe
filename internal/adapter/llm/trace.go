package llm

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"noelle/internal/domain"
	"noelle/internal/infra/tracer"
)

// TracedProvider records one span per stream, from the request until the
// channel closes.
type TracedProvider struct {
	inner domain.ChatProvider
}

// NewTracedProvider wraps inner with tracing.
func NewTracedProvider(inner domain.ChatProvider) *TracedProvider {
	return &TracedProvider{inner: inner}
}

// Name implements domain.ChatProvider.
func (p *TracedProvider) Name() string { return p.inner.Name() }

// ChatStream implements domain.ChatProvider.
func (p *TracedProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat_stream",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.inner.Name()),
			tracer.StringAttr("llm.model", model),
			tracer.IntAttr("llm.turns", len(turns)),
		),
	)

	in, err := p.inner.ChatStream(ctx, turns, model)
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		return nil, err
	}

	out := make(chan domain.StreamChunk, cap(in))
	go func() {
		defer close(out)
		defer span.End()

		chunks, failed := 0, false
		for c := range in {
			if c.Err != nil {
				tracer.RecordError(span, c.Err)
				failed = true
			} else {
				chunks++
			}
			select {
			case out <- c:
			case <-ctx.Done():
				span.SetAttributes(tracer.IntAttr("llm.chunks", chunks))
				tracer.RecordError(span, ctx.Err())
				return
			}
		}
		span.SetAttributes(tracer.IntAttr("llm.chunks", chunks))
		if !failed {
			tracer.SetOK(span)
		}
	}()
	return out, nil
}
