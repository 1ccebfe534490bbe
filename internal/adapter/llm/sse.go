package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"noelle/internal/domain"
)

// maxSSELine bounds a single SSE line; vendor chunks are far smaller.
const maxSSELine = 1024 * 1024

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a chunk using the provider-specific parseLine function.
// parseLine returns nil to skip a payload and an error to end the stream
// with that error. The channel is closed after a terminal chunk, an error
// item, end of body, or ctx cancellation.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.UniversalChunk, error)) <-chan domain.StreamChunk {
	ch := make(chan domain.StreamChunk, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		send := func(c domain.StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := scanner.Bytes()

			// Skip empty lines and comments.
			if len(line) == 0 || line[0] == ':' {
				continue
			}

			// We only care about "data:" lines.
			data, ok := bytes.CutPrefix(line, []byte("data:"))
			if !ok {
				continue
			}
			data = bytes.TrimSpace(data)

			// Common termination signal.
			if bytes.Equal(data, []byte("[DONE]")) {
				send(domain.StreamChunk{UniversalChunk: domain.UniversalChunk{IsEnd: true}})
				return
			}

			chunk, err := parseLine(data)
			if err != nil {
				send(domain.StreamChunk{Err: err})
				return
			}
			if chunk == nil {
				continue
			}
			if !send(domain.StreamChunk{UniversalChunk: *chunk}) {
				return
			}
			if chunk.IsEnd {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			send(domain.StreamChunk{Err: fmt.Errorf("read stream: %w", err)})
		}
	}()
	return ch
}
