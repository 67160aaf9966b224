// Package stream implements the Stream Decoder: line-buffered SSE
// parsing over a provider's chat-completion response body, emitting
// StreamChunk events on a channel with a guaranteed trailing done=true
// event. Ported from original_source's commands/llm.rs stream_message
// loop (buffer.find('\n'), parse_sse_line, final done emit).
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	"github.com/rs/zerolog/log"
)

// Decoder implements ports.StreamDecoder.
type Decoder struct{}

// New creates a Decoder.
func New() *Decoder { return &Decoder{} }

// Decode reads body line by line, translating each SSE data: line into a
// StreamChunk on the returned channel. The channel is always closed
// after a final done=true event, even if the body ends early or the
// context is cancelled.
func (d *Decoder) Decode(ctx context.Context, provider, sessionID, messageID string, body io.ReadCloser) (<-chan entities.StreamChunk, error) {
	out := make(chan entities.StreamChunk)

	go func() {
		defer close(out)
		defer body.Close()
		defer func() {
			out <- entities.StreamChunk{SessionID: sessionID, MessageID: messageID, Done: true}
		}()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			content, done, ok := parseSSELine(provider, line)
			if !ok {
				continue
			}
			if done {
				return
			}

			select {
			case out <- entities.StreamChunk{SessionID: sessionID, MessageID: messageID, Content: content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Str("provider", provider).Msg("stream read error")
		}
	}()

	return out, nil
}

// parseSSELine extracts a content delta from one SSE line. ok is false
// for lines that are not a recognized data: event or carry no
// extractable content (malformed JSON is silently skipped, per
// spec.md's edge-case handling). done is true once the terminal
// [DONE] marker is seen.
func parseSSELine(provider, line string) (content string, done bool, ok bool) {
	if !strings.HasPrefix(line, "data: ") {
		return "", false, false
	}
	data := strings.TrimPrefix(line, "data: ")

	if data == "[DONE]" {
		return "", true, true
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return "", false, false
	}

	switch provider {
	case "anthropic":
		delta, _ := parsed["delta"].(map[string]any)
		text, _ := delta["text"].(string)
		if text == "" {
			return "", false, false
		}
		return text, false, true
	default:
		choices, _ := parsed["choices"].([]any)
		if len(choices) == 0 {
			return "", false, false
		}
		first, _ := choices[0].(map[string]any)
		delta, _ := first["delta"].(map[string]any)
		text, _ := delta["content"].(string)
		if text == "" {
			return "", false, false
		}
		return text, false, true
	}
}
