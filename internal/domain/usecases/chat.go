package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatStreamer orchestrates a single streaming turn against a remote
// provider: shape the request via ports.ProviderAdapter, resolve the
// secret via ports.CredentialProvider, POST it, and hand the response
// body to ports.StreamDecoder. Grounded on original_source's
// stream_message command and generalized from the teacher's
// QueryUseCase (internal/domain/usecases/query.go) request/response
// shape.
type ChatStreamer struct {
	provider   ports.ProviderAdapter
	credential ports.CredentialProvider
	decoder    ports.StreamDecoder
	metadata   ports.MetadataStore
	httpClient *http.Client
}

// NewChatStreamer wires a ChatStreamer from its ports.
func NewChatStreamer(provider ports.ProviderAdapter, credential ports.CredentialProvider, decoder ports.StreamDecoder, metadata ports.MetadataStore, timeout time.Duration) *ChatStreamer {
	return &ChatStreamer{
		provider:   provider,
		credential: credential,
		decoder:    decoder,
		metadata:   metadata,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Stream sends messages to providerID/model and returns a channel of
// incremental StreamChunk events, persisting the assembled assistant
// reply to the Metadata Store once the stream completes.
func (c *ChatStreamer) Stream(ctx context.Context, sessionID, providerID, model, customBaseURL string, messages []entities.ChatMessage) (<-chan entities.StreamChunk, error) {
	apiKey, err := c.credential.Lookup(ctx, providerID)
	if err != nil {
		return nil, err
	}

	url, err := c.provider.URL(providerID, model, customBaseURL)
	if err != nil {
		return nil, err
	}
	body, err := c.provider.Body(providerID, model, messages)
	if err != nil {
		return nil, err
	}
	headers, err := c.provider.Headers(providerID, apiKey)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", domerrors.ErrRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrRequest, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Info().Str("provider", providerID).Str("url", url).Msg("starting stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", domerrors.ErrAPI, &domerrors.APIError{StatusCode: resp.StatusCode, Body: string(errBody)})
	}

	messageID := uuid.NewString()
	rawChunks, err := c.decoder.Decode(ctx, providerID, sessionID, messageID, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	out := make(chan entities.StreamChunk)
	go func() {
		defer close(out)
		var full bytes.Buffer
		for chunk := range rawChunks {
			full.WriteString(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if full.Len() > 0 {
			if err := c.metadata.SaveMessage(ctx, &entities.ChatMessage{
				ID: messageID, SessionID: sessionID, Role: "assistant",
				Content: full.String(), Timestamp: time.Now(),
			}); err != nil {
				log.Error().Err(err).Msg("failed to persist assistant reply")
			}
		}
	}()

	return out, nil
}
