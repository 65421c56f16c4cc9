// Package voice is the HTTP client for the conversational-voice provider's
// conversation API. Authentication is a static API key sent as the
// xi-api-key header.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pitchloop/sales-coach-backend/internal/config"
	"github.com/pitchloop/sales-coach-backend/internal/providers"
)

// ConversationSummary is one entry of the provider's conversation list.
type ConversationSummary struct {
	ConversationID    string `json:"conversation_id"`
	AgentID           string `json:"agent_id"`
	AgentName         string `json:"agent_name"`
	Status            string `json:"status"`
	CallSuccessful    string `json:"call_successful"`
	CallSummaryTitle  string `json:"call_summary_title"`
	TranscriptSummary string `json:"transcript_summary"`
	StartTimeUnixSecs int64  `json:"start_time_unix_secs"`
	CallDurationSecs  int    `json:"call_duration_secs"`
	MessageCount      int    `json:"message_count"`
	Direction         string `json:"direction"`
}

// TranscriptTurn is one utterance of a conversation transcript.
type TranscriptTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ConversationDetail is the provider's full record for one conversation,
// including the transcript once transcription has finished. An empty
// Transcript on a successful response means transcription is still pending.
type ConversationDetail struct {
	ConversationID string           `json:"conversation_id"`
	Status         string           `json:"status"`
	CallSuccessful string           `json:"call_successful"`
	Transcript     []TranscriptTurn `json:"transcript"`
	HasAudio       bool             `json:"has_audio"`
	Metadata       struct {
		StartTimeUnixSecs int64 `json:"start_time_unix_secs"`
		CallDurationSecs  int   `json:"call_duration_secs"`
	} `json:"metadata"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

// Client calls the voice provider's conversation endpoints.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient builds a voice-provider client from configuration.
func NewClient(cfg config.VoiceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is present. Callers degrade to
// empty results rather than erroring when the provider is not configured.
func (c *Client) Configured() bool { return c.apiKey != "" }

// ListConversations fetches the provider's conversation list.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	if err := c.get(ctx, "/v1/convai/conversations", &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation fetches the full detail, including the transcript, for
// one conversation id.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.get(ctx, "/v1/convai/conversations/"+conversationID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("voice: request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &providers.UpstreamError{Provider: "voice provider", Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("voice: decode response: %w", err)
	}
	return nil
}
