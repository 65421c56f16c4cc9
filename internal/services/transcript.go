// Package services – TranscriptFetcher
//
// The voice provider reports a conversation before its transcription has
// finished, so a successful detail fetch can still carry an empty
// transcript. TranscriptFetcher polls with a fixed backoff until the
// transcript appears or the attempt budget runs out. An upstream HTTP
// failure is fatal immediately: that is an availability problem, not a
// timing one, and retrying would only mask it.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/pitchloop/sales-coach-backend/internal/providers/voice"
)

// ConversationGetter is the voice-provider surface the fetcher needs; tests
// substitute a stub.
type ConversationGetter interface {
	GetConversation(ctx context.Context, conversationID string) (*voice.ConversationDetail, error)
}

// TranscriptFetcher polls for a conversation's transcript.
type TranscriptFetcher struct {
	Voice      ConversationGetter
	MaxRetries int           // extra attempts after the first
	Backoff    time.Duration // delay between attempts

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTranscriptFetcher constructs a fetcher with the configured polling
// budget.
func NewTranscriptFetcher(v ConversationGetter, maxRetries int, backoff time.Duration) *TranscriptFetcher {
	return &TranscriptFetcher{
		Voice:      v,
		MaxRetries: maxRetries,
		Backoff:    backoff,
		sleep:      sleepCtx,
	}
}

// Fetch returns the conversation detail once its transcript is non-empty.
// Returns ErrTranscriptNotReady after MaxRetries+1 attempts all see an
// empty transcript; any provider error is propagated unchanged on first
// occurrence.
func (f *TranscriptFetcher) Fetch(ctx context.Context, conversationID string) (*voice.ConversationDetail, error) {
	attempts := f.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		detail, err := f.Voice.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if len(detail.Transcript) > 0 {
			return detail, nil
		}
		if i < attempts-1 {
			if err := f.sleep(ctx, f.Backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, ErrTranscriptNotReady
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FlattenTranscript renders the transcript turns as readable dialogue for
// the LLM prompt.
func FlattenTranscript(turns []voice.TranscriptTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := "AI"
		if t.Role == "user" {
			speaker = "User"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(t.Message)
	}
	return b.String()
}
