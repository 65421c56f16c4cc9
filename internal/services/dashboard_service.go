// Package services – DashboardService
//
// DashboardService renders the recent-sessions listing: a passthrough of
// the voice provider's conversation list, decorated with cached analysis
// scores where one exists. Every failure degrades to an empty list since
// the dashboard must render regardless.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/providers/voice"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

// RecentSession is one dashboard listing entry.
type RecentSession struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Minutes  int      `json:"minutes"`
	Score    *float64 `json:"score,omitempty"`
	Date     string   `json:"date"`
	Status   string   `json:"status"`
	Feedback string   `json:"feedback"`
}

// ConversationLister is the voice-provider surface the dashboard needs.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]voice.ConversationSummary, error)
	Configured() bool
}

// DashboardService lists recent conversations with cached scores.
type DashboardService struct {
	DB    *gorm.DB
	Voice ConversationLister
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(db *gorm.DB, v ConversationLister) *DashboardService {
	return &DashboardService{DB: db, Voice: v}
}

// RecentSessions returns up to limit recent conversations. A provider
// failure or missing configuration yields an empty list, never an error.
func (d *DashboardService) RecentSessions(ctx context.Context, limit int) []RecentSession {
	if !d.Voice.Configured() {
		return []RecentSession{}
	}
	conversations, err := d.Voice.ListConversations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations for dashboard")
		return []RecentSession{}
	}
	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	out := make([]RecentSession, 0, len(conversations))
	for _, conv := range conversations {
		started := time.Unix(conv.StartTimeUnixSecs, 0).UTC()
		title := conv.CallSummaryTitle
		if title == "" {
			title = "Voice Training - " + started.Format("2006-01-02")
		}
		status := conv.Status
		if status == "done" {
			status = "completed"
		}
		feedback := conv.TranscriptSummary
		if feedback == "" {
			feedback = "AI-powered analysis available"
		}
		entry := RecentSession{
			ID:       conv.ConversationID,
			Title:    title,
			Minutes:  (conv.CallDurationSecs + 59) / 60,
			Date:     started.Format(time.RFC3339),
			Status:   status,
			Feedback: feedback,
		}
		if score, ok := d.cachedScore(ctx, conv.ConversationID); ok {
			entry.Score = &score
		}
		out = append(out, entry)
	}
	return out
}

// cachedScore pulls the headline score from the session's analytics
// summary when the conversation was analyzed.
func (d *DashboardService) cachedScore(ctx context.Context, conversationID string) (float64, bool) {
	session, err := repo.GetSessionByConversationID(ctx, d.DB, conversationID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).Str("conversation_id", conversationID).
				Msg("failed to look up cached score")
		}
		return 0, false
	}
	if len(session.AnalyticsSummary) == 0 {
		return 0, false
	}
	var summary struct {
		OverallScore float64 `json:"overall_score"`
	}
	if err := json.Unmarshal(session.AnalyticsSummary, &summary); err != nil || summary.OverallScore == 0 {
		return 0, false
	}
	return summary.OverallScore, true
}
