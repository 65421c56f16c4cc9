// Package services – analysis save
//
// SaveAnalysis persists a client-computed analysis for a conversation. The
// session row is looked up by conversation id and created retroactively
// when the caller has a profile; a caller with neither a profile nor an
// existing session gets a success=false outcome, not an error, because the
// client already holds the analysis locally.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

// SaveAnalysisInput is the request payload for persisting an analysis.
// AnalysisData is kept opaque except for the few fields the session and
// cache rows index on.
type SaveAnalysisInput struct {
	ConversationID string          `json:"conversation_id"`
	AnalysisData   json.RawMessage `json:"analysis_data"`
}

// SaveAnalysisResult reports whether the analysis was persisted and where.
type SaveAnalysisResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// AnalysisSaver persists client-computed analyses.
type AnalysisSaver struct {
	DB *gorm.DB
}

// NewAnalysisSaver constructs an AnalysisSaver.
func NewAnalysisSaver(db *gorm.DB) *AnalysisSaver {
	return &AnalysisSaver{DB: db}
}

// indexedFields are the values SaveAnalysis pulls out of the otherwise
// opaque analysis payload.
type indexedFields struct {
	Title           string  `json:"title"`
	OverallScore    float64 `json:"overall_score"`
	DurationSeconds int     `json:"duration_seconds"`
	MessageCount    int     `json:"message_count"`
	Model           string  `json:"model"`
}

// Save stores the analysis against the conversation's session, creating
// the session first when the caller has a profile and none exists yet.
func (s *AnalysisSaver) Save(ctx context.Context, ident *auth.Identity, in SaveAnalysisInput) (*SaveAnalysisResult, error) {
	if in.ConversationID == "" || len(in.AnalysisData) == 0 {
		return nil, fmt.Errorf("%w: conversation_id and analysis_data are required", ErrValidation)
	}

	var fields indexedFields
	if err := json.Unmarshal(in.AnalysisData, &fields); err != nil {
		return nil, fmt.Errorf("%w: analysis_data must be an object", ErrValidation)
	}

	var profile *domain.Profile
	if ident != nil {
		p, err := repo.GetProfileByAuthID(ctx, s.DB, ident.UserID)
		if err == nil {
			profile = p
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	session, err := repo.GetSessionByConversationID(ctx, s.DB, in.ConversationID)
	if errors.Is(err, repo.ErrNotFound) {
		if profile == nil {
			return &SaveAnalysisResult{
				Success: false,
				Message: "No user profile found, analysis not saved",
			}, nil
		}
		session, err = s.createSession(ctx, profile, in.ConversationID, fields)
	}
	if err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		SessionID:       session.ID,
		Provider:        "openai",
		Version:         orDefault(fields.Model, "gpt-4o"),
		Results:         datatypes.JSON(in.AnalysisData),
		ConfidenceScore: fields.OverallScore / 10,
	}
	if err := repo.UpsertAnalysis(ctx, s.DB, result); err != nil {
		return nil, err
	}
	return &SaveAnalysisResult{Success: true, SessionID: session.ID}, nil
}

func (s *AnalysisSaver) createSession(ctx context.Context, profile *domain.Profile, conversationID string, fields indexedFields) (*domain.Session, error) {
	summary, _ := json.Marshal(map[string]any{
		"overall_score": fields.OverallScore,
		"message_count": fields.MessageCount,
	})
	session := &domain.Session{
		ID:               uuid.NewString(),
		ProfileID:        &profile.ID,
		CompanyID:        profile.CompanyID,
		ConversationID:   &conversationID,
		Title:            orDefault(fields.Title, "Voice Training - "+time.Now().UTC().Format("2006-01-02 15:04")),
		Status:           domain.SessionAnalyzed,
		StartedAt:        time.Now().UTC(),
		DurationSeconds:  fields.DurationSeconds,
		ProcessingStatus: "completed",
		AnalyticsSummary: summary,
	}
	created, err := repo.CreateSession(ctx, s.DB, session)
	if errors.Is(err, repo.ErrDuplicate) {
		// Another writer claimed the conversation id first.
		return repo.GetSessionByConversationID(ctx, s.DB, conversationID)
	}
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).
			Msg("failed to create session for analysis save")
		return nil, err
	}
	return created, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
