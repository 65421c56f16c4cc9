// Package services – Analyzer
//
// Analyzer runs the analyze-conversation workflow: cache check, transcript
// fetch, LLM scoring, normalization, and a best-effort cache write. The
// cache is keyed by the voice provider's conversation id via the session
// row; a hit short-circuits the whole pipeline so a conversation is never
// billed to the LLM twice in sequence.
//
// No mutual exclusion is taken across concurrent first-time requests for
// the same conversation: both may miss the cache and both may pay for an
// LLM call, and the upsert's conflict target converges them on one stored
// row. Duplicate cost under that race is accepted; duplicate rows are not.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/providers/voice"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

const analysisSystemPrompt = `You are an expert sales conversation analyst. Analyze this sales training conversation and provide detailed feedback.

Please provide a JSON response with the following structure:
{
  "overall_score": number (1-10),
  "key_strengths": [string array],
  "areas_for_improvement": [string array],
  "specific_feedback": {
    "opening": string,
    "product_presentation": string,
    "objection_handling": string,
    "closing": string
  },
  "recommended_actions": [string array],
  "conversation_summary": string
}`

// SectionFeedback holds the four fixed per-phase critique sections.
type SectionFeedback struct {
	Opening             string `json:"opening"`
	ProductPresentation string `json:"product_presentation"`
	ObjectionHandling   string `json:"objection_handling"`
	Closing             string `json:"closing"`
}

// Analysis is the LLM's scored critique in the fixed response schema.
type Analysis struct {
	OverallScore        float64         `json:"overall_score"`
	KeyStrengths        []string        `json:"key_strengths"`
	AreasForImprovement []string        `json:"areas_for_improvement"`
	SpecificFeedback    SectionFeedback `json:"specific_feedback"`
	RecommendedActions  []string        `json:"recommended_actions"`
	ConversationSummary string          `json:"conversation_summary"`
}

// AnalysisReport is the full client-facing envelope returned by an analyze
// call and stored verbatim as the cached result.
type AnalysisReport struct {
	ConversationID       string                 `json:"conversation_id"`
	AnalysisTimestamp    string                 `json:"analysis_timestamp"`
	ConversationMetadata ConversationMetadata   `json:"conversation_metadata"`
	Analysis             Analysis               `json:"analysis"`
	Transcript           []voice.TranscriptTurn `json:"transcript"`
	RawTranscriptText    string                 `json:"raw_transcript_text"`
	Cached               bool                   `json:"cached,omitempty"`
}

// ConversationMetadata summarizes the analyzed call.
type ConversationMetadata struct {
	Duration       int    `json:"duration"`
	MessageCount   int    `json:"message_count"`
	StartTime      int64  `json:"start_time"`
	Status         string `json:"status"`
	CallSuccessful string `json:"call_successful"`
}

// Completer is the LLM surface the analyzer needs; tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Analyzer orchestrates conversation analysis.
type Analyzer struct {
	DB          *gorm.DB
	Transcripts *TranscriptFetcher
	LLM         Completer
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(db *gorm.DB, fetcher *TranscriptFetcher, llm Completer) *Analyzer {
	return &Analyzer{DB: db, Transcripts: fetcher, LLM: llm}
}

// Analyze runs or returns the cached analysis for a conversation. authID is
// the verified auth subject, or empty for an anonymous caller. The returned
// bytes are the exact JSON served to the client; on a cache hit they are
// the stored payload verbatim, so repeated calls are byte-identical.
//
// Attribution runs after the LLM call succeeds: an auth or persistence
// problem never blocks the analysis itself, it only skips caching.
func (a *Analyzer) Analyze(ctx context.Context, conversationID, authID string) (json.RawMessage, bool, error) {
	tr := otel.Tracer("services/Analyzer")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if cached, ok := a.lookupCache(ctx, conversationID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, true, nil
	}

	detail, err := a.Transcripts.Fetch(ctx, conversationID)
	if err != nil {
		return nil, false, err
	}
	transcriptText := FlattenTranscript(detail.Transcript)

	raw, err := a.LLM.Complete(ctx, analysisSystemPrompt,
		"Please analyze this sales conversation:\n\n"+transcriptText)
	if err != nil {
		return nil, false, err
	}
	analysis := parseAnalysis(raw)

	report := AnalysisReport{
		ConversationID:    conversationID,
		AnalysisTimestamp: time.Now().UTC().Format(time.RFC3339),
		ConversationMetadata: ConversationMetadata{
			Duration:       detail.Metadata.CallDurationSecs,
			MessageCount:   len(detail.Transcript),
			StartTime:      detail.Metadata.StartTimeUnixSecs,
			Status:         detail.Status,
			CallSuccessful: detail.CallSuccessful,
		},
		Analysis:          analysis,
		Transcript:        detail.Transcript,
		RawTranscriptText: transcriptText,
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, false, err
	}

	a.persist(ctx, conversationID, authID, &report, payload)
	return payload, false, nil
}

// lookupCache joins session (by conversation id) to its analysis result and
// returns the stored payload when present.
func (a *Analyzer) lookupCache(ctx context.Context, conversationID string) (json.RawMessage, bool) {
	session, err := repo.GetSessionByConversationID(ctx, a.DB, conversationID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).Str("conversation_id", conversationID).
				Msg("analysis cache lookup failed")
		}
		return nil, false
	}
	result, err := repo.GetAnalysisBySessionID(ctx, a.DB, session.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).Str("session_id", session.ID).
				Msg("analysis cache lookup failed")
		}
		return nil, false
	}
	return json.RawMessage(result.Results), true
}

// persist credits the analysis to the caller's session and caches the
// payload. Best-effort: every failure is logged and swallowed because the
// computed analysis has already been paid for and must reach the caller.
func (a *Analyzer) persist(ctx context.Context, conversationID, authID string, report *AnalysisReport, payload []byte) {
	if authID == "" {
		return
	}
	profile, err := repo.GetProfileByAuthID(ctx, a.DB, authID)
	if err != nil {
		log.Warn().Err(err).Str("auth_id", authID).
			Msg("skipping analysis cache write: no profile for caller")
		return
	}

	session, err := repo.GetSessionByConversationID(ctx, a.DB, conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		session, err = a.createRetroactiveSession(ctx, profile, conversationID, report)
	}
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).
			Msg("failed to resolve session for analysis cache write")
		return
	}

	result := &domain.AnalysisResult{
		SessionID:       session.ID,
		Provider:        "openai",
		Version:         a.LLM.Model(),
		Results:         datatypes.JSON(payload),
		ConfidenceScore: report.Analysis.OverallScore / 10,
	}
	if err := repo.UpsertAnalysis(ctx, a.DB, result); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).
			Msg("failed to cache analysis result")
		return
	}

	summary, _ := json.Marshal(map[string]any{
		"overall_score": report.Analysis.OverallScore,
		"analyzed_at":   report.AnalysisTimestamp,
	})
	if err := repo.MarkSessionAnalyzed(ctx, a.DB, session.ID, summary); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).
			Msg("failed to mark session analyzed")
	}
}

// createRetroactiveSession records a session row for a conversation that
// was analyzed without one, so the cache has a key to hang the result on.
// A concurrent analyzer may win the insert; the unique conversation-id
// index turns that into a lookup.
func (a *Analyzer) createRetroactiveSession(ctx context.Context, profile *domain.Profile, conversationID string, report *AnalysisReport) (*domain.Session, error) {
	started := time.Now().UTC()
	if report.ConversationMetadata.StartTime > 0 {
		started = time.Unix(report.ConversationMetadata.StartTime, 0).UTC()
	}
	session := &domain.Session{
		ID:               uuid.NewString(),
		ProfileID:        &profile.ID,
		CompanyID:        profile.CompanyID,
		ConversationID:   &conversationID,
		Title:            "Voice Training - " + started.Format("2006-01-02"),
		Status:           domain.SessionAnalyzed,
		StartedAt:        started,
		DurationSeconds:  report.ConversationMetadata.Duration,
		ProcessingStatus: "completed",
	}
	created, err := repo.CreateSession(ctx, a.DB, session)
	if errors.Is(err, repo.ErrDuplicate) {
		return repo.GetSessionByConversationID(ctx, a.DB, conversationID)
	}
	return created, err
}

// parseAnalysis decodes the LLM's completion. An unparseable completion
// never fails the request: the raw text is preserved as the summary and the
// remaining fields get deterministic placeholders so the response schema
// holds.
func parseAnalysis(raw string) Analysis {
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err == nil {
		return a
	}
	return Analysis{
		OverallScore:        7.5,
		ConversationSummary: raw,
		KeyStrengths:        []string{"Conversation completed successfully"},
		AreasForImprovement: []string{"Analysis pending"},
		SpecificFeedback: SectionFeedback{
			Opening:             "Analysis in progress",
			ProductPresentation: "Analysis in progress",
			ObjectionHandling:   "Analysis in progress",
			Closing:             "Analysis in progress",
		},
		RecommendedActions: []string{"Review conversation for improvement opportunities"},
	}
}
