// Package services – SessionService
//
// SessionService coordinates the session lifecycle: creation (persisted for
// authenticated callers, ephemeral for anonymous/demo callers), finalization
// with duration accounting, and retrieval with the attached analysis.
//
// Ephemeral sessions carry a "demo-session-" prefixed id, never touch the
// database or the quota guard, and every later operation on such an id
// short-circuits the same way.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

const ephemeralPrefix = "demo-"

// CreateSessionInput is the request payload for starting a session.
type CreateSessionInput struct {
	Title     string  `json:"title"`
	CompanyID *string `json:"company_id,omitempty"`
	UserID    string  `json:"userId,omitempty"`
}

// SessionView is the client-facing session descriptor.
type SessionView struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Status           string          `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds  int             `json:"duration_seconds,omitempty"`
	ProcessingStatus string          `json:"processing_status"`
	IsDemo           bool            `json:"isDemo"`
	Transcript       json.RawMessage `json:"transcript,omitempty"`
	AnalyticsSummary json.RawMessage `json:"analytics_summary,omitempty"`
	DetailedAnalysis json.RawMessage `json:"detailed_analysis,omitempty"`
}

// SessionService manages session creation, finalization, and retrieval.
type SessionService struct {
	DB    *gorm.DB
	Quota *QuotaGuard
}

// NewSessionService constructs a SessionService.
func NewSessionService(db *gorm.DB, quota *QuotaGuard) *SessionService {
	return &SessionService{DB: db, Quota: quota}
}

// IsEphemeralID reports whether a session id denotes an ephemeral demo
// session that has no database row.
func IsEphemeralID(id string) bool { return strings.HasPrefix(id, ephemeralPrefix) }

// Create starts a session. Anonymous callers, and callers that explicitly
// flag themselves as the demo user, get an ephemeral descriptor with a
// generated id and no persistence. Authenticated callers get a database
// row, gated by the demo quota (demo role) or subscription minutes (paid).
func (s *SessionService) Create(ctx context.Context, ident *auth.Identity, in CreateSessionInput) (*SessionView, error) {
	if ident == nil || in.UserID == "demo-user" {
		return ephemeralSession(in.Title), nil
	}

	profile, err := repo.GetProfileByAuthID(ctx, s.DB, ident.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	if profile.IsDemo() {
		if !s.Quota.CanStart(profile) {
			return nil, ErrQuotaExceeded
		}
	} else {
		sub, err := repo.ActiveSubscription(ctx, s.DB, profile.ID)
		if err != nil {
			return nil, err
		}
		if sub != nil && sub.MinutesUsed >= sub.MinutesLimit {
			return nil, ErrQuotaExceeded
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	companyID := in.CompanyID
	if companyID == nil {
		companyID = profile.CompanyID
	} else if _, err := repo.GetCompany(ctx, s.DB, *companyID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown company_id", ErrValidation)
		}
		return nil, err
	}

	session := &domain.Session{
		ID:               uuid.NewString(),
		ProfileID:        &profile.ID,
		CompanyID:        companyID,
		Title:            title,
		Status:           domain.SessionActive,
		StartedAt:        time.Now().UTC(),
		ProcessingStatus: "ready",
	}
	if _, err := repo.CreateSession(ctx, s.DB, session); err != nil {
		return nil, err
	}

	// The row exists; from here on failures are bookkeeping and must not
	// undo a successful creation.
	if profile.IsDemo() {
		consumed, err := s.Quota.ConsumeSession(ctx, profile.ID)
		if err != nil {
			log.Error().Err(err).Str("profile_id", profile.ID).
				Msg("failed to consume demo session")
		} else if !consumed {
			log.Warn().Str("profile_id", profile.ID).
				Msg("demo session quota raced to zero after creation")
		}
	}
	s.audit(ctx, ident.UserID, profile, "session", "sessions", "create", map[string]any{
		"session_id": session.ID,
		"title":      title,
	})

	return &SessionView{
		ID:               session.ID,
		Title:            session.Title,
		Status:           session.Status,
		StartedAt:        session.StartedAt,
		ProcessingStatus: session.ProcessingStatus,
	}, nil
}

// FinalizeInput is the request payload for ending a session. Transcript is
// the turn array captured client-side, kept opaque and stored with the row.
type FinalizeInput struct {
	DurationSeconds int             `json:"duration_seconds"`
	ConversationID  *string         `json:"conversation_id,omitempty"`
	Transcript      json.RawMessage `json:"transcript,omitempty"`
}

// Finalize ends a session: sets duration and completion status, links the
// external conversation id when provided, and accrues minute usage against
// the owner's demo counter or subscription. Ephemeral ids succeed without
// any database access.
func (s *SessionService) Finalize(ctx context.Context, id string, in FinalizeInput) error {
	if IsEphemeralID(id) {
		return nil
	}

	session, err := repo.GetSession(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	if err := repo.FinalizeSession(ctx, s.DB, id, in.DurationSeconds, domain.SessionCompleted, datatypes.JSON(in.Transcript)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if in.ConversationID != nil && session.ConversationID == nil {
		if err := repo.SetSessionConversationID(ctx, s.DB, id, *in.ConversationID); err != nil {
			log.Error().Err(err).Str("session_id", id).
				Msg("failed to link conversation id")
		}
	}

	s.accrueMinutes(ctx, session, in.DurationSeconds)
	return nil
}

// accrueMinutes records consumed minutes on every ledger that tracks them.
// Distinct from the session counter: both independently gate future demo
// session starts. All writes are best-effort.
func (s *SessionService) accrueMinutes(ctx context.Context, session *domain.Session, durationSeconds int) {
	if session.ProfileID == nil || durationSeconds <= 0 {
		return
	}
	profileID := *session.ProfileID
	minutes := float64(durationSeconds) / 60

	profile, err := repo.GetProfile(ctx, s.DB, profileID)
	if err != nil {
		log.Error().Err(err).Str("profile_id", profileID).
			Msg("failed to load profile for minute accrual")
		return
	}
	if profile.IsDemo() {
		s.Quota.ConsumeMinutes(ctx, profileID, minutes)
	} else {
		sub, err := repo.ActiveSubscription(ctx, s.DB, profileID)
		if err != nil {
			log.Error().Err(err).Str("profile_id", profileID).
				Msg("failed to load subscription for minute accrual")
		} else if sub != nil {
			whole := int(math.Ceil(minutes))
			if err := repo.AddSubscriptionMinutes(ctx, s.DB, sub.ID, float64(whole)); err != nil {
				log.Error().Err(err).Str("subscription_id", sub.ID).
					Msg("failed to record subscription minutes")
			}
		}
	}
	if err := repo.CreateUsageRecord(ctx, s.DB, &domain.UsageRecord{
		ProfileID:   profileID,
		SessionID:   &session.ID,
		MinutesUsed: minutes,
	}); err != nil {
		log.Error().Err(err).Str("profile_id", profileID).
			Msg("failed to write usage record")
	}
}

// Get returns a session with its analysis attached. Ephemeral ids resolve
// to a demo descriptor without touching the database.
func (s *SessionService) Get(ctx context.Context, id string) (*SessionView, error) {
	if IsEphemeralID(id) {
		return &SessionView{
			ID:               id,
			Title:            "Demo Voice Training Session",
			Status:           domain.SessionActive,
			ProcessingStatus: "ready",
			IsDemo:           true,
		}, nil
	}

	session, err := repo.GetSession(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		ID:               session.ID,
		Title:            session.Title,
		Status:           session.Status,
		StartedAt:        session.StartedAt,
		EndedAt:          session.EndedAt,
		DurationSeconds:  session.DurationSeconds,
		ProcessingStatus: session.ProcessingStatus,
		Transcript:       json.RawMessage(session.Transcript),
		AnalyticsSummary: json.RawMessage(session.AnalyticsSummary),
	}
	result, err := repo.GetAnalysisBySessionID(ctx, s.DB, session.ID)
	if err == nil {
		view.DetailedAnalysis = json.RawMessage(result.Results)
	} else if !errors.Is(err, repo.ErrNotFound) {
		log.Error().Err(err).Str("session_id", session.ID).
			Msg("failed to load analysis for session")
	}
	return view, nil
}

func (s *SessionService) audit(ctx context.Context, userID string, profile *domain.Profile, eventType, resource, action string, details map[string]any) {
	payload, _ := json.Marshal(details)
	entry := &domain.AuditLog{
		UserID:    userID,
		CompanyID: profile.CompanyID,
		EventType: eventType,
		Resource:  resource,
		Action:    action,
		Details:   payload,
	}
	if err := repo.CreateAuditLog(ctx, s.DB, entry); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to write audit log")
	}
}

func ephemeralSession(title string) *SessionView {
	if strings.TrimSpace(title) == "" {
		title = "Demo Voice Training Session"
	}
	return &SessionView{
		ID:               ephemeralPrefix + "session-" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Title:            title,
		Status:           domain.SessionActive,
		StartedAt:        time.Now().UTC(),
		ProcessingStatus: "ready",
		IsDemo:           true,
	}
}
