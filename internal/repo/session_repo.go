// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// The (profile, conversation) pairing is write-once per conversation: the
// unique index on conversation_id makes a racing second insert fail with
// ErrDuplicate, and callers converge on the existing row via
// GetSessionByConversationID.
//
// Functions:
//
//   - CreateSession(ctx, db, s) -> *domain.Session, error
//     Inserts a new Session row with UUID primary key and UTC timestamps.
//
//   - GetSession(ctx, db, id) -> *domain.Session, error
//     Fetches a single session by ID, or ErrNotFound.
//
//   - GetSessionByConversationID(ctx, db, convID) -> *domain.Session, error
//     Fetches the session bound to an external conversation id.
//
//   - FinalizeSession(ctx, db, id, duration, status, transcript) -> error
//     Records duration, ended_at, the terminal status, and the final
//     transcript when one was captured.
//
//   - MarkSessionAnalyzed(ctx, db, id, summary) -> error
//     Flips the session to analyzed with its analytics summary blob.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// CreateSession inserts a new Session row. Returns ErrDuplicate when a
// session already exists for the same conversation id.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) (*domain.Session, error) {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	s.CreatedAt = now
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// GetSession fetches a single session by its ID, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionByConversationID fetches the session bound to the given external
// conversation id, or ErrNotFound.
func GetSessionByConversationID(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FinalizeSession records the call duration and terminal status for a
// session and stamps ended_at. Returns ErrNotFound when no row matches.
func FinalizeSession(ctx context.Context, db *gorm.DB, id string, durationSeconds int, status string, transcript datatypes.JSON) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"duration_seconds":  durationSeconds,
		"status":            status,
		"ended_at":          now,
		"processing_status": "completed",
	}
	if len(transcript) > 0 {
		updates["transcript"] = transcript
	}
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSessionAnalyzed flips a session to status=analyzed and attaches the
// small analytics summary blob used by dashboard listings.
func MarkSessionAnalyzed(ctx context.Context, db *gorm.DB, id string, summary datatypes.JSON) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            domain.SessionAnalyzed,
			"processing_status": "completed",
			"analytics_summary": summary,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountSessionsSince returns the number of sessions a profile started at or
// after the given instant.
func CountSessionsSince(ctx context.Context, db *gorm.DB, profileID string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("profile_id = ? AND created_at >= ?", profileID, since).
		Count(&total).Error
	return total, err
}

// SetSessionConversationID links the voice provider's conversation id to a
// session. The unique index rejects linking a conversation that another
// session already claimed.
func SetSessionConversationID(ctx context.Context, db *gorm.DB, id, conversationID string) error {
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("conversation_id", conversationID).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
