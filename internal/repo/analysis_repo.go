// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// AnalysisResult model, the storage half of the analysis cache.
//
// The unique index on session_id is the conflict target of the upsert: two
// callers racing to analyze the same conversation both reach UpsertAnalysis
// and converge on one stored row instead of erroring or duplicating.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// GetAnalysisBySessionID fetches the stored analysis for a session, or
// ErrNotFound. Presence of a row here is what "already analyzed" means.
func GetAnalysisBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.AnalysisResult, error) {
	var r domain.AnalysisResult
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertAnalysis stores an analysis result, replacing any existing row for
// the same session id. The operation is idempotent: repeated stores for one
// session leave exactly one row.
func UpsertAnalysis(ctx context.Context, db *gorm.DB, r *domain.AnalysisResult) error {
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"analysis_type", "provider", "version", "results", "confidence_score", "updated_at",
			}),
		}).
		Create(r).Error
}
