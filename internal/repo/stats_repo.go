package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// CountSessionsBetween counts a profile's sessions started within [from, to).
func CountSessionsBetween(ctx context.Context, db *gorm.DB, profileID string, from, to time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("profile_id = ? AND started_at >= ? AND started_at < ?", profileID, from, to).
		Count(&n).Error
	return n, err
}

// SumUsageMinutesSince totals the minutes recorded for a profile since the
// given instant. Used for the dashboard's month-to-date figure.
func SumUsageMinutesSince(ctx context.Context, db *gorm.DB, profileID string, since time.Time) (float64, error) {
	var total float64
	err := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("profile_id = ? AND created_at >= ?", profileID, since).
		Select("COALESCE(SUM(minutes_used), 0)").
		Scan(&total).Error
	return total, err
}

// AverageConfidenceScore returns the mean confidence score across a profile's
// analyzed sessions, and the number of analyses it averaged over.
func AverageConfidenceScore(ctx context.Context, db *gorm.DB, profileID string) (float64, int64, error) {
	type row struct {
		Avg float64
		N   int64
	}
	var r row
	err := db.WithContext(ctx).
		Model(&domain.AnalysisResult{}).
		Joins("JOIN sessions ON sessions.id = analysis_results.session_id").
		Where("sessions.profile_id = ?", profileID).
		Select("COALESCE(AVG(analysis_results.confidence_score), 0) AS avg, COUNT(*) AS n").
		Scan(&r).Error
	return r.Avg, r.N, err
}

// SessionDays returns the distinct calendar days (UTC, most recent first) on
// which the profile started a session, bounded by limit. The stats service
// walks the list to compute the practice streak.
func SessionDays(ctx context.Context, db *gorm.DB, profileID string, limit int) ([]time.Time, error) {
	var sessions []domain.Session
	err := db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("started_at desc").
		Limit(limit).
		Select("started_at").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	days := make([]time.Time, 0, len(sessions))
	var last time.Time
	for _, s := range sessions {
		day := s.StartedAt.UTC().Truncate(24 * time.Hour)
		if len(days) > 0 && day.Equal(last) {
			continue
		}
		days = append(days, day)
		last = day
	}
	return days, nil
}
