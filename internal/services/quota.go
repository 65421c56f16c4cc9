// Package services – QuotaGuard
//
// QuotaGuard decides whether a demo-tier profile may start a new training
// session and records consumption afterwards. The decision is a pure
// function of the profile snapshot; consumption is a single conditional
// UPDATE at the data layer so two concurrent session starts can never both
// spend the last free session.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

// QuotaGuard enforces the fixed demo-tier thresholds. Non-demo roles always
// pass; thresholds are process-wide configuration, not per-profile.
type QuotaGuard struct {
	DB          *gorm.DB
	MaxSessions int
	MaxMinutes  float64
}

// NewQuotaGuard constructs a QuotaGuard with the configured limits.
func NewQuotaGuard(db *gorm.DB, maxSessions int, maxMinutes float64) *QuotaGuard {
	return &QuotaGuard{DB: db, MaxSessions: maxSessions, MaxMinutes: maxMinutes}
}

// CanStart reports whether the profile may begin a session. The check reads
// only the snapshot it is given; the authoritative gate is the conditional
// increment in ConsumeSession.
func (q *QuotaGuard) CanStart(p *domain.Profile) bool {
	if !p.IsDemo() {
		return true
	}
	return p.DemoSessionsUsed < q.MaxSessions && p.DemoMinutesUsed < q.MaxMinutes
}

// SessionsLeft returns how many free sessions the profile has remaining.
func (q *QuotaGuard) SessionsLeft(p *domain.Profile) int {
	left := q.MaxSessions - p.DemoSessionsUsed
	if left < 0 {
		return 0
	}
	return left
}

// MinutesLeft returns how many free minutes the profile has remaining.
func (q *QuotaGuard) MinutesLeft(p *domain.Profile) float64 {
	left := q.MaxMinutes - p.DemoMinutesUsed
	if left < 0 {
		return 0
	}
	return left
}

// ConsumeSession spends one demo session. The increment only applies while
// the counter is below the limit, so under a race exactly one of two
// concurrent callers wins. Returns whether this caller's increment landed.
func (q *QuotaGuard) ConsumeSession(ctx context.Context, profileID string) (bool, error) {
	return repo.ConsumeDemoSession(ctx, q.DB, profileID, q.MaxSessions)
}

// ConsumeMinutes accrues fractional demo minutes after a session ends.
// Failures are logged and swallowed: the session already ended and the
// caller's response must not depend on the bookkeeping write.
func (q *QuotaGuard) ConsumeMinutes(ctx context.Context, profileID string, minutes float64) {
	if minutes <= 0 {
		return
	}
	if err := repo.AddDemoMinutes(ctx, q.DB, profileID, minutes); err != nil {
		log.Error().Err(err).Str("profile_id", profileID).
			Float64("minutes", minutes).
			Msg("failed to record demo minutes")
	}
}
