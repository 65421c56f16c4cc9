// Package services – StatsService
//
// StatsService computes the dashboard's usage and progress figures. The
// endpoint never fails: any condition that prevents computing real stats
// (an anonymous caller, a missing profile, a query error) degrades to the
// demo variant, explicitly tagged with the reason instead of silently
// masquerading as real data.
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

// Degraded-mode reasons recorded on demo stats.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonProfileMissing  = "profile_missing"
	ReasonQueryFailed     = "query_failed"
	ReasonDemoTier        = "demo_tier"
)

// DemoLimits describes the free tier's remaining allowance.
type DemoLimits struct {
	MaxSessions     int     `json:"maxSessions"`
	MaxMinutes      float64 `json:"maxMinutes"`
	SessionsUsed    int     `json:"sessionsUsed"`
	MinutesUsed     float64 `json:"minutesUsed"`
	SessionsLeft    int     `json:"sessionsLeft"`
	CanStartSession bool    `json:"canStartSession"`
}

// Stats is the dashboard payload. IsDemo tags the degraded variant; Reason
// says why real stats were unavailable and is empty on real stats.
type Stats struct {
	MinutesLeft      float64     `json:"minutesLeft"`
	SessionsToday    int64       `json:"sessionsToday"`
	ProgressScore    float64     `json:"progressScore"`
	StreakDays       int         `json:"streakDays"`
	TotalMinutesUsed float64     `json:"totalMinutesUsed"`
	TotalSessions    int64       `json:"totalSessions"`
	AverageScore     float64     `json:"averageScore"`
	IsDemo           bool        `json:"isDemo"`
	Reason           string      `json:"reason,omitempty"`
	DemoLimits       *DemoLimits `json:"demoLimits,omitempty"`
}

// StatsService assembles dashboard stats.
type StatsService struct {
	DB    *gorm.DB
	Quota *QuotaGuard
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB, quota *QuotaGuard) *StatsService {
	return &StatsService{DB: db, Quota: quota}
}

// Get computes stats for the caller. Never returns an error: degradation
// to the tagged demo variant is the failure mode.
func (s *StatsService) Get(ctx context.Context, ident *auth.Identity) Stats {
	if ident == nil {
		return demoStats(ReasonUnauthenticated, s.Quota.MaxMinutes)
	}

	profile, err := repo.GetProfileByAuthID(ctx, s.DB, ident.UserID)
	if err != nil {
		reason := ReasonQueryFailed
		if errors.Is(err, repo.ErrNotFound) {
			reason = ReasonProfileMissing
		} else {
			log.Error().Err(err).Str("auth_id", ident.UserID).Msg("stats profile lookup failed")
		}
		return demoStats(reason, s.Quota.MaxMinutes)
	}

	if profile.IsDemo() {
		return s.demoTierStats(profile)
	}
	return s.realStats(ctx, profile)
}

// demoTierStats reports a demo-role profile's remaining allowance from its
// own counters; no further queries are needed.
func (s *StatsService) demoTierStats(p *domain.Profile) Stats {
	limits := &DemoLimits{
		MaxSessions:     s.Quota.MaxSessions,
		MaxMinutes:      s.Quota.MaxMinutes,
		SessionsUsed:    p.DemoSessionsUsed,
		MinutesUsed:     p.DemoMinutesUsed,
		SessionsLeft:    s.Quota.SessionsLeft(p),
		CanStartSession: s.Quota.CanStart(p),
	}
	return Stats{
		MinutesLeft:      s.Quota.MinutesLeft(p),
		SessionsToday:    int64(p.DemoSessionsUsed),
		TotalMinutesUsed: p.DemoMinutesUsed,
		TotalSessions:    int64(p.DemoSessionsUsed),
		IsDemo:           true,
		Reason:           ReasonDemoTier,
		DemoLimits:       limits,
	}
}

func (s *StatsService) realStats(ctx context.Context, p *domain.Profile) Stats {
	now := time.Now().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	// Subscription minutes are the authoritative balance; the usage-record
	// sum is display-only.
	minutesLeft := 100.0
	sub, err := repo.ActiveSubscription(ctx, s.DB, p.ID)
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats subscription lookup failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}
	if sub != nil {
		minutesLeft = math.Max(0, float64(sub.MinutesLimit-sub.MinutesUsed))
	}

	sessionsToday, err := repo.CountSessionsBetween(ctx, s.DB, p.ID, dayStart, now.Add(time.Second))
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats session count failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}
	totalSessions, err := repo.CountSessionsSince(ctx, s.DB, p.ID, time.Time{})
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats session count failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}
	monthMinutes, err := repo.SumUsageMinutesSince(ctx, s.DB, p.ID, monthStart)
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats usage sum failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}
	avgConfidence, _, err := repo.AverageConfidenceScore(ctx, s.DB, p.ID)
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats score average failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}
	avgScore := avgConfidence * 10

	days, err := repo.SessionDays(ctx, s.DB, p.ID, 100)
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("stats streak query failed")
		return demoStats(ReasonQueryFailed, s.Quota.MaxMinutes)
	}

	return Stats{
		MinutesLeft:      minutesLeft,
		SessionsToday:    sessionsToday,
		ProgressScore:    math.Round(avgScore*10) / 10,
		StreakDays:       streakDays(days, dayStart),
		TotalMinutesUsed: monthMinutes,
		TotalSessions:    totalSessions,
		AverageScore:     math.Round(avgScore*10) / 10,
	}
}

// streakDays counts consecutive practice days ending today or yesterday.
// days must be distinct UTC-midnight values, most recent first.
func streakDays(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) == 24*time.Hour {
			streak++
			continue
		}
		break
	}
	return streak
}

func demoStats(reason string, maxMinutes float64) Stats {
	return Stats{
		MinutesLeft: maxMinutes,
		IsDemo:      true,
		Reason:      reason,
	}
}
