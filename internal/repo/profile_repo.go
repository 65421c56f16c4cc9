// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Profile
// model, including the atomic demo-quota counter updates.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a profile is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique-constraint violations are normalized to ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert violated a unique constraint
// (e.g., a second Profile for the same auth id, or a second Company with
// the same name).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation normalizes driver-specific unique-constraint errors.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
// Postgres reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value") ||
		strings.Contains(low, "sqlstate 23505")
}

// CreateProfile inserts a new Profile row. The profile ID is a randomly
// generated UUID and CreatedAt is set to UTC. A second insert for the same
// auth id returns ErrDuplicate.
func CreateProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) (*domain.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetProfileByAuthID fetches the profile owned by the given external-auth
// subject, or ErrNotFound. At most one row exists per auth id.
func GetProfileByAuthID(ctx context.Context, db *gorm.DB, authID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("auth_id = ?", authID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile fetches a profile by its internal id, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ConsumeDemoSession atomically spends one demo session, but only while the
// counter is still under maxSessions. The guard lives inside the UPDATE so
// that two concurrent session starts cannot both observe the old value and
// double-spend the allotment; the row is the serialization point.
//
// It returns true when the increment was applied, false when the quota was
// already exhausted (or the profile does not exist).
func ConsumeDemoSession(ctx context.Context, db *gorm.DB, profileID string, maxSessions int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ? AND demo_sessions_used < ?", profileID, maxSessions).
		Update("demo_sessions_used", gorm.Expr("demo_sessions_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddDemoMinutes atomically adds fractional minutes to the demo-minutes
// counter. Unlike ConsumeDemoSession this is unconditional: a session that
// already started is always charged for its full duration.
func AddDemoMinutes(ctx context.Context, db *gorm.DB, profileID string, minutes float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", profileID).
		Update("demo_minutes_used", gorm.Expr("demo_minutes_used + ?", minutes))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
