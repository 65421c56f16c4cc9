package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// CreateAuditLog records an action trail entry. Callers treat failures as
// best-effort; the write never blocks the primary operation.
func CreateAuditLog(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(entry).Error
}

// CreateUsageRecord stores a metered-usage row for billing reconciliation.
func CreateUsageRecord(ctx context.Context, db *gorm.DB, rec *domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}
