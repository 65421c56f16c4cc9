package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// ListActiveKeys returns every active API key credential for a profile,
// newest first. Encrypted material is included; callers decide whether to
// decrypt or mask.
func ListActiveKeys(ctx context.Context, db *gorm.DB, profileID string) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := db.WithContext(ctx).
		Where("profile_id = ? AND is_active = ?", profileID, true).
		Order("created_at desc").
		Find(&keys).Error
	return keys, err
}

// GetKeyByService returns the active credential a profile holds for one
// external service, or ErrNotFound.
func GetKeyByService(ctx context.Context, db *gorm.DB, profileID, service string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.WithContext(ctx).
		Where("profile_id = ? AND service = ? AND is_active = ?", profileID, service, true).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// UpsertKey inserts or replaces the credential a profile holds for a
// service. The (profile_id, service) pair is unique, so storing a new key
// for the same service overwrites the previous ciphertext in place.
func UpsertKey(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	now := time.Now().UTC()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	key.UpdatedAt = now
	key.IsActive = true
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "profile_id"}, {Name: "service"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"encrypted_key", "key_hash", "is_active", "updated_at",
			}),
		}).
		Create(key).Error
}

// DeactivateKey soft-deletes a credential. Returns ErrNotFound when the
// profile has no active key for the service.
func DeactivateKey(ctx context.Context, db *gorm.DB, profileID, service string) error {
	res := db.WithContext(ctx).
		Model(&domain.APIKey{}).
		Where("profile_id = ? AND service = ? AND is_active = ?", profileID, service, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
