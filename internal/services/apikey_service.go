// Package services – APIKeyService
//
// APIKeyService stores per-profile upstream provider credentials. Key
// material is sealed with authenticated encryption before it touches the
// database and only ever leaves the service masked; a ciphertext that
// fails authentication is an error, never silently decoded.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
	"github.com/pitchloop/sales-coach-backend/internal/secrets"
)

// APIKeyEntry is one service/key pair in a save request.
type APIKeyEntry struct {
	Service string `json:"service"`
	Key     string `json:"key"`
}

// APIKeyView is the masked display form of a stored credential.
type APIKeyView struct {
	ID        string     `json:"id"`
	Service   string     `json:"service"`
	Key       string     `json:"key"`
	IsActive  bool       `json:"is_active"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SavedKey reports the outcome of one entry in a save request.
type SavedKey struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// APIKeyService manages stored provider credentials.
type APIKeyService struct {
	DB     *gorm.DB
	Cipher *secrets.Cipher
}

// NewAPIKeyService constructs an APIKeyService.
func NewAPIKeyService(db *gorm.DB, cipher *secrets.Cipher) *APIKeyService {
	return &APIKeyService{DB: db, Cipher: cipher}
}

// List returns the profile's active credentials with the key material
// masked. A credential whose ciphertext no longer authenticates (for
// example after an encryption-key rotation) is skipped and logged.
func (s *APIKeyService) List(ctx context.Context, profileID string) ([]APIKeyView, error) {
	keys, err := repo.ListActiveKeys(ctx, s.DB, profileID)
	if err != nil {
		return nil, err
	}
	out := make([]APIKeyView, 0, len(keys))
	for _, k := range keys {
		plain, err := s.Cipher.Decrypt(k.EncryptedKey)
		if err != nil {
			log.Error().Err(err).Str("service", k.Service).Str("profile_id", profileID).
				Msg("stored api key failed authentication")
			continue
		}
		out = append(out, APIKeyView{
			ID:        k.ID,
			Service:   k.Service,
			Key:       secrets.Mask(plain),
			IsActive:  k.IsActive,
			LastUsed:  k.LastUsed,
			CreatedAt: k.CreatedAt,
		})
	}
	return out, nil
}

// Save encrypts and upserts each entry, one row per (profile, service).
// Blank entries are skipped; a failing entry is reported in its status
// rather than aborting the batch.
func (s *APIKeyService) Save(ctx context.Context, profileID string, entries []APIKeyEntry) ([]SavedKey, error) {
	if len(entries) == 0 {
		return nil, errors.New("no api keys provided")
	}
	saved := make([]SavedKey, 0, len(entries))
	for _, e := range entries {
		service := strings.TrimSpace(e.Service)
		if service == "" || strings.TrimSpace(e.Key) == "" {
			continue
		}
		hash := secrets.Hash(e.Key)
		if existing, err := repo.GetKeyByService(ctx, s.DB, profileID, service); err == nil && existing.KeyHash == hash {
			// Same material; re-sealing would only churn the ciphertext.
			saved = append(saved, SavedKey{Service: service, Status: "unchanged"})
			continue
		}
		sealed, err := s.Cipher.Encrypt(e.Key)
		if err != nil {
			return nil, err
		}
		key := &domain.APIKey{
			ProfileID:    profileID,
			Service:      service,
			EncryptedKey: sealed,
			KeyHash:      hash,
		}
		if err := repo.UpsertKey(ctx, s.DB, key); err != nil {
			log.Error().Err(err).Str("service", service).Str("profile_id", profileID).
				Msg("failed to save api key")
			saved = append(saved, SavedKey{Service: service, Status: "failed"})
			continue
		}
		saved = append(saved, SavedKey{Service: service, Status: "saved"})
	}
	return saved, nil
}

// Deactivate soft-deletes the profile's credential for a service.
func (s *APIKeyService) Deactivate(ctx context.Context, profileID, service string) error {
	return repo.DeactivateKey(ctx, s.DB, profileID, strings.TrimSpace(service))
}
