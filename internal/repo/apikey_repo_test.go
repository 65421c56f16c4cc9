package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func TestUpsertKey_ReplacesPerProfileService(t *testing.T) {
	db := newRepoDB(t, &domain.APIKey{})
	ctx := context.Background()

	if err := UpsertKey(ctx, db, &domain.APIKey{
		ProfileID: "p1", Service: "openai", EncryptedKey: "ct-1", KeyHash: "h1",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := UpsertKey(ctx, db, &domain.APIKey{
		ProfileID: "p1", Service: "openai", EncryptedKey: "ct-2", KeyHash: "h2",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	// A different service for the same profile is a separate row.
	if err := UpsertKey(ctx, db, &domain.APIKey{
		ProfileID: "p1", Service: "elevenlabs", EncryptedKey: "ct-3", KeyHash: "h3",
	}); err != nil {
		t.Fatalf("third upsert: %v", err)
	}

	keys, err := ListActiveKeys(ctx, db, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("active keys = %d; want 2", len(keys))
	}

	got, err := GetKeyByService(ctx, db, "p1", "openai")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EncryptedKey != "ct-2" || got.KeyHash != "h2" {
		t.Fatalf("row not replaced: %+v", got)
	}
}

func TestDeactivateKey(t *testing.T) {
	db := newRepoDB(t, &domain.APIKey{})
	ctx := context.Background()

	if err := UpsertKey(ctx, db, &domain.APIKey{
		ProfileID: "p1", Service: "openai", EncryptedKey: "ct", KeyHash: "h",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := DeactivateKey(ctx, db, "p1", "openai"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := GetKeyByService(ctx, db, "p1", "openai"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound after deactivation", err)
	}
	// Already inactive counts as not found.
	if err := DeactivateKey(ctx, db, "p1", "openai"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat deactivate err = %v; want ErrNotFound", err)
	}

	// Re-saving reactivates the same (profile, service) slot.
	if err := UpsertKey(ctx, db, &domain.APIKey{
		ProfileID: "p1", Service: "openai", EncryptedKey: "ct-new", KeyHash: "h-new",
	}); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	got, err := GetKeyByService(ctx, db, "p1", "openai")
	if err != nil {
		t.Fatalf("get after re-save: %v", err)
	}
	if !got.IsActive || got.EncryptedKey != "ct-new" {
		t.Fatalf("key not reactivated: %+v", got)
	}
}
