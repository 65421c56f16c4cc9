package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func TestCreateProfile_DuplicateAuthID(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})

	p := &domain.Profile{AuthID: "auth-1", Email: "a@example.com", FirstName: "Ada", Role: domain.RoleDemo}
	created, err := CreateProfile(context.Background(), db, p)
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("profile not stamped: %+v", created)
	}

	_, err = CreateProfile(context.Background(), db, &domain.Profile{
		AuthID: "auth-1", Email: "b@example.com", FirstName: "Bea", Role: domain.RoleDemo,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}
}

func TestGetProfileByAuthID_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})

	if _, err := GetProfileByAuthID(context.Background(), db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestConsumeDemoSession_Boundary(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})
	p, err := CreateProfile(context.Background(), db, &domain.Profile{
		AuthID: "auth-1", Email: "a@example.com", FirstName: "Ada", Role: domain.RoleDemo,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := ConsumeDemoSession(context.Background(), db, p.ID, 1)
	if err != nil || !ok {
		t.Fatalf("first consume = (%v, %v); want applied", ok, err)
	}
	// The guard lives in the UPDATE's WHERE clause; at the limit nothing
	// matches and the counter stays put.
	ok, err = ConsumeDemoSession(context.Background(), db, p.ID, 1)
	if err != nil || ok {
		t.Fatalf("second consume = (%v, %v); want refused", ok, err)
	}

	var got domain.Profile
	db.First(&got, "id = ?", p.ID)
	if got.DemoSessionsUsed != 1 {
		t.Fatalf("demo_sessions_used = %d; want 1", got.DemoSessionsUsed)
	}
}

func TestConsumeDemoSession_UnknownProfile(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})

	ok, err := ConsumeDemoSession(context.Background(), db, "missing", 5)
	if err != nil || ok {
		t.Fatalf("consume = (%v, %v); want refused without error", ok, err)
	}
}

func TestAddDemoMinutes(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})
	p, err := CreateProfile(context.Background(), db, &domain.Profile{
		AuthID: "auth-1", Email: "a@example.com", FirstName: "Ada", Role: domain.RoleDemo,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := AddDemoMinutes(context.Background(), db, p.ID, 0.75); err != nil {
		t.Fatalf("AddDemoMinutes: %v", err)
	}
	if err := AddDemoMinutes(context.Background(), db, p.ID, 0.5); err != nil {
		t.Fatalf("AddDemoMinutes: %v", err)
	}

	var got domain.Profile
	db.First(&got, "id = ?", p.ID)
	if got.DemoMinutesUsed != 1.25 {
		t.Fatalf("demo_minutes_used = %v; want 1.25", got.DemoMinutesUsed)
	}

	if err := AddDemoMinutes(context.Background(), db, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}
