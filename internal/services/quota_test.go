package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// newTestDB opens a unique in-memory database per test so schema and rows
// never leak across tests.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, mutate func(*domain.Profile)) *domain.Profile {
	t.Helper()
	p := &domain.Profile{
		ID:        uuid.NewString(),
		AuthID:    uuid.NewString(),
		Email:     "seller@example.com",
		FirstName: "Sam",
		Role:      domain.RoleDemo,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return p
}

func TestCanStart_NonDemoAlwaysAllowed(t *testing.T) {
	q := NewQuotaGuard(nil, 1, 2.0)

	p := &domain.Profile{Role: domain.RoleUser, DemoSessionsUsed: 99, DemoMinutesUsed: 500}
	if !q.CanStart(p) {
		t.Fatal("paid profile must not be gated by demo quota")
	}
}

func TestCanStart_DemoLimits(t *testing.T) {
	q := NewQuotaGuard(nil, 1, 2.0)

	fresh := &domain.Profile{Role: domain.RoleDemo}
	if !q.CanStart(fresh) {
		t.Fatal("fresh demo profile should be allowed")
	}

	atSessions := &domain.Profile{Role: domain.RoleDemo, DemoSessionsUsed: 1}
	if q.CanStart(atSessions) {
		t.Fatal("session limit reached, must be denied")
	}

	atMinutes := &domain.Profile{Role: domain.RoleDemo, DemoMinutesUsed: 2.0}
	if q.CanStart(atMinutes) {
		t.Fatal("minute limit reached, must be denied")
	}

	nearMinutes := &domain.Profile{Role: domain.RoleDemo, DemoMinutesUsed: 1.9}
	if !q.CanStart(nearMinutes) {
		t.Fatal("1.9 of 2.0 minutes used should still be allowed")
	}
}

func TestConsumeSession_StopsAtLimit(t *testing.T) {
	db := newTestDB(t, &domain.Profile{})
	p := seedProfile(t, db, nil)
	q := NewQuotaGuard(db, 1, 2.0)

	ok, err := q.ConsumeSession(context.Background(), p.ID)
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = q.ConsumeSession(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("second consume must be denied at limit 1")
	}

	var got domain.Profile
	if err := db.First(&got, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DemoSessionsUsed != 1 {
		t.Fatalf("counter = %d; want 1", got.DemoSessionsUsed)
	}
}

func TestConsumeSession_ConcurrentNeverOvershoots(t *testing.T) {
	db := newTestDB(t, &domain.Profile{})
	p := seedProfile(t, db, nil)
	q := NewQuotaGuard(db, 1, 2.0)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := q.ConsumeSession(context.Background(), p.ID)
			if err != nil {
				return // sqlite may report busy under contention
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted > 1 {
		t.Fatalf("granted %d sessions; limit is 1", granted)
	}

	var got domain.Profile
	if err := db.First(&got, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DemoSessionsUsed > 1 {
		t.Fatalf("counter overshot: %d", got.DemoSessionsUsed)
	}
}

func TestConsumeMinutes_Accumulates(t *testing.T) {
	db := newTestDB(t, &domain.Profile{})
	p := seedProfile(t, db, nil)
	q := NewQuotaGuard(db, 1, 2.0)

	q.ConsumeMinutes(context.Background(), p.ID, 0.5)
	q.ConsumeMinutes(context.Background(), p.ID, 0.75)

	var got domain.Profile
	if err := db.First(&got, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DemoMinutesUsed < 1.24 || got.DemoMinutesUsed > 1.26 {
		t.Fatalf("minutes = %v; want 1.25", got.DemoMinutesUsed)
	}
}

func TestSessionsAndMinutesLeft(t *testing.T) {
	q := NewQuotaGuard(nil, 1, 2.0)

	p := &domain.Profile{Role: domain.RoleDemo, DemoSessionsUsed: 0, DemoMinutesUsed: 0.5}
	if got := q.SessionsLeft(p); got != 1 {
		t.Fatalf("SessionsLeft = %d; want 1", got)
	}
	if got := q.MinutesLeft(p); got != 1.5 {
		t.Fatalf("MinutesLeft = %v; want 1.5", got)
	}

	spent := &domain.Profile{Role: domain.RoleDemo, DemoSessionsUsed: 5, DemoMinutesUsed: 9}
	if got := q.SessionsLeft(spent); got != 0 {
		t.Fatalf("SessionsLeft past limit = %d; want 0", got)
	}
	if got := q.MinutesLeft(spent); got != 0 {
		t.Fatalf("MinutesLeft past limit = %v; want 0", got)
	}
}
