package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func seedStatsSession(t *testing.T, db *gorm.DB, id, profileID string, started time.Time) {
	t.Helper()
	s := &domain.Session{
		ID: id, ProfileID: &profileID,
		Title: "x", Status: domain.SessionCompleted, StartedAt: started,
	}
	if _, err := CreateSession(context.Background(), db, s); err != nil {
		t.Fatalf("seed session %s: %v", id, err)
	}
}

func TestCountSessionsBetween(t *testing.T) {
	db := newRepoDB(t, &domain.Session{})
	now := time.Now().UTC()
	dayStart := now.Truncate(24 * time.Hour)

	seedStatsSession(t, db, "s1", "p1", now)
	seedStatsSession(t, db, "s2", "p1", now.Add(-48*time.Hour))
	seedStatsSession(t, db, "s3", "other", now)

	n, err := CountSessionsBetween(context.Background(), db, "p1", dayStart, now.Add(time.Second))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d; want 1", n)
	}
}

func TestSumUsageMinutesSince(t *testing.T) {
	db := newRepoDB(t, &domain.UsageRecord{})
	now := time.Now().UTC()

	records := []struct {
		id      string
		minutes float64
		created time.Time
	}{
		{"u1", 5.5, now},
		{"u2", 2.0, now.Add(-time.Hour)},
		{"u3", 99, now.Add(-31 * 24 * time.Hour)},
	}
	for _, r := range records {
		if err := CreateUsageRecord(context.Background(), db, &domain.UsageRecord{
			ID: r.id, ProfileID: "p1", MinutesUsed: r.minutes,
		}); err != nil {
			t.Fatalf("seed %s: %v", r.id, err)
		}
		if err := db.Model(&domain.UsageRecord{}).Where("id = ?", r.id).
			Update("created_at", r.created).Error; err != nil {
			t.Fatalf("backdate %s: %v", r.id, err)
		}
	}

	total, err := SumUsageMinutesSince(context.Background(), db, "p1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 7.5 {
		t.Fatalf("total = %v; want 7.5", total)
	}

	// No rows sums to zero, not an error.
	total, err = SumUsageMinutesSince(context.Background(), db, "nobody", time.Time{})
	if err != nil || total != 0 {
		t.Fatalf("empty sum = (%v, %v); want (0, nil)", total, err)
	}
}

func TestAverageConfidenceScore(t *testing.T) {
	db := newRepoDB(t, &domain.Session{}, &domain.AnalysisResult{})
	now := time.Now().UTC()

	seedStatsSession(t, db, "s1", "p1", now)
	seedStatsSession(t, db, "s2", "p1", now)
	seedStatsSession(t, db, "s3", "other", now)

	for sid, score := range map[string]float64{"s1": 0.6, "s2": 0.8, "s3": 0.1} {
		if err := UpsertAnalysis(context.Background(), db, &domain.AnalysisResult{
			SessionID: sid, Provider: "openai", Version: "gpt-4o",
			Results: []byte(`{}`), ConfidenceScore: score,
		}); err != nil {
			t.Fatalf("seed analysis %s: %v", sid, err)
		}
	}

	avg, n, err := AverageConfidenceScore(context.Background(), db, "p1")
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d; want 2", n)
	}
	if avg < 0.699 || avg > 0.701 {
		t.Fatalf("avg = %v; want 0.7", avg)
	}

	avg, n, err = AverageConfidenceScore(context.Background(), db, "unanalyzed")
	if err != nil || n != 0 || avg != 0 {
		t.Fatalf("empty average = (%v, %d, %v); want (0, 0, nil)", avg, n, err)
	}
}

func TestSessionDays_DeduplicatesAndOrders(t *testing.T) {
	db := newRepoDB(t, &domain.Session{})
	today := time.Now().UTC().Truncate(24 * time.Hour)

	starts := []time.Time{
		today.Add(9 * time.Hour),
		today.Add(15 * time.Hour),
		today.Add(-24*time.Hour + 10*time.Hour),
		today.Add(-72 * time.Hour),
	}
	for i, s := range starts {
		seedStatsSession(t, db, fmt.Sprintf("s%d", i), "p1", s)
	}

	days, err := SessionDays(context.Background(), db, "p1", 100)
	if err != nil {
		t.Fatalf("SessionDays: %v", err)
	}
	want := []time.Time{today, today.Add(-24 * time.Hour), today.Add(-72 * time.Hour)}
	if len(days) != len(want) {
		t.Fatalf("days = %v; want %v", days, want)
	}
	for i := range want {
		if !days[i].Equal(want[i]) {
			t.Fatalf("days[%d] = %v; want %v", i, days[i], want[i])
		}
	}
}
