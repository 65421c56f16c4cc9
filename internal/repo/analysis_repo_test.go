package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func TestUpsertAnalysis_OneRowPerSession(t *testing.T) {
	db := newRepoDB(t, &domain.Session{}, &domain.AnalysisResult{})
	seedSessionRow(t, db, "s1", nil)

	first := &domain.AnalysisResult{
		SessionID:       "s1",
		Provider:        "openai",
		Version:         "gpt-4o",
		Results:         []byte(`{"overall_score": 6}`),
		ConfidenceScore: 0.6,
	}
	if err := UpsertAnalysis(context.Background(), db, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &domain.AnalysisResult{
		SessionID:       "s1",
		Provider:        "openai",
		Version:         "gpt-4o-mini",
		Results:         []byte(`{"overall_score": 8}`),
		ConfidenceScore: 0.8,
	}
	if err := UpsertAnalysis(context.Background(), db, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var n int64
	db.Model(&domain.AnalysisResult{}).Count(&n)
	if n != 1 {
		t.Fatalf("analysis rows = %d; want 1", n)
	}

	got, err := GetAnalysisBySessionID(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Version != "gpt-4o-mini" || got.ConfidenceScore != 0.8 {
		t.Fatalf("row not replaced: %+v", got)
	}
	if got.ID != first.ID {
		t.Fatalf("primary key changed across upserts: %q vs %q", got.ID, first.ID)
	}
}

func TestGetAnalysisBySessionID_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Session{}, &domain.AnalysisResult{})

	if _, err := GetAnalysisBySessionID(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}
