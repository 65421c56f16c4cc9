package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func sessionFixture(t *testing.T) *SessionService {
	t.Helper()
	db := newTestDB(t,
		&domain.Profile{}, &domain.Company{}, &domain.Session{},
		&domain.Subscription{}, &domain.UsageRecord{}, &domain.AuditLog{},
		&domain.AnalysisResult{},
	)
	return NewSessionService(db, NewQuotaGuard(db, 1, 2.0))
}

func identFor(p *domain.Profile) *auth.Identity {
	return &auth.Identity{Method: auth.MethodBearer, UserID: p.AuthID, Email: p.Email}
}

func TestCreate_AnonymousGetsEphemeralSession(t *testing.T) {
	s := sessionFixture(t)

	view, err := s.Create(context.Background(), nil, CreateSessionInput{Title: "Cold Call Practice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !view.IsDemo || !IsEphemeralID(view.ID) {
		t.Fatalf("expected ephemeral demo session, got %+v", view)
	}
	if view.Title != "Cold Call Practice" {
		t.Fatalf("title = %q", view.Title)
	}

	var n int64
	s.DB.Model(&domain.Session{}).Count(&n)
	if n != 0 {
		t.Fatalf("ephemeral session must not persist, found %d rows", n)
	}
}

func TestCreate_DemoUserFlagForcesEphemeral(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, nil)

	view, err := s.Create(context.Background(), identFor(p), CreateSessionInput{UserID: "demo-user"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !view.IsDemo {
		t.Fatal("demo-user flag must produce an ephemeral session")
	}
	if view.Title != "Demo Voice Training Session" {
		t.Fatalf("default title missing, got %q", view.Title)
	}
}

func TestCreate_UnknownProfile(t *testing.T) {
	s := sessionFixture(t)

	ident := &auth.Identity{UserID: "no-such-subject"}
	if _, err := s.Create(context.Background(), ident, CreateSessionInput{Title: "x"}); err != ErrProfileNotFound {
		t.Fatalf("err = %v; want ErrProfileNotFound", err)
	}
}

func TestCreate_DemoQuotaEnforced(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, nil)

	first, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "Session one"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if IsEphemeralID(first.ID) {
		t.Fatal("authenticated demo session must persist")
	}

	if _, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "Session two"}); err != ErrQuotaExceeded {
		t.Fatalf("err = %v; want ErrQuotaExceeded after the single free session", err)
	}

	var got domain.Profile
	s.DB.First(&got, "id = ?", p.ID)
	if got.DemoSessionsUsed != 1 {
		t.Fatalf("sessions used = %d; want 1", got.DemoSessionsUsed)
	}
}

func TestCreate_MinuteQuotaBlocksBeforeSessionQuota(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, func(p *domain.Profile) { p.DemoMinutesUsed = 2.0 })

	if _, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "x"}); err != ErrQuotaExceeded {
		t.Fatalf("err = %v; want ErrQuotaExceeded on exhausted minutes", err)
	}
}

func TestCreate_TitleRequiredForPersistedSessions(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, nil)

	_, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "   "})
	if err == nil || !strings.Contains(err.Error(), "title") {
		t.Fatalf("err = %v; want title validation error", err)
	}
}

func TestCreate_PaidUserIgnoresDemoQuota(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, func(p *domain.Profile) {
		p.Role = domain.RoleUser
		p.DemoSessionsUsed = 5
	})

	for i := 0; i < 3; i++ {
		if _, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "Enterprise drill"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
}

func TestCreate_PaidUserBlockedByExhaustedSubscription(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, func(p *domain.Profile) { p.Role = domain.RoleUser })

	sub := &domain.Subscription{
		ID: uuid.NewString(), ProfileID: p.ID, Status: "active",
		PlanID: "pro-monthly", PlanName: "Pro",
		MinutesLimit: 100, MinutesUsed: 100,
	}
	if err := s.DB.Create(sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	if _, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "x"}); err != ErrQuotaExceeded {
		t.Fatalf("err = %v; want ErrQuotaExceeded", err)
	}
}

func TestFinalize_EphemeralIsNoOp(t *testing.T) {
	s := sessionFixture(t)

	if err := s.Finalize(context.Background(), "demo-session-12345", FinalizeInput{DurationSeconds: 90}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var n int64
	s.DB.Model(&domain.UsageRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("ephemeral finalize must not write usage, found %d", n)
	}
}

func TestFinalize_UnknownSession(t *testing.T) {
	s := sessionFixture(t)
	if err := s.Finalize(context.Background(), uuid.NewString(), FinalizeInput{}); err != ErrSessionNotFound {
		t.Fatalf("err = %v; want ErrSessionNotFound", err)
	}
}

func TestFinalize_CompletesAndAccrues(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, nil)

	view, err := s.Create(context.Background(), identFor(p), CreateSessionInput{Title: "Discovery call"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conv := "conv_final_1"
	transcript := json.RawMessage(`[{"role":"user","message":"pitch"},{"role":"agent","message":"objection"}]`)
	if err := s.Finalize(context.Background(), view.ID, FinalizeInput{DurationSeconds: 90, ConversationID: &conv, Transcript: transcript}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var sess domain.Session
	if err := s.DB.First(&sess, "id = ?", view.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.Status != domain.SessionCompleted || sess.DurationSeconds != 90 {
		t.Fatalf("session = %+v", sess)
	}
	if sess.ConversationID == nil || *sess.ConversationID != conv {
		t.Fatal("conversation id not linked")
	}
	if sess.EndedAt == nil {
		t.Fatal("ended_at not set")
	}
	if string(sess.Transcript) != string(transcript) {
		t.Fatalf("transcript = %s", sess.Transcript)
	}

	got, err := s.Get(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Transcript) != string(transcript) {
		t.Fatalf("view transcript = %s", got.Transcript)
	}

	var prof domain.Profile
	s.DB.First(&prof, "id = ?", p.ID)
	if prof.DemoMinutesUsed < 1.49 || prof.DemoMinutesUsed > 1.51 {
		t.Fatalf("demo minutes = %v; want 1.5 for a 90s session", prof.DemoMinutesUsed)
	}

	var usage int64
	s.DB.Model(&domain.UsageRecord{}).Where("profile_id = ?", p.ID).Count(&usage)
	if usage != 1 {
		t.Fatalf("usage records = %d; want 1", usage)
	}
}

func TestGet_EphemeralDescriptor(t *testing.T) {
	s := sessionFixture(t)

	view, err := s.Get(context.Background(), "demo-session-777")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.IsDemo || view.ID != "demo-session-777" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestGet_UnknownSession(t *testing.T) {
	s := sessionFixture(t)
	if _, err := s.Get(context.Background(), uuid.NewString()); err != ErrSessionNotFound {
		t.Fatalf("err = %v; want ErrSessionNotFound", err)
	}
}

func TestCreate_ExplicitCompanyMustExist(t *testing.T) {
	s := sessionFixture(t)
	p := seedProfile(t, s.DB, nil)

	bogus := "no-such-company"
	_, err := s.Create(context.Background(), identFor(p), CreateSessionInput{
		Title: "Pitch run", CompanyID: &bogus,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v; want ErrValidation for unknown company", err)
	}

	company := &domain.Company{ID: uuid.NewString(), Name: "Acme Corp"}
	if err := s.DB.Create(company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	view, err := s.Create(context.Background(), identFor(p), CreateSessionInput{
		Title: "Pitch run", CompanyID: &company.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var row domain.Session
	if err := s.DB.First(&row, "id = ?", view.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if row.CompanyID == nil || *row.CompanyID != company.ID {
		t.Fatalf("company id = %v; want %s", row.CompanyID, company.ID)
	}
}
