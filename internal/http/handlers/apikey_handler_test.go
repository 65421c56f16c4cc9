package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

type stubVault struct {
	list       func(ctx context.Context, profileID string) ([]services.APIKeyView, error)
	save       func(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error)
	deactivate func(ctx context.Context, profileID, service string) error
}

func (s stubVault) List(ctx context.Context, profileID string) ([]services.APIKeyView, error) {
	return s.list(ctx, profileID)
}

func (s stubVault) Save(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error) {
	return s.save(ctx, profileID, entries)
}

func (s stubVault) Deactivate(ctx context.Context, profileID, service string) error {
	return s.deactivate(ctx, profileID, service)
}

type stubProfileFinder struct {
	byAuthID func(ctx context.Context, authID string) (*domain.Profile, error)
}

func (s stubProfileFinder) ByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	return s.byAuthID(ctx, authID)
}

func ownProfile(id string) stubProfileFinder {
	return stubProfileFinder{byAuthID: func(ctx context.Context, authID string) (*domain.Profile, error) {
		return &domain.Profile{ID: id, AuthID: authID}, nil
	}}
}

func apikeyRouter(v KeyVault, p ProfileFinder, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	h := NewAPIKeyHandler(v, p)
	r.GET("/api-keys", h.List)
	r.POST("/api-keys", h.Save)
	r.DELETE("/api-keys/:service", h.Delete)
	return r
}

func TestAPIKeys_RequireProfile(t *testing.T) {
	v := stubVault{}
	p := stubProfileFinder{byAuthID: func(ctx context.Context, authID string) (*domain.Profile, error) {
		t.Fatal("profile lookup must not run for anonymous callers")
		return nil, nil
	}}

	// Anonymous -> 401.
	w := httptest.NewRecorder()
	apikeyRouter(v, p).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-keys", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous -> %d", w.Code)
	}

	// Rejected credentials -> 401 with the sharper message.
	w = httptest.NewRecorder()
	apikeyRouter(v, p, withAuthFailure()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-keys", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad creds -> %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message != "invalid credentials" {
		t.Fatalf("message=%q", resp.Message)
	}

	// Verified identity without a provisioned profile -> 404.
	pMissing := stubProfileFinder{byAuthID: func(ctx context.Context, authID string) (*domain.Profile, error) {
		return nil, services.ErrProfileNotFound
	}}
	w = httptest.NewRecorder()
	apikeyRouter(v, pMissing, withIdentity(&auth.Identity{UserID: "auth-1"})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-keys", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing profile -> %d", w.Code)
	}

	// Lookup failure -> 500.
	pErr := stubProfileFinder{byAuthID: func(ctx context.Context, authID string) (*domain.Profile, error) {
		return nil, errors.New("db down")
	}}
	w = httptest.NewRecorder()
	apikeyRouter(v, pErr, withIdentity(&auth.Identity{UserID: "auth-1"})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-keys", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("lookup failure -> %d", w.Code)
	}
}

func TestListAPIKeys_Success(t *testing.T) {
	var gotProfileID string
	v := stubVault{list: func(ctx context.Context, profileID string) ([]services.APIKeyView, error) {
		gotProfileID = profileID
		return []services.APIKeyView{{ID: "k-1", Service: "openai", Key: "sk-...abcd", IsActive: true}}, nil
	}}
	r := apikeyRouter(v, ownProfile("p-7"), withIdentity(&auth.Identity{UserID: "auth-1"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-keys", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotProfileID != "p-7" {
		t.Fatalf("profileID=%q", gotProfileID)
	}
	var body struct {
		Keys []services.APIKeyView `json:"keys"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Keys) != 1 || body.Keys[0].Key != "sk-...abcd" {
		t.Fatalf("unexpected keys: %+v", body.Keys)
	}
}

func TestSaveAPIKeys(t *testing.T) {
	r := func(v stubVault) *gin.Engine {
		return apikeyRouter(v, ownProfile("p-7"), withIdentity(&auth.Identity{UserID: "auth-1"}))
	}

	// Missing or empty batch -> 400.
	noCall := stubVault{save: func(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error) {
		t.Fatal("save must not be called")
		return nil, nil
	}}
	for _, body := range []string{"{bad", `{}`, `{"keys":[]}`} {
		if w := postJSON(r(noCall), "/api-keys", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q -> %d", body, w.Code)
		}
	}

	// Success: per-entry statuses echoed back.
	var gotEntries []services.APIKeyEntry
	v := stubVault{save: func(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error) {
		gotEntries = entries
		return []services.SavedKey{{Service: "openai", Status: "saved"}, {Service: "elevenlabs", Status: "skipped"}}, nil
	}}
	w := postJSON(r(v), "/api-keys", `{"keys":[{"service":"openai","key":"sk-1"},{"service":"elevenlabs","key":""}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(gotEntries) != 2 || gotEntries[0].Service != "openai" {
		t.Fatalf("entries not plumbed: %+v", gotEntries)
	}
	var body struct {
		Results []services.SavedKey `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Results) != 2 || body.Results[1].Status != "skipped" {
		t.Fatalf("unexpected results: %+v", body.Results)
	}

	// Vault failure -> 500.
	vErr := stubVault{save: func(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error) {
		return nil, errors.New("cipher broken")
	}}
	if w := postJSON(r(vErr), "/api-keys", `{"keys":[{"service":"openai","key":"sk-1"}]}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("vault failure -> %d", w.Code)
	}
}

func TestDeleteAPIKey(t *testing.T) {
	var gotService string
	v := stubVault{deactivate: func(ctx context.Context, profileID, service string) error {
		gotService = service
		switch service {
		case "openai":
			return nil
		case "gemini":
			return repo.ErrNotFound
		default:
			return errors.New("update failed")
		}
	}}
	r := apikeyRouter(v, ownProfile("p-7"), withIdentity(&auth.Identity{UserID: "auth-1"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api-keys/openai", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if gotService != "openai" {
		t.Fatalf("service=%q", gotService)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api-keys/gemini", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("no active key -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api-keys/anthropic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failure -> %d", w.Code)
	}
}
