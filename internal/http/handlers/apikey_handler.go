package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

// KeyVault manages a profile's stored provider credentials.
type KeyVault interface {
	List(ctx context.Context, profileID string) ([]services.APIKeyView, error)
	Save(ctx context.Context, profileID string, entries []services.APIKeyEntry) ([]services.SavedKey, error)
	Deactivate(ctx context.Context, profileID, service string) error
}

// ProfileFinder resolves a verified auth subject to its profile.
type ProfileFinder interface {
	ByAuthID(ctx context.Context, authID string) (*domain.Profile, error)
}

// APIKeyHandler serves credential management endpoints. Both operations
// require an authenticated caller with an existing profile.
type APIKeyHandler struct {
	Keys     KeyVault
	Profiles ProfileFinder
}

func NewAPIKeyHandler(k KeyVault, p ProfileFinder) *APIKeyHandler {
	return &APIKeyHandler{Keys: k, Profiles: p}
}

// requireProfile resolves the caller's profile or writes the error response.
func (h *APIKeyHandler) requireProfile(c *gin.Context) (*domain.Profile, bool) {
	ident := middleware.IdentityFrom(c)
	if ident == nil {
		if middleware.CredentialsFailed(c) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
		} else {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		}
		return nil, false
	}

	profile, err := h.Profiles.ByAuthID(c.Request.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		} else {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load profile")
		}
		return nil, false
	}
	return profile, true
}

// List godoc
// @Summary      List stored API keys
// @Description  Returns the caller's active provider credentials in masked form. Raw key material is never returned.
// @Tags         api-keys
// @Produce      json
// @Success      200  {object}  map[string][]services.APIKeyView
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api-keys [get]
func (h *APIKeyHandler) List(c *gin.Context) {
	profile, authed := h.requireProfile(c)
	if !authed {
		return
	}

	keys, err := h.Keys.List(c.Request.Context(), profile.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list keys")
		return
	}
	ok(c, http.StatusOK, gin.H{"keys": keys})
}

type saveKeysRequest struct {
	Keys []services.APIKeyEntry `json:"keys" binding:"required"`
}

// Save godoc
// @Summary      Save API keys
// @Description  Encrypts and upserts provider credentials for the caller, one row per service. Blank keys are skipped; per-entry status is reported.
// @Tags         api-keys
// @Accept       json
// @Produce      json
// @Param        request  body  saveKeysRequest  true  "Keys to store"
// @Success      200  {object}  map[string][]services.SavedKey
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api-keys [post]
func (h *APIKeyHandler) Save(c *gin.Context) {
	profile, authed := h.requireProfile(c)
	if !authed {
		return
	}

	var req saveKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Keys) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "keys array is required")
		return
	}

	results, err := h.Keys.Save(c.Request.Context(), profile.ID, req.Keys)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to save keys")
		return
	}
	ok(c, http.StatusOK, gin.H{"results": results})
}

// Delete godoc
// @Summary      Deactivate an API key
// @Description  Soft-deletes the caller's credential for one service.
// @Tags         api-keys
// @Produce      json
// @Param        service  path  string  true  "Service name"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api-keys/{service} [delete]
func (h *APIKeyHandler) Delete(c *gin.Context) {
	profile, authed := h.requireProfile(c)
	if !authed {
		return
	}

	if err := h.Keys.Deactivate(c.Request.Context(), profile.ID, c.Param("service")); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no active key for service")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to deactivate key")
		return
	}
	c.Status(http.StatusNoContent)
}
