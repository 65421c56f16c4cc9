package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

// SessionManager covers the training session lifecycle.
type SessionManager interface {
	Create(ctx context.Context, ident *auth.Identity, in services.CreateSessionInput) (*services.SessionView, error)
	Finalize(ctx context.Context, id string, in services.FinalizeInput) error
	Get(ctx context.Context, id string) (*services.SessionView, error)
}

// SessionHandler serves session lifecycle endpoints.
type SessionHandler struct {
	Sessions SessionManager
}

func NewSessionHandler(s SessionManager) *SessionHandler {
	return &SessionHandler{Sessions: s}
}

type createSessionRequest struct {
	Title     string `json:"title"`
	CompanyID string `json:"companyId"`
	UserID    string `json:"userId"`
}

// Create godoc
// @Summary      Start a training session
// @Description  Creates a session record for the caller, enforcing demo quotas. Anonymous callers receive an ephemeral demo session that is never persisted.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request  body  createSessionRequest  true  "Session parameters"
// @Success      201  {object}  services.SessionView
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /session/create [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "invalid request body")
		return
	}

	in := services.CreateSessionInput{Title: req.Title, UserID: req.UserID}
	if req.CompanyID != "" {
		in.CompanyID = &req.CompanyID
	}

	view, err := h.Sessions.Create(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrQuotaExceeded):
			fail(c, http.StatusBadRequest, ErrCodeUpgradeRequired, "demo limit reached, upgrade to continue training")
		case errors.Is(err, services.ErrProfileNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		case errors.Is(err, services.ErrValidation):
			fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create session")
		}
		return
	}
	ok(c, http.StatusCreated, view)
}

type finalizeSessionRequest struct {
	DurationSeconds int             `json:"duration_seconds"`
	ConversationID  string          `json:"conversation_id"`
	Transcript      json.RawMessage `json:"transcript"`
}

// End godoc
// @Summary      End a training session
// @Description  Marks the session completed, records its duration and links the voice conversation. Ending an ephemeral demo session is a no-op.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Session ID"
// @Param        request  body  finalizeSessionRequest  true  "Final session state"
// @Success      204  "No Content"
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /session/{id}/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "session id is required")
		return
	}

	var req finalizeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "invalid request body")
		return
	}
	if req.DurationSeconds < 0 {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "duration_seconds must not be negative")
		return
	}

	in := services.FinalizeInput{DurationSeconds: req.DurationSeconds, Transcript: req.Transcript}
	if req.ConversationID != "" {
		in.ConversationID = &req.ConversationID
	}

	err := h.Sessions.Finalize(c.Request.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, repo.ErrDuplicate):
			fail(c, http.StatusConflict, ErrCodeConflict, "conversation already linked to another session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to end session")
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// Get godoc
// @Summary      Get a training session
// @Tags         sessions
// @Produce      json
// @Param        id  path  string  true  "Session ID"
// @Success      200  {object}  services.SessionView
// @Failure      404  {object}  ErrorResponse
// @Router       /session/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "session id is required")
		return
	}

	view, err := h.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load session")
		return
	}
	ok(c, http.StatusOK, view)
}
