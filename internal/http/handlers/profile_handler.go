package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

// ProfileCreator provisions user profiles.
type ProfileCreator interface {
	Create(ctx context.Context, ident *auth.Identity, in services.CreateProfileInput) (*domain.Profile, error)
}

// ProfileHandler serves profile provisioning endpoints.
type ProfileHandler struct {
	Profiles ProfileCreator
}

func NewProfileHandler(p ProfileCreator) *ProfileHandler {
	return &ProfileHandler{Profiles: p}
}

type createProfileRequest struct {
	AuthID      string  `json:"auth_id" binding:"required"`
	Email       string  `json:"email" binding:"required"`
	FirstName   string  `json:"first_name" binding:"required"`
	LastName    string  `json:"last_name"`
	CompanyName string  `json:"company_name" binding:"required"`
	Role        string  `json:"role"`
	Position    *string `json:"position"`
	Phone       *string `json:"phone"`
	TeamSize    *int    `json:"team_size"`
}

type profileResponse struct {
	ID        string `json:"id"`
	AuthID    string `json:"auth_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}

// Create godoc
// @Summary      Create a user profile
// @Description  Provisions a profile for an authenticated account. Non-admin callers can only create their own profile and always receive the demo role regardless of the role requested.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        request  body  createProfileRequest  true  "Profile data"
// @Success      201  {object}  profileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /profile/create [post]
func (h *ProfileHandler) Create(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	if ident == nil {
		if middleware.CredentialsFailed(c) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "auth_id, email, first_name and company_name are required")
		return
	}

	profile, err := h.Profiles.Create(c.Request.Context(), ident, services.CreateProfileInput{
		AuthID:      req.AuthID,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Role:        req.Role,
		Position:    req.Position,
		Phone:       req.Phone,
		TeamSize:    req.TeamSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCrossAccount):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot create a profile for another account")
		case errors.Is(err, services.ErrProfileExists):
			fail(c, http.StatusConflict, ErrCodeConflict, "profile already exists for this account")
		case errors.Is(err, services.ErrValidation):
			fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create profile")
		}
		return
	}

	resp := profileResponse{
		ID:        profile.ID,
		AuthID:    profile.AuthID,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Role:      profile.Role,
	}
	if profile.CompanyID != nil {
		resp.CompanyID = *profile.CompanyID
	}
	ok(c, http.StatusCreated, resp)
}
