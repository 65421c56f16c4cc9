// Package services – ProfileService
//
// ProfileService provisions application profiles after auth-provider
// signup, grouping them under lazily-created companies. Registration runs
// before a profile exists, so it is the one flow where an authenticated
// caller without a profile is normal rather than a provisioning bug.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/domain"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
)

// CreateProfileInput is the registration payload. last_name is optional to
// support identity providers that only supply a display name.
type CreateProfileInput struct {
	AuthID      string  `json:"auth_id"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	CompanyName string  `json:"company_name"`
	Role        string  `json:"role,omitempty"`
	Position    *string `json:"position,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	TeamSize    *int    `json:"team_size,omitempty"`
}

// ProfileService creates and reads profiles.
type ProfileService struct {
	DB *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// Create provisions a profile, creating its company when the name is new.
//
// Authorization: the caller's verified subject must equal the target
// auth_id unless the caller's own profile is admin or super-admin
// (ErrCrossAccount otherwise). Whatever role a non-admin caller asks for,
// the created profile lands on the demo role; only admins assign roles.
//
// The company lookup-by-name is an optimization; the unique index on the
// name is the dedup guarantee, so a racing insert retries the lookup.
func (s *ProfileService) Create(ctx context.Context, ident *auth.Identity, in CreateProfileInput) (*domain.Profile, error) {
	if err := validateProfileInput(in); err != nil {
		return nil, err
	}

	requester, err := repo.GetProfileByAuthID(ctx, s.DB, ident.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	isAdmin := requester.IsAdmin()

	// Self-registrations always land on the demo role no matter what the
	// payload asked for; only an admin requester can assign another role.
	finalRole := domain.RoleDemo
	if isAdmin && in.Role != "" {
		finalRole = in.Role
	}

	if !isAdmin && ident.UserID != in.AuthID {
		return nil, ErrCrossAccount
	}

	companyID, err := s.findOrCreateCompany(ctx, in.CompanyName, in.Email)
	if err != nil {
		return nil, err
	}

	settings, _ := json.Marshal(map[string]any{
		"notifications":        true,
		"email_summaries":      true,
		"onboarding_completed": false,
	})
	profile := &domain.Profile{
		ID:        uuid.NewString(),
		AuthID:    in.AuthID,
		CompanyID: &companyID,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Position:  trimPtr(in.Position),
		Phone:     trimPtr(in.Phone),
		TeamSize:  in.TeamSize,
		Role:      finalRole,
		Settings:  settings,
	}
	created, err := repo.CreateProfile(ctx, s.DB, profile)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrProfileExists
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ByAuthID returns the profile behind a verified auth subject.
func (s *ProfileService) ByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	p, err := repo.GetProfileByAuthID(ctx, s.DB, authID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// companyTitle capitalizes the first letter of each word without lowering
// the rest, so acronyms like "IBM" survive.
var companyTitle = cases.Title(language.English, cases.NoLower)

func (s *ProfileService) findOrCreateCompany(ctx context.Context, name, email string) (string, error) {
	// Canonicalize before the lookup so "acme corp" and "Acme Corp" land
	// on the same row.
	name = companyTitle.String(strings.Join(strings.Fields(name), " "))
	existing, err := repo.FindCompanyByName(ctx, s.DB, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	company := &domain.Company{
		ID:       uuid.NewString(),
		Name:     name,
		Domain:   domainFromEmail(email),
		Settings: datatypes.JSON("{}"),
	}
	created, err := repo.CreateCompany(ctx, s.DB, company)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the insert race; the row exists now.
		existing, lerr := repo.FindCompanyByName(ctx, s.DB, name)
		if lerr != nil {
			return "", lerr
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}
	log.Info().Str("company", name).Msg("created company")
	return created.ID, nil
}

func validateProfileInput(in CreateProfileInput) error {
	switch {
	case strings.TrimSpace(in.AuthID) == "":
		return fmt.Errorf("%w: auth_id is required", ErrValidation)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case strings.TrimSpace(in.FirstName) == "":
		return fmt.Errorf("%w: first_name is required", ErrValidation)
	case strings.TrimSpace(in.CompanyName) == "":
		return fmt.Errorf("%w: company_name is required", ErrValidation)
	}
	return nil
}

func domainFromEmail(email string) *string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return nil
	}
	d := strings.ToLower(email[at+1:])
	return &d
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
