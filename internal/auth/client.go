// Package auth verifies caller identity against a GoTrue-compatible auth
// provider. Tokens are validated locally when a JWT secret is configured,
// falling back to the provider's /auth/v1/user endpoint otherwise.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitchloop/sales-coach-backend/internal/config"
)

// ErrInvalidToken is returned when a presented token fails verification,
// locally or at the provider.
var ErrInvalidToken = errors.New("auth: invalid token")

// User is the verified auth-provider identity behind a token. ID is the
// subject claim and is what profiles store as auth_id.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Client verifies access tokens.
type Client struct {
	baseURL   string
	anonKey   string
	jwtSecret string
	httpc     *http.Client
}

// NewClient builds a token verifier from the auth configuration.
func NewClient(cfg config.AuthConfig) *Client {
	return &Client{
		baseURL:   cfg.URL,
		anonKey:   cfg.AnonKey,
		jwtSecret: cfg.JWTSecret,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// VerifyToken resolves a bearer token to its user. When a JWT secret is
// configured the token is verified locally (HS256, expiry enforced) without
// a network round trip; otherwise the provider is asked directly.
func (c *Client) VerifyToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if c.jwtSecret != "" {
		return c.verifyLocal(token)
	}
	return c.verifyRemote(ctx, token)
}

func (c *Client) verifyLocal(token string) (*User, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(c.jwtSecret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func (c *Client) verifyRemote(ctx context.Context, token string) (*User, error) {
	if c.baseURL == "" {
		return nil, errors.New("auth: provider URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: user lookup: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth: provider returned status %d", resp.StatusCode)
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("auth: decode user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	return &u, nil
}
