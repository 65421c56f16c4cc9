package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Auth methods recorded on a resolved identity.
const (
	MethodCookie = "cookie"
	MethodBearer = "bearer"
)

// Identity is a verified caller. Method records which credential strategy
// produced it, which handlers use to scope what the identity may do.
type Identity struct {
	Method string
	UserID string
	Email  string
	Role   string
}

// TokenVerifier is the subset of Client the resolver needs; tests substitute
// a stub.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}

// Resolver extracts and verifies credentials from incoming requests. The
// session cookie is tried before the Authorization header, mirroring how
// browser-originated and API-originated calls differ.
type Resolver struct {
	verifier   TokenVerifier
	cookieName string
}

// NewResolver builds a Resolver around a verifier and the configured session
// cookie name.
func NewResolver(verifier TokenVerifier, cookieName string) *Resolver {
	return &Resolver{verifier: verifier, cookieName: cookieName}
}

// Resolve tries each credential strategy in order and returns the first
// identity that verifies. A request with no credentials at all resolves to
// (nil, nil): anonymous is a state, not an error. ErrInvalidToken is
// returned only when credentials were presented and none verified.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	type candidate struct {
		method string
		token  string
	}
	var candidates []candidate
	if tok := r.cookieToken(req); tok != "" {
		candidates = append(candidates, candidate{MethodCookie, tok})
	}
	if tok := bearerToken(req); tok != "" {
		candidates = append(candidates, candidate{MethodBearer, tok})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, c := range candidates {
		u, err := r.verifier.VerifyToken(ctx, c.token)
		if err != nil {
			continue
		}
		return &Identity{Method: c.method, UserID: u.ID, Email: u.Email, Role: u.Role}, nil
	}
	return nil, ErrInvalidToken
}

// cookieToken reads the session cookie. Large tokens are split by the auth
// provider's browser SDK into "<name>.0", "<name>.1", ... chunks, so when
// the plain cookie is absent the chunks are reassembled in order.
func (r *Resolver) cookieToken(req *http.Request) string {
	if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
		return decodeCookieValue(c.Value)
	}
	var b strings.Builder
	for i := 0; ; i++ {
		c, err := req.Cookie(r.cookieName + "." + strconv.Itoa(i))
		if err != nil || c.Value == "" {
			break
		}
		b.WriteString(c.Value)
	}
	if b.Len() == 0 {
		return ""
	}
	return decodeCookieValue(b.String())
}

// decodeCookieValue unwraps the provider's "base64-" cookie encoding, where
// the value is a base64 JSON array whose first element is the access token.
// Plain values pass through untouched.
func decodeCookieValue(v string) string {
	const prefix = "base64-"
	if !strings.HasPrefix(v, prefix) {
		return v
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(v, prefix))
	if err != nil {
		return ""
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
		// Some SDK versions store a session object instead of an array.
		var session struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(raw, &session); err == nil && session.AccessToken != "" {
			return session.AccessToken
		}
		return ""
	}
	return parts[0]
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
