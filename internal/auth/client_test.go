package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitchloop/sales-coach-backend/internal/config"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func localClient() *Client {
	return NewClient(config.AuthConfig{JWTSecret: testSecret})
}

func TestVerifyToken_EmptyToken(t *testing.T) {
	if _, err := localClient().VerifyToken(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken", err)
	}
}

func TestVerifyToken_LocalValid(t *testing.T) {
	token := signHS256(t, jwt.MapClaims{
		"sub":   "user-123",
		"email": "ada@example.com",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	u, err := localClient().VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if u.ID != "user-123" || u.Email != "ada@example.com" || u.Role != "authenticated" {
		t.Fatalf("user = %+v", u)
	}
}

func TestVerifyToken_LocalExpired(t *testing.T) {
	token := signHS256(t, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	if _, err := localClient().VerifyToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken for expired token", err)
	}
}

func TestVerifyToken_LocalMissingSubject(t *testing.T) {
	token := signHS256(t, jwt.MapClaims{
		"email": "ada@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	if _, err := localClient().VerifyToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken without subject", err)
	}
}

func TestVerifyToken_LocalWrongSigningMethod(t *testing.T) {
	// alg=none tokens must never verify.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-123"})
	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := localClient().VerifyToken(context.Background(), unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken for alg=none", err)
	}
}

func TestVerifyToken_LocalWrongKey(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := localClient().VerifyToken(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken for wrong key", err)
	}
}

func remoteClient(url string) *Client {
	return NewClient(config.AuthConfig{URL: url, AnonKey: "anon-key"})
}

func TestVerifyToken_RemoteValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "user-9", "email": "bea@example.com", "role": "authenticated"}`))
	}))
	defer srv.Close()

	u, err := remoteClient(srv.URL).VerifyToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if u.ID != "user-9" || u.Email != "bea@example.com" {
		t.Fatalf("user = %+v", u)
	}
}

func TestVerifyToken_RemoteUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := remoteClient(srv.URL).VerifyToken(context.Background(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken on 401", err)
	}
}

func TestVerifyToken_RemoteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := remoteClient(srv.URL).VerifyToken(context.Background(), "tok")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; provider outage must not read as an invalid token", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v; want status in message", err)
	}
}

func TestVerifyToken_RemoteMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email": "x@example.com"}`))
	}))
	defer srv.Close()

	if _, err := remoteClient(srv.URL).VerifyToken(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v; want ErrInvalidToken for user without id", err)
	}
}

func TestVerifyToken_RemoteUnconfigured(t *testing.T) {
	c := NewClient(config.AuthConfig{})
	if _, err := c.VerifyToken(context.Background(), "tok"); err == nil {
		t.Fatal("expected error when no provider URL is configured")
	}
}
