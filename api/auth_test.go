package api

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskboard-api/domain"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestIdentityFromAuthHeader(t *testing.T) {
	auth := NewLocalAuth(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub":   "alice@example.com",
		"email": "alice@example.com",
		"name":  "Alice",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	id, err := auth.IdentityFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestIdentityFallsBackToSub(t *testing.T) {
	auth := NewLocalAuth(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub": "bob@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	id, err := auth.IdentityFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Email != "bob@example.com" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := NewLocalAuth(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := auth.IdentityFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	auth := NewLocalAuth([]byte("other-secret"))
	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := auth.IdentityFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   error
	}{
		{name: "empty", header: "", want: errMissingAuthorization},
		{name: "spaces only", header: "   ", want: errMissingAuthorization},
		{name: "no bearer prefix", header: "Basic abc.def.ghi", want: errBadAuthorization},
		{name: "bearer no token", header: "Bearer ", want: errBadAuthorization},
		{name: "not a jwt", header: "Bearer notajwt", want: errBadAuthorization},
		{name: "too many segments", header: "Bearer a.b.c.d", want: errBadAuthorization},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := bearerToken(tc.header)
			if !errors.Is(err, tc.want) {
				t.Fatalf("header %q: expected %v, got %v", tc.header, tc.want, err)
			}
		})
	}

	token, err := bearerToken("  Bearer a.b.c  ")
	if err != nil {
		t.Fatalf("trimmed header: %v", err)
	}
	if token != "a.b.c" {
		t.Fatalf("expected a.b.c, got %q", token)
	}
}

func TestIssuerRoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	auth := NewLocalAuth(testSecret)

	token, err := issuer.Token(domain.User{Name: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("not a jwt: %q", token)
	}

	id, err := auth.IdentityFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %#v", id)
	}
}
