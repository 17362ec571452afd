package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestConsoleJWTDisabledWithoutSecret(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/booking", nil)
	rec := httptest.NewRecorder()

	ConsoleJWT("")(okHandler(&called)).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, called=%v code=%d", called, rec.Code)
	}
}

func TestConsoleJWTMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/booking", nil)
	rec := httptest.NewRecorder()

	ConsoleJWT("secret")(okHandler(nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestConsoleJWTRejectsWrongSecretAndIssuer(t *testing.T) {
	wrongSecret, err := IssueConsoleToken("other", "cli", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueConsoleToken: %v", err)
	}
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: consoleIssuer,
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, tok := range map[string]string{"secret": wrongSecret, "issuer": wrongIssuer, "expiry": noExpiry} {
		req := httptest.NewRequest(http.MethodGet, "/booking", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		ConsoleJWT("secret")(okHandler(nil)).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestConsoleJWTValidToken(t *testing.T) {
	tok, err := IssueConsoleToken("secret", "front-desk", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueConsoleToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/booking", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	called := false
	ConsoleJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := ConsoleClaimsFromContext(r.Context())
		if !ok || claims.Subject != "front-desk" {
			t.Fatalf("claims = %+v, ok = %v", claims, ok)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected success, called=%v code=%d", called, rec.Code)
	}
}

func TestIssueConsoleTokenNeedsSecret(t *testing.T) {
	if _, err := IssueConsoleToken("", "x", time.Hour, time.Now()); err == nil {
		t.Fatal("expected error without secret")
	}
}
