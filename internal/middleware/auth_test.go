package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	token, err := issuer.Generate("user-1", "admin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}

	issuer, _ := NewTokenIssuer("secret", time.Hour)
	other, _ := NewTokenIssuer("other-secret", time.Hour)

	foreign, _ := other.Generate("user-1", "")
	if _, err := issuer.Validate(foreign); err == nil {
		t.Error("expected error for a token signed with another secret")
	}

	expired, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	if _, err := issuer.Validate(expired); err == nil {
		t.Error("expected error for an expired token")
	}

	noUser, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	if _, err := issuer.Validate(noUser); err == nil {
		t.Error("expected error for a token without user")
	}
}

func TestAuth_SetsCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer, _ := NewTokenIssuer("secret", time.Hour)

	router := gin.New()
	router.Use(Auth(issuer))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, CallerID(c)+"|"+CallerRole(c))
	})

	token, _ := issuer.Generate("user-1", "admin")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "user-1|admin" {
		t.Errorf("unexpected response %d %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}
