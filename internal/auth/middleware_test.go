package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-backend/internal/config"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Basic abc":    {"", false},
		"Bearer":       {"", false},
		"":             {"", false},
	}
	for header, want := range cases {
		tok, ok := bearerToken(header)
		if tok != want.tok || ok != want.ok {
			t.Fatalf("bearerToken(%q) = %q, %v; want %q, %v", header, tok, ok, want.tok, want.ok)
		}
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Hour, RefreshTokenTTL: 2 * time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	pair, err := m.IssuePair(time.Now(), "u-1", "Alice", "EMPLOYEE")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		c.String(http.StatusOK, uid+"|"+Name(c.Request.Context()))
	})

	for _, tc := range []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"Bearer " + pair.AccessToken, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.code, w.Code)
		}
		if tc.code == http.StatusOK && w.Body.String() != "u-1|Alice" {
			t.Fatalf("unexpected identity %q", w.Body.String())
		}
	}
}
