package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func identityEcho() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", RequireIdentity(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject_id": c.GetString("subject_id"),
			"email":      c.GetString("email"),
		})
	})
	return r
}

func TestRequireIdentityAcceptsMintedToken(t *testing.T) {
	r := identityEcho()

	token, err := MintIdentityToken("subj-123", "rider@example.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	for _, want := range []string{"subj-123", "rider@example.com"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("body %s missing %s", w.Body.String(), want)
		}
	}
}

func TestRequireIdentityRejectsBadTokens(t *testing.T) {
	r := identityEcho()

	for _, tc := range []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, w.Code)
		}
	}
}
