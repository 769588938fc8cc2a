package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := AuthMiddleware(testSecret, next)

	valid, err := IssueToken(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	foreign, _ := IssueToken([]byte("other-secret"), time.Hour)

	tests := []struct {
		name     string
		path     string
		cookie   string
		expected int
	}{
		{"login page is public", "/login", "", http.StatusTeapot},
		{"login endpoint is public", "/auth/login", "", http.StatusTeapot},
		{"static is public", "/static/app.js", "", http.StatusTeapot},
		{"api without cookie", "/api/capture/state", "", http.StatusUnauthorized},
		{"page without cookie", "/journal", "", http.StatusSeeOther},
		{"plain cookie value", "/api/capture/state", "true", http.StatusUnauthorized},
		{"foreign signature", "/api/capture/state", foreign, http.StatusUnauthorized},
		{"authenticated", "/api/capture/state", valid, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rec.Code)
			}
			if tt.expected == http.StatusSeeOther && rec.Header().Get("Location") != "/login" {
				t.Errorf("Expected redirect to /login, got %s", rec.Header().Get("Location"))
			}
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := IssueToken(testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if err := ValidateToken(testSecret, token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Expected ErrTokenInvalid for expired token, got %v", err)
	}
}
