package middleware

import (
	"net/http"
	"strings"
)

// AuthCookieName is the cookie holding the signed operator token.
const AuthCookieName = "authenticated"

// AuthMiddleware lets requests through only with a valid auth cookie.
// The login page, login endpoint and static assets stay public.
func AuthMiddleware(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookieName)
		if err != nil || ValidateToken(secret, cookie.Value) != nil {
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Unauthorized"}`))
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		strings.HasPrefix(path, "/static/")
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Content-Type") == "application/json"
}
