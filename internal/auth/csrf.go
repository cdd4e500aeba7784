package auth

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/google/uuid"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFFieldName  = "csrf_token"
)

const csrfKey ctxKey = "csrf"

// CSRF реализует double-submit cookie: изменяющие запросы должны повторить
// значение cookie в поле формы. Запросы с Bearer-токеном cookie-сессию не
// используют и проверку не проходят.
func (m *Manager) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookieToken string
		if c, err := r.Cookie(CSRFCookieName); err == nil && validCSRFToken(c.Value) {
			cookieToken = c.Value
		}

		token := cookieToken
		if token == "" {
			token = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		r = r.WithContext(context.WithValue(r.Context(), csrfKey, token))

		if safeMethod(r.Method) || BearerToken(r) != "" {
			next.ServeHTTP(w, r)
			return
		}

		submitted := r.PostFormValue(CSRFFieldName)
		if cookieToken == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
			log.Printf("CSRF-проверка не пройдена: %s %s", r.Method, r.URL.Path)
			http.Error(w, "CSRF verification failed.", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey).(string)
	return token
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func validCSRFToken(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
