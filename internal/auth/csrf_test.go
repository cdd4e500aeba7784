package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfHandler(t *testing.T, seen *string) http.Handler {
	t.Helper()
	return newTestManager().CSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = CSRFToken(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/post/create/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCSRF_IssuesCookieOnGet(t *testing.T) {
	var seen string
	rr := httptest.NewRecorder()
	csrfHandler(t, &seen).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CSRFCookieName, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, seen, "токен в контексте совпадает с cookie")
}

func TestCSRF_ReusesExistingCookie(t *testing.T) {
	var seen string
	token := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})

	rr := httptest.NewRecorder()
	csrfHandler(t, &seen).ServeHTTP(rr, req)

	assert.Equal(t, token, seen)
	assert.Empty(t, rr.Result().Cookies(), "cookie не перевыпускается")
}

func TestCSRF_Post(t *testing.T) {
	token := uuid.NewString()

	t.Run("matching token", func(t *testing.T) {
		var seen string
		req := postForm(url.Values{CSRFFieldName: {token}})
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
		rr := httptest.NewRecorder()
		csrfHandler(t, &seen).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("mismatch", func(t *testing.T) {
		var seen string
		req := postForm(url.Values{CSRFFieldName: {uuid.NewString()}})
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
		rr := httptest.NewRecorder()
		csrfHandler(t, &seen).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, seen, "обработчик не должен вызываться")
	})

	t.Run("no cookie", func(t *testing.T) {
		var seen string
		req := postForm(url.Values{CSRFFieldName: {token}})
		rr := httptest.NewRecorder()
		csrfHandler(t, &seen).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("bearer exempt", func(t *testing.T) {
		var seen string
		req := postForm(url.Values{})
		req.Header.Set("Authorization", "Bearer whatever")
		rr := httptest.NewRecorder()
		csrfHandler(t, &seen).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
