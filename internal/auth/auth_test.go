package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/ButyrinIA/blog/internal/storage/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestManager() *Manager {
	return NewManager(config.AuthConfig{JWTSecret: "your-secret-key", TokenTTL: time.Hour})
}

func TestGenerateToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte("your-secret-key"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "7", claims["sub"])
	assert.Equal(t, "alice", claims["username"])
}

func TestValidateToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)

	id, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: 7, Username: "alice"}, id)
}

func TestValidateToken_Invalid(t *testing.T) {
	m := newTestManager()

	_, err := m.ValidateToken("")
	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.Contains(t, err.Error(), "пустой токен")

	_, err = m.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	t.Run("wrong key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		wrongKeyToken, _ := token.SignedString([]byte("wrong-key"))
		_, err := m.ValidateToken(wrongKeyToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := newTestManager()
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.GenerateToken(&models.User{ID: 1, Username: "alice"})
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing exp", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
		signed, _ := token.SignedString([]byte("your-secret-key"))
		_, err := m.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, _ := token.SignedString([]byte("your-secret-key"))
		_, err := m.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		_, err := m.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateToken(&models.User{ID: 3, Username: "bob"})
	require.NoError(t, err)

	var got *Identity
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))

	t.Run("cookie", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, int64(3), got.ID)
	})

	t.Run("bearer", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, "bob", got.Username)
	})

	t.Run("bearer wins over cookie", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Nil(t, got)
	})

	t.Run("anonymous", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Nil(t, got)
	})
}

func TestSessionCookies(t *testing.T) {
	m := newTestManager()

	rr := httptest.NewRecorder()
	m.SetSession(rr, "tok")
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	rr = httptest.NewRecorder()
	m.ClearSession(rr)
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	alice := &models.User{ID: 1, Username: "alice", PasswordHash: hash}

	users := &mockUsers{}
	users.On("GetUserByUsername", mock.Anything, "alice").Return(alice, nil)
	users.On("GetUserByUsername", mock.Anything, "ghost").Return((*models.User)(nil), storage.ErrNotFound)
	users.On("GetUserByUsername", mock.Anything, "broken").Return((*models.User)(nil), errors.New("ошибка хранилища"))

	user, err := Authenticate(ctx, users, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, alice, user)

	_, err = Authenticate(ctx, users, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, users, "ghost", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, users, "broken", "s3cret")
	assert.EqualError(t, err, "ошибка хранилища")

	users.AssertExpectations(t)
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	user, created, err := EnsureUser(ctx, store, "admin", "s3cr3t")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, user.ID)

	logged, err := Authenticate(ctx, store, "admin", "s3cr3t")
	require.NoError(t, err, "созданный пользователь может войти")
	assert.Equal(t, user.ID, logged.ID)

	again, created, err := EnsureUser(ctx, store, "admin", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	_, err = Authenticate(ctx, store, "admin", "other")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "пароль существующего пользователя не меняется")
}

func TestEnsureUser_StoreError(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetUserByUsername", mock.Anything, "admin").Return((*models.User)(nil), errors.New("ошибка хранилища"))

	_, _, err := EnsureUser(context.Background(), users, "admin", "s3cr3t")
	assert.Error(t, err)
	users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

type mockUserStore struct {
	mockUsers
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
