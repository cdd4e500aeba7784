// Package auth отвечает за пароли, JWT-сессии и пользователя текущего запроса.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/blog/internal/config"
	"github.com/ButyrinIA/blog/internal/models"
	"github.com/ButyrinIA/blog/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const SessionCookieName = "session"

var (
	ErrEmptyToken         = errors.New("пустой токен")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type ctxKey string

const userKey ctxKey = "user"

// Identity - пользователь, извлечённый из токена.
type Identity struct {
	ID       int64
	Username string
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type UserFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type UserStore interface {
	UserFinder
	CreateUser(ctx context.Context, user *models.User) error
}

type Manager struct {
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.TokenTTL,
		secureCookie: cfg.SecureCookie,
		now:          time.Now,
	}
}

func (m *Manager) GenerateToken(user *models.User) (string, error) {
	now := m.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (m *Manager) ValidateToken(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	return &Identity{ID: id, Username: claims.Username}, nil
}

func (m *Manager) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware кладёт пользователя в контекст, если запрос несёт валидный токен.
// Заголовок Authorization имеет приоритет над cookie. Невалидный токен - аноним.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			if c, err := r.Cookie(SessionCookieName); err == nil {
				token = c.Value
			}
		}
		if token != "" {
			if id, err := m.ValidateToken(token); err == nil {
				r = r.WithContext(WithUser(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, userKey, id)
}

func UserFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(userKey).(*Identity)
	return id, ok && id != nil
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate проверяет пару логин/пароль. Неизвестный пользователь и неверный
// пароль неразличимы для вызывающего.
func Authenticate(ctx context.Context, users UserFinder, username, password string) (*models.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureUser возвращает пользователя с указанным именем, создавая его при
// отсутствии. Пароль существующего пользователя не меняется.
func EnsureUser(ctx context.Context, users UserStore, username, password string) (*models.User, bool, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user = &models.User{Username: username, PasswordHash: hash}
	err = users.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrUserExists) {
		// Создан параллельно
		user, err = users.GetUserByUsername(ctx, username)
		return user, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
