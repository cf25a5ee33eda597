package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"property-catalog/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookie = "catalog_session"
	adminSubject  = "admin"
)

var (
	ErrWrongPassword = errors.New("wrong admin password")
	ErrInvalidToken  = errors.New("invalid session token")
)

type contextKey struct{}

// Claims is the payload of an admin session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator is the single-password admin gate. A correct password is
// exchanged for a signed session token, sent back as cookie or bearer.
type Authenticator struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAuthenticator(password, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login checks password and issues a session token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), a.password) != 1 {
		return "", time.Time{}, ErrWrongPassword
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expires, nil
}

// Verify validates a session token.
func (a *Authenticator) Verify(tokenString string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role != adminSubject {
		return ErrInvalidToken
	}
	return nil
}

// Identify marks the request as coming from an admin when it carries a
// valid session. It never rejects a request.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := sessionToken(r); token != "" && a.Verify(token) == nil {
			r = r.WithContext(context.WithValue(r.Context(), contextKey{}, true))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests without a valid session with 401.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			utils.RespondWithErrorJSON(w, http.StatusUnauthorized, "admin session required")
			return
		}
		if err := a.Verify(token); err != nil {
			utils.RespondWithErrorJSON(w, http.StatusUnauthorized, "invalid or expired admin session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, true)))
	})
}

// IsAdmin reports whether Identify or RequireAdmin accepted the request.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKey{}).(bool)
	return ok
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
