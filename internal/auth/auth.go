// Package auth implements the optional password gate: a single shared
// password exchanged for a signed session token.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

const (
	CookieName = "session"
	subject    = "user"
	issuer     = "candle-csv"
)

type Claims struct {
	jwt.RegisteredClaims
}

// Sessions issues and checks session tokens. A zero password disables the
// gate.
type Sessions struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions returns a session manager. Without a secret, a random one is
// generated, so sessions do not survive a restart.
func NewSessions(password, secret string, ttl time.Duration) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		password: []byte(password),
		secret:   key,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (s *Sessions) Enabled() bool { return len(s.password) > 0 }

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Login checks password and returns a signed token with its expiry.
func (s *Sessions) Login(password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		return "", time.Time{}, apperror.New(apperror.Unauthorized, "Invalid password")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify validates a token issued by Login.
func (s *Sessions) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, apperror.New(apperror.Unauthorized, "Login required")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		msg := "Invalid session"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "Session expired"
		}
		return nil, apperror.Wrap(apperror.Unauthorized, err, msg)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperror.New(apperror.Unauthorized, "Invalid session")
	}
	return claims, nil
}
