package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/torkelsen/cardledger/internal/model"
)

// Claims represents the session token payload
type Claims struct {
	jwt.RegisteredClaims
	CardNumber string `json:"card_number"`
	Admin      bool   `json:"admin"`
}

// Sessions issues and validates signed session tokens. The login flow hands a
// token to the front-end, which passes it back on privileged operations.
type Sessions struct {
	secret []byte
	expiry time.Duration

	// Now is the clock used for token timestamps; tests inject a fixed one
	Now func() time.Time
}

// NewSessions creates a session token service
func NewSessions(secret []byte, expiry time.Duration) *Sessions {
	return &Sessions{
		secret: secret,
		expiry: expiry,
		Now:    time.Now,
	}
}

// Issue creates a signed token for an authenticated account
func (s *Sessions) Issue(account *model.Account) (string, error) {
	now := s.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.CardNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			Issuer:    "cardledger",
		},
		CardNumber: account.CardNumber,
		Admin:      account.IsAdmin(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token
func (s *Sessions) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.Now() }))
	if err != nil {
		return nil, model.NewFailure(model.CodeUnauthorized, "invalid session token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, model.NewFailure(model.CodeUnauthorized, "invalid session token")
	}

	return claims, nil
}
