// Package auth registers and authenticates users and issues bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService signing with secret.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue returns a signed token whose subject is userID.
func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.StandardClaims{
		Subject:   userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	token, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("Issue: sign token: %w", err)
	}
	return token, nil
}

// Validate checks the signature and expiry of token and returns its subject.
func (s *TokenService) Validate(token string) (string, error) {
	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", domain.WrapError(domain.KindUnauthenticated, "invalid or expired token", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", domain.WrapError(domain.KindUnauthenticated, "invalid or expired token", errors.New("token has no subject"))
	}
	return claims.Subject, nil
}
