// Package token issues and validates the signed session tokens returned by
// the auth plugin's login endpoint. Tokens are stateless HS256 JWTs.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is used when no expiration is configured.
const DefaultTTL = 24 * time.Hour

// ErrInvalid is returned for tokens that fail signature, expiry or claim
// checks.
var ErrInvalid = errors.New("invalid token")

// Claims are the JWT claims of a session token. Subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. Safe for concurrent use.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service. An empty secret generates a random
// one, which invalidates tokens on restart.
func NewService(secret string, ttl time.Duration) *Service {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		rand.Read(key)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: key,
		issuer: "adminkit",
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for a user.
func (s *Service) Issue(userID, email string) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a token and returns its claims.
func (s *Service) Validate(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Refresh validates a token and issues a new one for the same user.
func (s *Service) Refresh(raw string) (string, time.Time, error) {
	claims, err := s.Validate(raw)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.Issue(claims.Subject, claims.Email)
}

// GenerateSecret returns a random hex secret suitable for signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
