package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/pkg/apperror"
)

const (
	// DefaultTTL is how long an issued chat session token stays valid.
	DefaultTTL = 5 * time.Minute

	MissingTokenMessage = "session token is required"
	InvalidTokenMessage = "session token is invalid"
	ExpiredTokenMessage = "session token has expired"
)

// Service issues and checks HS256 tokens binding a chat session to an email.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service. An empty secret is replaced with a random
// one, which invalidates outstanding tokens on restart.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("session: generate secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new token for email.
func (s *Service) Issue(email string) (chat.SessionToken, error) {
	email = normalizeEmail(email)
	if email == "" {
		return chat.SessionToken{}, apperror.Validation("No email provided")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return chat.SessionToken{}, fmt.Errorf("session: sign token: %w", err)
	}

	return chat.SessionToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate checks token's signature and expiry and that it was issued for email.
func (s *Service) Validate(token, email string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.Session(MissingTokenMessage, nil)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperror.Session(ExpiredTokenMessage, err)
		}
		return apperror.Session(InvalidTokenMessage, err)
	}

	if claims.Subject != normalizeEmail(email) {
		return apperror.Session(InvalidTokenMessage, fmt.Errorf("token subject %q does not match request email", claims.Subject))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
