package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const defaultTokenTTL = 24 * time.Hour

// ErrEmptySigningKey is returned when the token service is built without a secret.
var ErrEmptySigningKey = errors.New("token signing key must not be empty")

// TokenConfig holds the process-wide signing settings. It is read once at startup.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// TokenService issues and validates HS256 bearer tokens that carry only the user id.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  ports.Clock
}

// NewTokenService builds a TokenService. A nil clock means wall-clock time.
func NewTokenService(cfg TokenConfig, clock ports.Clock) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySigningKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{secret: secret, ttl: cfg.TTL, issuer: cfg.Issuer, clock: clock}, nil
}

// TTL returns the validity window of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for userID valid from now until now+TTL.
func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("issue token: empty user id")
	}

	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry and returns the subject.
// Every failure wraps domain.ErrInvalidToken.
func (s *TokenService) Validate(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return "", invalidToken(reason(err))
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", invalidToken("missing_subject")
	}
	return claims.Subject, nil
}

// reason reduces a jwt parse error to a short, log-safe label.
func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	default:
		return "unverifiable"
	}
}

type tokenError struct{ reason string }

func (e *tokenError) Error() string { return e.reason }

func invalidToken(reason string) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidToken, &tokenError{reason: reason})
}

// ValidationFailureReason returns the short label of an error produced by Validate,
// or "invalid" for anything else.
func ValidationFailureReason(err error) string {
	var te *tokenError
	if errors.As(err, &te) {
		return te.reason
	}
	return "invalid"
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
