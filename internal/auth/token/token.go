// Package token issues and verifies signed, time-limited bearer tokens.
//
// A token embeds the owning account ID and an expiry timestamp. Possession
// of a cryptographically valid token is necessary but not sufficient for
// authentication: the auth guard additionally requires the token to be
// present in the account's issued-token list.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Sentinel errors for token verification. The two kinds are distinguishable
// with errors.Is so the auth guard can produce distinct responses.
var (
	// ErrExpired indicates that the token is past its expiry.
	ErrExpired = errors.New("token has expired")

	// ErrInvalid indicates a bad signature, malformed structure, or a
	// missing account claim.
	ErrInvalid = errors.New("token is invalid")
)

// accountIDClaim is the private claim carrying the owning account ID.
const accountIDClaim = "accountId"

// DefaultTTL is the default token lifetime.
const DefaultTTL = time.Hour

// Service issues and verifies HS256-signed JWT bearer tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option is a functional option for the Service.
type Option func(*Service)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source. Used by tests to issue tokens in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a token service signing with the given secret.
func NewService(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}

	s := &Service{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Issue produces a signed token embedding the account ID with an expiry of
// TTL from now. The caller is responsible for appending the returned token
// to the account's issued-token list.
func (s *Service) Issue(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("token: account id is required")
	}

	now := s.now()
	tok, err := jwt.NewBuilder().
		Claim(accountIDClaim, accountID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Build()
	if err != nil {
		return "", err
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", err
	}

	return string(signed), nil
}

// Verify checks the signature and expiry of the token and returns the
// embedded account ID. Returns ErrExpired for a token past its expiry and
// ErrInvalid for a bad signature, malformed structure, or missing claim.
func (s *Service) Verify(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalid
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}

	v, ok := tok.Get(accountIDClaim)
	if !ok {
		return "", ErrInvalid
	}

	accountID, ok := v.(string)
	if !ok || accountID == "" {
		return "", ErrInvalid
	}

	return accountID, nil
}
