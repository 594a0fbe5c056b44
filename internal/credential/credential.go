// Package credential mints and verifies the signed API credentials handed to callers.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/codeforge/gateway/internal/domain"
	"github.com/codeforge/gateway/internal/domain/tier"
)

const (
	claimTier       = "tier"
	claimOwner      = "owner"
	claimDailyLimit = "dailyLimit"
)

// Claims is the decoded payload of a credential.
type Claims struct {
	ID         string
	Tier       tier.Tier
	Owner      string
	DailyLimit int64
	IssuedAt   time.Time
}

// Signer mints and verifies HS256 credentials with a server-held secret.
// Credentials carry no expiry; revocation deletes the store record.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer. The secret must be non-empty.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("credential secret is required")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// WithClock overrides the time source used for iat.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// Sign mints a credential for the given tier and owner.
func (s *Signer) Sign(t tier.Tier, owner string) (string, Claims, error) {
	claims := Claims{
		ID:         uuid.NewString(),
		Tier:       t,
		Owner:      owner,
		DailyLimit: t.Ceiling(),
		IssuedAt:   s.now().UTC().Truncate(time.Second),
	}

	tok, err := jwt.NewBuilder().
		JwtID(claims.ID).
		IssuedAt(claims.IssuedAt).
		Claim(claimTier, claims.Tier.String()).
		Claim(claimOwner, claims.Owner).
		Claim(claimDailyLimit, claims.DailyLimit).
		Build()
	if err != nil {
		return "", Claims{}, fmt.Errorf("build credential: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign credential: %w", err)
	}
	return string(signed), claims, nil
}

// Verify checks the signature and decodes the claims.
// Every failure is reported as domain.ErrInvalidCredential.
func (s *Signer) Verify(credential string) (Claims, error) {
	if credential == "" {
		return Claims{}, fmt.Errorf("%w: missing", domain.ErrInvalidCredential)
	}

	tok, err := jwt.Parse(
		[]byte(credential),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithAcceptableSkew(time.Minute),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}

	rawTier, _ := stringClaim(tok, claimTier)
	t, err := tier.Parse(rawTier)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	owner, ok := stringClaim(tok, claimOwner)
	if !ok || owner == "" {
		return Claims{}, fmt.Errorf("%w: owner claim missing", domain.ErrInvalidCredential)
	}

	return Claims{
		ID:         tok.JwtID(),
		Tier:       t,
		Owner:      owner,
		DailyLimit: numberClaim(tok, claimDailyLimit),
		IssuedAt:   tok.IssuedAt().UTC(),
	}, nil
}

func stringClaim(tok jwt.Token, name string) (string, bool) {
	v, ok := tok.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// numberClaim reads a JSON number claim; JSON decoding yields float64.
func numberClaim(tok jwt.Token, name string) int64 {
	v, ok := tok.Get(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
