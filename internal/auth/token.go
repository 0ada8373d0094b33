package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workforce-hq/workforce/internal/tenancy"
)

const tokenIssuer = "workforce"

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

type claims struct {
	TenantID    string `json:"tid,omitempty"`
	IsSuperuser bool   `json:"su,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens carrying an Identity. Only
// the claims are trusted; the resolver re-reads membership on every request.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a token issuer. A non-positive ttl defaults to one hour.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity.
func (t *Tokens) Issue(identity tenancy.Identity) (Token, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	c := claims{
		TenantID:    identity.TenantID,
		IsSuperuser: identity.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires.UTC()}, nil
}

// Parse verifies raw and returns the identity it carries.
func (t *Tokens) Parse(raw string) (tenancy.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return tenancy.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return tenancy.Identity{}, ErrInvalidToken
	}
	return tenancy.Identity{UserID: c.Subject, TenantID: c.TenantID, IsSuperuser: c.IsSuperuser}, nil
}
