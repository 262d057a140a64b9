// Package adminauth issues and verifies the HS256 JWTs that gate the admin
// API. Claims carry sub, role, and exp. There is a single recognized role,
// "admin".
package adminauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// Claims is the JWT payload issued on admin login.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies admin session tokens signed with a shared
// secret (HS256). There is no refresh-token flow; tokens are short-lived
// and re-issued by calling Login again.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// New creates an Issuer. ttl is the lifetime of a minted token; a
// non-positive ttl falls back to 24h.
func New(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for subject with the given role.
func (iss *Issuer) Issue(subject, role string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(iss.ttl)
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(iss.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a bearer token, returning the identity it
// carries. Expired, malformed, or mis-signed tokens all map to
// oracle.ErrUnauthorized.
func (iss *Issuer) Verify(raw string) (*oracle.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oracle.ErrUnauthorized
		}
		return iss.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, oracle.ErrUnauthorized
	}
	return &oracle.Identity{Subject: claims.Subject, Role: claims.Role}, nil
}
