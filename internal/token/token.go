package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/staffdesk/apiserver/types"
)

const defaultTTL = 24 * time.Hour

// ErrInvalidToken is returned for every verification failure: bad
// signature, malformed token, wrong signing method, missing claims, or
// expiry. Callers never learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the principal identity embedded in a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role types.Role `json:"role"`
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer signing with the given secret and the
// default 24h validity window.
func NewIssuer(secret string) *Issuer {
	return NewIssuerWithTTL(secret, defaultTTL)
}

// NewIssuerWithTTL constructs an Issuer with an explicit validity window.
func NewIssuerWithTTL(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue produces a signed token for the principal. The role is carried
// as an explicit claim so verifiers read it directly.
func (i *Issuer) Issue(principalID int, role types.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(principalID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and yields back the embedded
// principal identity.
func (i *Issuer) Verify(tokenString string) (int, types.Role, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}

	principalID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || principalID < 1 {
		return 0, "", ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return 0, "", ErrInvalidToken
	}
	return principalID, claims.Role, nil
}
