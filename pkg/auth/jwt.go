package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer   = "leadflow"
	Audience = "leadflow-admin"
)

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewAdminToken signs an HS256 token for username valid from issuedAt for ttl.
func NewAdminToken(username, secret string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    Issuer,
			Audience:  []string{Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse verifies tokenString against secret, evaluating time claims at now.
// The signature is checked before expiry, so a tampered token never reports
// as expired.
func Parse(tokenString, secret string, now time.Time) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid && claims.Username != "" {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IsExpired reports whether err from Parse was caused by the exp claim.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
