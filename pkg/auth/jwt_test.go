package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestNewAdminTokenRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tok, err := NewAdminToken("admin", testSecret, issued, 2*time.Hour)
	require.NoError(t, err)

	claims, err := Parse(tok, testSecret, issued.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, "admin", claims.Subject)
	require.True(t, issued.Add(2*time.Hour).Equal(claims.ExpiresAt.Time))
}

func TestParseExpired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tok, err := NewAdminToken("admin", testSecret, issued, 2*time.Hour)
	require.NoError(t, err)

	_, err = Parse(tok, testSecret, issued.Add(2*time.Hour+time.Second))
	require.Error(t, err)
	require.True(t, IsExpired(err))
}

func TestParseWrongSecret(t *testing.T) {
	issued := time.Now()
	tok, err := NewAdminToken("admin", testSecret, issued, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tok, "other-secret", issued)
	require.Error(t, err)
	require.False(t, IsExpired(err))
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	issued := time.Now()
	claims := Claims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  []string{Audience},
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = Parse(tok, testSecret, issued)
	require.Error(t, err)
}

func TestParseRejectsSingleByteTampering(t *testing.T) {
	issued := time.Now()
	tok, err := NewAdminToken("admin", testSecret, issued, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		repl := byte('A')
		if tok[i] == 'A' {
			repl = 'B'
		}
		tampered := tok[:i] + string(repl) + tok[i+1:]

		_, err := Parse(tampered, testSecret, issued)
		require.Error(t, err, "byte %d (%s segment) was accepted", i, segmentOf(tok, i))
		require.False(t, IsExpired(err))
	}
}

func segmentOf(tok string, i int) string {
	switch strings.Count(tok[:i], ".") {
	case 0:
		return "header"
	case 1:
		return "payload"
	default:
		return "signature"
	}
}
