package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/leadflow/pkg/auth"
	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/stretchr/testify/require"
)

var fastParams = &argon2id.Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func newTestAuth(t *testing.T, now func() time.Time) AuthService {
	t.Helper()
	hash, err := argon2id.CreateHash("s3cret", fastParams)
	require.NoError(t, err)

	svc, err := NewAuthService(config.AuthConfig{
		JWTSecret:         "test-secret",
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		TokenTTL:          2 * time.Hour,
	}, WithAuthClock(now))
	require.NoError(t, err)
	return svc
}

func TestLoginIssuesTwoHourToken(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestAuth(t, func() time.Time { return issued })

	token, err := svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	claims, err := auth.Parse(token, "test-secret", issued)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.True(t, issued.Add(2*time.Hour).Equal(claims.ExpiresAt.Time))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuth(t, time.Now)

	cases := []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "s3cret"},
		{"", ""},
		{"Admin", "s3cret"},
	}
	for _, c := range cases {
		token, err := svc.Login(context.Background(), c.user, c.pass)
		require.ErrorIs(t, err, ErrInvalidCredentials, "user=%q pass=%q", c.user, c.pass)
		require.Empty(t, token)
	}
}

func TestLoginHashesPlainPassword(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{
		JWTSecret:     "test-secret",
		AdminUsername: "admin",
		AdminPassword: "plain",
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "admin", "plain")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "admin", "other")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewAuthServiceRequiresSecretAndPassword(t *testing.T) {
	_, err := NewAuthService(config.AuthConfig{AdminUsername: "admin", AdminPassword: "x"})
	require.Error(t, err)

	_, err = NewAuthService(config.AuthConfig{JWTSecret: "s", AdminUsername: "admin"})
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := issued
	svc := newTestAuth(t, func() time.Time { return now })

	token, err := svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		now = issued.Add(time.Hour)
		id, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, "admin", id.Username)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("expired", func(t *testing.T) {
		now = issued.Add(2*time.Hour + time.Second)
		_, err := svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("garbage", func(t *testing.T) {
		now = issued
		_, err := svc.Authenticate(context.Background(), "not-a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered expired token is invalid", func(t *testing.T) {
		now = issued.Add(3 * time.Hour)
		tampered := []byte(token)
		tampered[len(tampered)-2] ^= 0x01
		_, err := svc.Authenticate(context.Background(), string(tampered))
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrExpiredToken))
	})

	t.Run("other secret", func(t *testing.T) {
		now = issued
		foreign, err := auth.NewAdminToken("admin", "other-secret", issued, 2*time.Hour)
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), foreign)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
