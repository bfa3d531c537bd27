package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/leadflow/pkg/auth"
	"github.com/diagnosis/leadflow/pkg/config"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoToken            = errors.New("no authentication token provided")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

// Identity is the caller carried by a valid token. Any identity is a full
// administrator.
type Identity struct {
	Username string
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

type authService struct {
	username     string
	passwordHash string
	secret       string
	ttl          time.Duration
	now          func() time.Time
}

type AuthOption func(*authService)

// WithAuthClock overrides the clock used for issuing and checking tokens.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *authService) { s.now = now }
}

// NewAuthService hashes a plain AdminPassword once so that every login pays
// the same argon2id cost.
func NewAuthService(cfg config.AuthConfig, opts ...AuthOption) (AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	hash := cfg.AdminPasswordHash
	if hash == "" {
		if cfg.AdminPassword == "" {
			return nil, errors.New("admin password is required")
		}
		var err error
		hash, err = argon2id.CreateHash(cfg.AdminPassword, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	s := &authService{
		username:     cfg.AdminUsername,
		passwordHash: hash,
		secret:       cfg.JWTSecret,
		ttl:          cfg.TokenTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	// Always run the hash comparison so a wrong username costs as much as a
	// wrong password.
	passOK, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		return "", fmt.Errorf("failed to compare password: %w", err)
	}
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	token, err := auth.NewAdminToken(s.username, s.secret, s.now(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims, err := auth.Parse(token, s.secret, s.now())
	if err != nil {
		if auth.IsExpired(err) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Identity{Username: claims.Username}, nil
}
