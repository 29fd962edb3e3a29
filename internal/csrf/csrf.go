// Package csrf provides CSRF protection for the verification form.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidToken indicates a missing, malformed, expired, or forged CSRF
// token.
var ErrInvalidToken = errors.New("invalid csrf token")

// Store persists issued tokens until they expire.
type Store interface {
	// SaveToken stores a token with an expiry.
	SaveToken(ctx context.Context, token string, expiresIn time.Duration) error

	// ConsumeToken validates a token and removes it so it cannot be
	// replayed.
	ConsumeToken(ctx context.Context, token string) error

	// CheckHealth verifies the store is operational.
	CheckHealth(ctx context.Context) error
}

// Manager issues and validates single-use HMAC-signed CSRF tokens.
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

// NewManager creates a CSRF token manager.
func NewManager(store Store, secret []byte, expiresIn time.Duration) *Manager {
	return &Manager{store: store, secret: secret, expiresIn: expiresIn}
}

// GenerateToken creates, signs, and stores a new token.
func (m *Manager) GenerateToken(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(raw)

	full := token + "." + base64.URLEncoding.EncodeToString(m.sign(token))
	if err := m.store.SaveToken(ctx, full, m.expiresIn); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return full, nil
}

// ValidateToken checks the signature and consumes the token from the
// store. Each token is valid for exactly one submission.
func (m *Manager) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrInvalidToken
	}

	sig, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal(m.sign(parts[0]), sig) {
		return ErrInvalidToken
	}

	if err := m.store.ConsumeToken(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return err
		}
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies the backing store is reachable.
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(token string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(token))
	return h.Sum(nil)
}
