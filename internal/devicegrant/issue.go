package devicegrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Authorization is the device authorization response per RFC 8628
// section 3.2.
type Authorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// RequestDeviceCode initiates a new device authorization. The client must
// resolve in the registry (ErrClientNotFound otherwise) and every requested
// scope must be within the client's allowed scopes (ErrInvalidScope). On
// success a pending record is persisted and the code pair returned.
func (f *Flow) RequestDeviceCode(ctx context.Context, clientID, scope string) (*Authorization, error) {
	client, err := f.clients.Resolve(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("resolving client: %w", err)
	}

	approved, err := f.scopes.Validate(strings.Fields(scope), client.AllowedScopes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}

	now := f.clock.Now()
	rec := &Record{
		ClientID:  client.ID,
		Scopes:    approved,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(f.expiry),
		Interval:  int(f.pollInterval.Seconds()),
	}

	if err := f.createWithRetry(ctx, rec); err != nil {
		return nil, err
	}

	verificationURI, verificationURIComplete := f.verificationURIs(rec.UserCode)

	return &Authorization{
		DeviceCode:              rec.DeviceCode,
		UserCode:                rec.UserCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURIComplete,
		ExpiresIn:               int(f.expiry.Seconds()),
		Interval:                rec.Interval,
	}, nil
}

// createWithRetry generates fresh codes and inserts the record, retrying a
// bounded number of times on collision against live codes. Exhausting the
// retries indicates a collision storm and is reported loudly rather than
// degraded into a weaker code.
func (f *Flow) createWithRetry(ctx context.Context, rec *Record) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		deviceCode, err := generateDeviceCode()
		if err != nil {
			return fmt.Errorf("generating device code: %w", err)
		}
		userCode, err := generateUserCode()
		if err != nil {
			return fmt.Errorf("generating user code: %w", err)
		}

		rec.DeviceCode = deviceCode
		rec.UserCode = userCode

		err = f.store.Create(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUserCodeExists) || errors.Is(err, ErrDeviceCodeExists) {
			f.logger.Warn().
				Int("attempt", attempt).
				Str("client_id", rec.ClientID).
				Msg("device flow code collision, regenerating")
			continue
		}
		return fmt.Errorf("storing device code: %w", err)
	}

	f.logger.Error().
		Int("attempts", maxCodeAttempts).
		Str("client_id", rec.ClientID).
		Msg("device flow code generation exhausted retries; live code space saturated")
	return fmt.Errorf("generating unique user code: exhausted %d attempts", maxCodeAttempts)
}
