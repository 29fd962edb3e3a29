package devicegrant

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckDeviceCode processes one token endpoint poll for a device code,
// per RFC 8628 sections 3.4 and 3.5. All state transitions are atomic per
// record; concurrent polls across processes resolve through the store's
// conditional updates, never through in-process locks.
func (f *Flow) CheckDeviceCode(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	if len(deviceCode) != DeviceCodeLength {
		return nil, ErrInvalidGrant
	}

	rec, err := f.store.GetByDeviceCode(ctx, deviceCode)
	if err != nil {
		return nil, fmt.Errorf("getting device code: %w", err)
	}
	if rec == nil {
		return nil, ErrInvalidGrant
	}

	now := f.clock.Now()
	if rec.ExpiredAt(now) {
		if rec.Status != StatusExpired {
			// Lazy expiry marker; the deadline comparison above is what
			// decides the response.
			_ = f.store.Transition(ctx, deviceCode, rec.Status, StatusExpired)
		}
		return nil, ErrExpiredToken
	}

	switch rec.Status {
	case StatusPending:
		return nil, f.recordPendingPoll(ctx, rec, now)

	case StatusApproved:
		// Single-use guarantee: exactly one poll wins the CAS and reaches
		// the issuer; every later poll sees consumed.
		err := f.store.Transition(ctx, deviceCode, StatusApproved, StatusConsumed)
		if errors.Is(err, ErrConflict) {
			return nil, ErrInvalidGrant
		}
		if err != nil {
			return nil, fmt.Errorf("consuming device code: %w", err)
		}
		return f.mint(ctx, rec)

	case StatusDenied:
		// access_denied is observed once; the record is then invalidated so
		// any further poll gets invalid_grant.
		err := f.store.Transition(ctx, deviceCode, StatusDenied, StatusConsumed)
		if errors.Is(err, ErrConflict) {
			return nil, ErrInvalidGrant
		}
		if err != nil {
			return nil, fmt.Errorf("invalidating denied device code: %w", err)
		}
		return nil, ErrAccessDenied

	case StatusExpired:
		return nil, ErrExpiredToken

	default: // consumed
		return nil, ErrInvalidGrant
	}
}

// recordPendingPoll applies the interval discipline for a still-pending
// record: polling inside the interval returns slow_down and bumps the
// interval by the backoff step up to the cap; polling respecting the
// interval returns authorization_pending and only updates the timestamp.
func (f *Flow) recordPendingPoll(ctx context.Context, rec *Record, now time.Time) error {
	interval := time.Duration(rec.Interval) * time.Second

	if rec.LastPolledAt != nil && now.Sub(*rec.LastPolledAt) < interval {
		next := rec.Interval + int(f.backoffStep.Seconds())
		if max := int(f.maxInterval.Seconds()); next > max {
			next = max
		}
		// A lost CAS here means a concurrent actor already moved the
		// record on; the client is told to slow down either way.
		_ = f.store.RecordPoll(ctx, rec.DeviceCode, now, next)
		return ErrSlowDown
	}

	if err := f.store.RecordPoll(ctx, rec.DeviceCode, now, rec.Interval); err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("recording poll: %w", err)
	}
	return ErrAuthorizationPending
}

func (f *Flow) mint(ctx context.Context, rec *Record) (*TokenResponse, error) {
	client, err := f.clients.Resolve(ctx, rec.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolving client %q: %w", rec.ClientID, err)
	}

	token, err := f.issuer.Mint(ctx, client, rec.ApprovedSubject, rec.Scopes)
	if err != nil {
		f.logger.Error().
			Err(err).
			Str("client_id", rec.ClientID).
			Msg("token issuer failed after device code was consumed")
		return nil, fmt.Errorf("minting tokens: %w", err)
	}
	return token, nil
}
