package devicegrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/oauthkit/devicegrant/internal/validation"
)

// PendingAuthorization is what the verification surface shows the end user
// before they approve or deny: which client is asking, and for what.
type PendingAuthorization struct {
	UserCode   string
	Client     Client
	Scopes     []string
	DeviceCode string
}

// LookupPendingByUserCode finds the pending record for a submitted user
// code. The code is case-insensitive and whitespace/hyphen-normalized
// before lookup. Not-found, expired, and already-handled codes all return
// ErrCodeNotValid so the caller cannot probe the code space.
func (f *Flow) LookupPendingByUserCode(ctx context.Context, userCode string) (*PendingAuthorization, error) {
	rec, err := f.lookupPending(ctx, userCode)
	if err != nil {
		return nil, err
	}

	client, err := f.clients.Resolve(ctx, rec.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolving client %q: %w", rec.ClientID, err)
	}

	return &PendingAuthorization{
		UserCode:   rec.UserCode,
		Client:     client,
		Scopes:     rec.Scopes,
		DeviceCode: rec.DeviceCode,
	}, nil
}

// Approve transitions the record for the user code from pending to
// approved, recording the approving subject. A lost race (the record was
// concurrently approved, denied, or expired) returns the same generic
// ErrCodeNotValid as a bad code.
func (f *Flow) Approve(ctx context.Context, userCode, subject string) error {
	rec, err := f.lookupPending(ctx, userCode)
	if err != nil {
		return err
	}

	err = f.store.Approve(ctx, rec.DeviceCode, subject, f.clock.Now())
	if errors.Is(err, ErrConflict) {
		return ErrCodeNotValid
	}
	if err != nil {
		return fmt.Errorf("approving device code: %w", err)
	}
	return nil
}

// Deny transitions the record for the user code from pending to denied.
// Race behavior matches Approve.
func (f *Flow) Deny(ctx context.Context, userCode, subject string) error {
	rec, err := f.lookupPending(ctx, userCode)
	if err != nil {
		return err
	}

	err = f.store.Deny(ctx, rec.DeviceCode, subject, f.clock.Now())
	if errors.Is(err, ErrConflict) {
		return ErrCodeNotValid
	}
	if err != nil {
		return fmt.Errorf("denying device code: %w", err)
	}
	return nil
}

func (f *Flow) lookupPending(ctx context.Context, userCode string) (*Record, error) {
	normalized := validation.NormalizeCode(userCode)
	if err := validation.ValidateUserCode(validation.FormatCode(normalized)); err != nil {
		return nil, ErrCodeNotValid
	}

	rec, err := f.store.GetByUserCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("looking up user code: %w", err)
	}
	if rec == nil {
		return nil, ErrCodeNotValid
	}

	if rec.ExpiredAt(f.clock.Now()) {
		// Lazy expiry; best effort, the deadline check is authoritative.
		_ = f.store.Transition(ctx, rec.DeviceCode, rec.Status, StatusExpired)
		return nil, ErrCodeNotValid
	}

	if rec.Status != StatusPending {
		return nil, ErrCodeNotValid
	}

	return rec, nil
}
