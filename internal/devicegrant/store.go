// Package devicegrant implements the OAuth 2.0 Device Authorization Grant
// engine per RFC 8628: device/user code issuance, the verification
// approve/deny workflow, and the token endpoint's polling grant.
package devicegrant

import (
	"context"
	"errors"
	"time"
)

// Store errors. Callers distinguish conflicts (a concurrent actor already
// applied a contradictory transition) from genuine storage failures.
var (
	// ErrUserCodeExists indicates a live record already holds the user code.
	ErrUserCodeExists = errors.New("user code already exists")

	// ErrDeviceCodeExists indicates the device code is already in use.
	ErrDeviceCodeExists = errors.New("device code already exists")

	// ErrConflict indicates a conditional update found the record in a
	// different state than expected.
	ErrConflict = errors.New("record not in expected state")
)

// Store persists device code records. Every mutation is a conditional
// update guarded by the record's current status, so that handler instances
// across processes never successfully apply contradictory transitions to
// the same record. Implementations must not rely on in-process locks for
// that guarantee.
type Store interface {
	// Create inserts a new pending record. It fails with ErrUserCodeExists
	// when a pending or approved record already holds the normalized user
	// code, and with ErrDeviceCodeExists on a device code collision.
	Create(ctx context.Context, rec *Record) error

	// GetByDeviceCode returns the record for a device code, or (nil, nil)
	// when no such record exists.
	GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error)

	// GetByUserCode returns the record for a normalized user code, or
	// (nil, nil) when no such record exists.
	GetByUserCode(ctx context.Context, userCode string) (*Record, error)

	// Approve moves the record from pending to approved and stores the
	// approving subject. Returns ErrConflict if the record is no longer
	// pending.
	Approve(ctx context.Context, deviceCode, subject string, at time.Time) error

	// Deny moves the record from pending to denied. Returns ErrConflict if
	// the record is no longer pending.
	Deny(ctx context.Context, deviceCode, subject string, at time.Time) error

	// Transition moves the record from one status to another. Returns
	// ErrConflict if the record is not in the expected status.
	Transition(ctx context.Context, deviceCode string, from, to Status) error

	// RecordPoll stores the poll timestamp and the (possibly increased)
	// interval. Guarded on status=pending; returns ErrConflict otherwise.
	RecordPoll(ctx context.Context, deviceCode string, at time.Time, interval int) error

	// DeleteExpiredBefore removes records whose deadline passed before the
	// given instant and reports how many were removed. Used by the
	// out-of-band purge job; correctness never depends on it.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int, error)

	// CheckHealth verifies the storage backend is reachable.
	CheckHealth(ctx context.Context) error
}
