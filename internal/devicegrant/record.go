package devicegrant

import "time"

// Status is the lifecycle state of a device code record. Transitions are
// monotonic: pending may move to approved or denied, approved and denied
// move to consumed when observed by the token endpoint, and any state may
// move to expired once the record's deadline has passed. No transition
// ever reverts to an earlier state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
	StatusConsumed Status = "consumed"
)

// Record is the persisted state of one device authorization request.
type Record struct {
	// DeviceCode is the opaque high-entropy secret the device polls with.
	// Single use; never reissued.
	DeviceCode string `json:"device_code"`

	// UserCode is the short human-transcribable code in display format
	// (e.g. "WXYZ-2345"). Stores index it by its normalized form.
	UserCode string `json:"user_code"`

	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes,omitempty"`

	Status Status `json:"status"`

	// CreatedAt and ExpiresAt are fixed at creation and never extended.
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Interval is the minimum polling interval in seconds. It only ever
	// increases (slow_down backoff), never decreases.
	Interval int `json:"interval"`

	// LastPolledAt is nil until the device polls the token endpoint.
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`

	// ApprovedSubject identifies the end user who approved the request.
	ApprovedSubject string `json:"approved_subject,omitempty"`
}

// ExpiredAt reports whether the record's deadline has passed at the given
// instant. Expiry is enforced lazily on read; no reaper is required for
// correctness.
func (r *Record) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
