package devicegrant

import "errors"

// OAuth error codes returned by the device authorization and token
// endpoints, per RFC 8628 section 3.5 and RFC 6749 section 5.2.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrant     = "unsupported_grant_type"
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeServerError          = "server_error"
)

// Errors surfaced at issuance time.
var (
	// ErrClientNotFound indicates the client_id did not resolve in the
	// client registry.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidScope indicates a requested scope is outside the client's
	// allowed scopes.
	ErrInvalidScope = errors.New("invalid scope")
)

// ErrCodeNotValid is the single generic verification error. Not-found,
// expired, and already-handled codes are deliberately indistinguishable to
// the caller so the user code space cannot be enumerated.
var ErrCodeNotValid = errors.New("invalid or expired code")

// Errors surfaced at polling time, matching the RFC 8628 vocabulary.
var (
	// ErrAuthorizationPending indicates the user has not yet approved or
	// denied the request.
	ErrAuthorizationPending = errors.New("authorization pending")

	// ErrSlowDown indicates the device polled before its interval elapsed
	// and must increase its own polling interval.
	ErrSlowDown = errors.New("polling too frequently")

	// ErrAccessDenied indicates the user denied the request.
	ErrAccessDenied = errors.New("access denied")

	// ErrExpiredToken indicates the device code's deadline has passed.
	ErrExpiredToken = errors.New("device code expired")

	// ErrInvalidGrant indicates the device code is unknown, malformed, or
	// already consumed.
	ErrInvalidGrant = errors.New("invalid device code")
)

// GrantErrorCode maps a polling grant error to its OAuth error code.
// Unknown errors map to server_error.
func GrantErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthorizationPending):
		return ErrorCodeAuthorizationPending
	case errors.Is(err, ErrSlowDown):
		return ErrorCodeSlowDown
	case errors.Is(err, ErrAccessDenied):
		return ErrorCodeAccessDenied
	case errors.Is(err, ErrExpiredToken):
		return ErrorCodeExpiredToken
	case errors.Is(err, ErrInvalidGrant):
		return ErrorCodeInvalidGrant
	default:
		return ErrorCodeServerError
	}
}
