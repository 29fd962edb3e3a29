// Package token implements the token endpoint's device code grant per
// RFC 8628 section 3.4.
package token

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/common"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
)

// DeviceCodeGrantType is the grant_type value for the device code grant.
const DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// Poller processes one poll for a device code.
type Poller interface {
	CheckDeviceCode(ctx context.Context, deviceCode string) (*devicegrant.TokenResponse, error)
}

// Handler processes device access token requests.
type Handler struct {
	flow Poller
}

// New creates a token endpoint handler.
func New(flow Poller) *Handler {
	return &Handler{flow: flow}
}

// ServeHTTP handles token polling requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidRequest,
			"POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidRequest,
			"Invalid request format")
		return
	}

	if !common.RejectDuplicateParams(w, r.Form, devicegrant.ErrorCodeInvalidRequest) {
		return
	}

	grantType := r.Form.Get("grant_type")
	if grantType == "" {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidRequest,
			"The grant_type parameter is REQUIRED")
		return
	}
	if grantType != DeviceCodeGrantType {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeUnsupportedGrant,
			"Only "+DeviceCodeGrantType+" is supported")
		return
	}

	deviceCode := r.Form.Get("device_code")
	if deviceCode == "" {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidRequest,
			"The device_code parameter is REQUIRED")
		return
	}

	tokenResponse, err := h.flow.CheckDeviceCode(r.Context(), deviceCode)
	if err != nil {
		code := devicegrant.GrantErrorCode(err)
		status := http.StatusBadRequest
		description := grantErrorDescription(code)
		if code == devicegrant.ErrorCodeServerError {
			status = http.StatusInternalServerError
		}
		common.WriteError(w, status, code, description)
		return
	}

	common.SetJSONHeaders(w)
	if err := json.NewEncoder(w).Encode(tokenResponse); err != nil {
		common.WriteJSONError(w)
	}
}

func grantErrorDescription(code string) string {
	switch code {
	case devicegrant.ErrorCodeAuthorizationPending:
		return "The authorization request is still pending"
	case devicegrant.ErrorCodeSlowDown:
		return "Polling interval must be increased by 5 seconds"
	case devicegrant.ErrorCodeAccessDenied:
		return "The end user denied the authorization request"
	case devicegrant.ErrorCodeExpiredToken:
		return "The device_code has expired"
	case devicegrant.ErrorCodeInvalidGrant:
		return "The device_code is invalid"
	default:
		return "An unexpected error occurred processing the request"
	}
}
