// Package device implements the device authorization endpoint per
// RFC 8628 section 3.2.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/common"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
)

// Authorizer issues device/user code pairs.
type Authorizer interface {
	RequestDeviceCode(ctx context.Context, clientID, scope string) (*devicegrant.Authorization, error)
}

// Handler processes device authorization requests.
type Handler struct {
	flow Authorizer
}

// New creates a device authorization handler.
func New(flow Authorizer) *Handler {
	return &Handler{flow: flow}
}

// ServeHTTP handles POST requests for a new device/user code pair.
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

	clientID := r.Form.Get("client_id")
	if clientID == "" {
		common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidRequest,
			"The client_id parameter is REQUIRED")
		return
	}

	auth, err := h.flow.RequestDeviceCode(r.Context(), clientID, r.Form.Get("scope"))
	if err != nil {
		switch {
		case errors.Is(err, devicegrant.ErrClientNotFound):
			common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidClient,
				"Unknown client")
		case errors.Is(err, devicegrant.ErrInvalidScope):
			common.WriteError(w, http.StatusBadRequest, devicegrant.ErrorCodeInvalidScope,
				"The requested scope is not allowed for this client")
		default:
			common.WriteError(w, http.StatusInternalServerError, devicegrant.ErrorCodeServerError,
				"Failed to generate device code")
		}
		return
	}

	common.SetJSONHeaders(w)
	if err := json.NewEncoder(w).Encode(auth); err != nil {
		common.WriteJSONError(w)
	}
}
