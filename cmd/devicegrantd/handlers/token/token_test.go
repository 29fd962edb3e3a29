package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/common"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
)

type fakePoller struct {
	resp *devicegrant.TokenResponse
	err  error

	gotDeviceCode string
}

func (f *fakePoller) CheckDeviceCode(ctx context.Context, deviceCode string) (*devicegrant.TokenResponse, error) {
	f.gotDeviceCode = deviceCode
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func pollRequest(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func grantForm(deviceCode string) url.Values {
	return url.Values{
		"grant_type":  {DeviceCodeGrantType},
		"device_code": {deviceCode},
	}
}

func TestHandlerSuccess(t *testing.T) {
	resp := &devicegrant.TokenResponse{
		AccessToken:  "access",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "refresh",
		Scope:        "read write",
	}
	flow := &fakePoller{resp: resp}
	h := New(flow)

	w := pollRequest(h, grantForm("devcode"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if flow.gotDeviceCode != "devcode" {
		t.Errorf("device code = %q, want devcode", flow.gotDeviceCode)
	}

	var body devicegrant.TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if diff := cmp.Diff(*resp, body); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerRequestValidation(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		form     url.Values
		wantCode string
	}{
		{
			name:     "rejects GET",
			method:   http.MethodGet,
			wantCode: "invalid_request",
		},
		{
			name:     "missing grant_type",
			method:   http.MethodPost,
			form:     url.Values{"device_code": {"devcode"}},
			wantCode: "invalid_request",
		},
		{
			name:     "wrong grant_type",
			method:   http.MethodPost,
			form:     url.Values{"grant_type": {"authorization_code"}, "device_code": {"devcode"}},
			wantCode: "unsupported_grant_type",
		},
		{
			name:     "missing device_code",
			method:   http.MethodPost,
			form:     url.Values{"grant_type": {DeviceCodeGrantType}},
			wantCode: "invalid_request",
		},
		{
			name:     "duplicate device_code",
			method:   http.MethodPost,
			form:     url.Values{"grant_type": {DeviceCodeGrantType}, "device_code": {"a", "b"}},
			wantCode: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakePoller{})

			req := httptest.NewRequest(tt.method, "/oauth/token",
				strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var body common.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", body.Error, tt.wantCode)
			}
		})
	}
}

func TestHandlerGrantErrors(t *testing.T) {
	tests := []struct {
		name       string
		flowErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "authorization pending",
			flowErr:    devicegrant.ErrAuthorizationPending,
			wantStatus: http.StatusBadRequest,
			wantCode:   "authorization_pending",
		},
		{
			name:       "slow down",
			flowErr:    devicegrant.ErrSlowDown,
			wantStatus: http.StatusBadRequest,
			wantCode:   "slow_down",
		},
		{
			name:       "access denied",
			flowErr:    devicegrant.ErrAccessDenied,
			wantStatus: http.StatusBadRequest,
			wantCode:   "access_denied",
		},
		{
			name:       "expired token",
			flowErr:    devicegrant.ErrExpiredToken,
			wantStatus: http.StatusBadRequest,
			wantCode:   "expired_token",
		},
		{
			name:       "invalid grant",
			flowErr:    devicegrant.ErrInvalidGrant,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_grant",
		},
		{
			name:       "unexpected failure",
			flowErr:    context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakePoller{err: tt.flowErr})

			w := pollRequest(h, grantForm("devcode"))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body common.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", body.Error, tt.wantCode)
			}
			if body.ErrorDescription == "" {
				t.Error("error_description must not be empty")
			}
		})
	}
}
