package device

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

type fakeAuthorizer struct {
	auth *devicegrant.Authorization
	err  error

	gotClientID string
	gotScope    string
}

func (f *fakeAuthorizer) RequestDeviceCode(ctx context.Context, clientID, scope string) (*devicegrant.Authorization, error) {
	f.gotClientID = clientID
	f.gotScope = scope
	if f.err != nil {
		return nil, f.err
	}
	return f.auth, nil
}

func postForm(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/device/code",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var body common.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestHandlerSuccess(t *testing.T) {
	auth := &devicegrant.Authorization{
		DeviceCode:              "devcode",
		UserCode:                "BCDF-GHJK",
		VerificationURI:         "https://auth.example.com/device",
		VerificationURIComplete: "https://auth.example.com/device?code=BCDF-GHJK",
		ExpiresIn:               600,
		Interval:                5,
	}
	flow := &fakeAuthorizer{auth: auth}
	h := New(flow)

	w := postForm(h, url.Values{"client_id": {"c1"}, "scope": {"read write"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if flow.gotClientID != "c1" || flow.gotScope != "read write" {
		t.Errorf("flow called with (%q, %q), want (c1, read write)",
			flow.gotClientID, flow.gotScope)
	}

	var body devicegrant.Authorization
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if diff := cmp.Diff(*auth, body); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		form       url.Values
		flowErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "rejects GET",
			method:     http.MethodGet,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing client_id",
			method:     http.MethodPost,
			form:       url.Values{"scope": {"read"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "duplicate parameter",
			method:     http.MethodPost,
			form:       url.Values{"client_id": {"c1", "c2"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unknown client",
			method:     http.MethodPost,
			form:       url.Values{"client_id": {"nope"}},
			flowErr:    devicegrant.ErrClientNotFound,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_client",
		},
		{
			name:       "scope not allowed",
			method:     http.MethodPost,
			form:       url.Values{"client_id": {"c1"}, "scope": {"admin"}},
			flowErr:    devicegrant.ErrInvalidScope,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_scope",
		},
		{
			name:       "storage failure",
			method:     http.MethodPost,
			form:       url.Values{"client_id": {"c1"}},
			flowErr:    context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeAuthorizer{err: tt.flowErr})

			req := httptest.NewRequest(tt.method, "/oauth/device/code",
				strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", body.Error, tt.wantCode)
			}
		})
	}
}
