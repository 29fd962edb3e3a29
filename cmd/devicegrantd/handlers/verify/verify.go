// Package verify implements the end-user verification surface per
// RFC 8628 section 3.3: code entry, consent, and the approve/deny
// submission.
package verify

import (
	"context"
	"errors"
	"net/http"

	"github.com/oauthkit/devicegrant/internal/csrf"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
	"github.com/oauthkit/devicegrant/internal/templates"
)

// genericCodeError is shown for every lookup or transition failure.
// Not-found, expired, and already-handled codes must be
// indistinguishable here.
const genericCodeError = "Invalid or expired code. Please check the code on your device and try again."

// Workflow is the verification surface of the device flow engine.
type Workflow interface {
	LookupPendingByUserCode(ctx context.Context, userCode string) (*devicegrant.PendingAuthorization, error)
	Approve(ctx context.Context, userCode, subject string) error
	Deny(ctx context.Context, userCode, subject string) error
}

// Config contains handler configuration.
type Config struct {
	Flow      Workflow
	Templates *templates.Templates
	CSRF      *csrf.Manager

	// Subject extracts the authenticated end-user identity from the
	// request. End-user authentication itself is the fronting proxy's
	// responsibility; an empty subject yields 401.
	Subject func(r *http.Request) string
}

// Handler serves the verification pages.
type Handler struct {
	flow      Workflow
	templates *templates.Templates
	csrf      *csrf.Manager
	subject   func(r *http.Request) string
}

// New creates a verification handler.
func New(cfg Config) *Handler {
	return &Handler{
		flow:      cfg.Flow,
		templates: cfg.Templates,
		csrf:      cfg.CSRF,
		subject:   cfg.Subject,
	}
}

// HandleForm shows the code entry form, optionally pre-filled from the
// verification_uri_complete query parameter.
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	if h.subject(r) == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	token, err := h.csrf.GenerateToken(r.Context())
	if err != nil {
		h.renderError(w, http.StatusInternalServerError, "System Error",
			"Unable to process request. Please try again.")
		return
	}

	h.render(w, http.StatusOK, func(w http.ResponseWriter) error {
		return h.templates.RenderVerify(w, templates.VerifyData{
			PrefilledCode: r.URL.Query().Get("code"),
			CSRFToken:     token,
		})
	})
}

// HandleSubmit processes a verification form submission. With no action it
// looks the code up and renders the consent page; with action=approve or
// action=deny it applies the decision.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject := h.subject(r)
	if subject == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Invalid Request",
			"Unable to process form submission")
		return
	}

	if err := h.csrf.ValidateToken(ctx, r.PostFormValue("csrf_token")); err != nil {
		h.renderError(w, http.StatusBadRequest, "Invalid Request",
			"Please try submitting the form again.")
		return
	}

	code := r.PostFormValue("code")
	if code == "" {
		h.renderError(w, http.StatusBadRequest, "Invalid Request",
			"No device code was entered")
		return
	}

	switch r.PostFormValue("action") {
	case "":
		h.showConsent(w, r, code)
	case "approve":
		h.decide(w, r, code, subject, h.flow.Approve,
			"You have approved the device. You may now close this window.")
	case "deny":
		h.decide(w, r, code, subject, h.flow.Deny,
			"You have denied the request. You may now close this window.")
	default:
		h.renderError(w, http.StatusBadRequest, "Invalid Request",
			"Unknown action")
	}
}

// showConsent looks up the pending authorization and renders the consent
// page with a fresh CSRF token for the decision submission.
func (h *Handler) showConsent(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()

	pending, err := h.flow.LookupPendingByUserCode(ctx, code)
	if err != nil {
		h.renderCodeError(w, r)
		return
	}

	token, err := h.csrf.GenerateToken(ctx)
	if err != nil {
		h.renderError(w, http.StatusInternalServerError, "System Error",
			"Unable to process request. Please try again.")
		return
	}

	clientName := pending.Client.Name
	if clientName == "" {
		clientName = pending.Client.ID
	}

	h.render(w, http.StatusOK, func(w http.ResponseWriter) error {
		return h.templates.RenderConsent(w, templates.ConsentData{
			UserCode:   pending.UserCode,
			ClientName: clientName,
			Scopes:     pending.Scopes,
			CSRFToken:  token,
		})
	})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, code, subject string,
	apply func(ctx context.Context, userCode, subject string) error, message string) {

	if err := apply(r.Context(), code, subject); err != nil {
		if errors.Is(err, devicegrant.ErrCodeNotValid) {
			h.renderCodeError(w, r)
			return
		}
		h.renderError(w, http.StatusInternalServerError, "System Error",
			"Unable to process request. Please try again.")
		return
	}

	h.render(w, http.StatusOK, func(w http.ResponseWriter) error {
		return h.templates.RenderComplete(w, templates.CompleteData{Message: message})
	})
}

// renderCodeError re-shows the entry form with the generic code error and
// a fresh CSRF token.
func (h *Handler) renderCodeError(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.GenerateToken(r.Context())
	if err != nil {
		h.renderError(w, http.StatusInternalServerError, "System Error",
			"Unable to process request. Please try again.")
		return
	}

	h.render(w, http.StatusBadRequest, func(w http.ResponseWriter) error {
		return h.templates.RenderVerify(w, templates.VerifyData{
			Error:     genericCodeError,
			CSRFToken: token,
		})
	})
}

func (h *Handler) renderError(w http.ResponseWriter, status int, title, message string) {
	w.WriteHeader(status)
	if err := h.templates.RenderError(w, templates.ErrorData{Title: title, Message: message}); err != nil {
		http.Error(w, "error rendering page", http.StatusInternalServerError)
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, fn func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := fn(w); err != nil {
		http.Error(w, "error rendering page", http.StatusInternalServerError)
	}
}
