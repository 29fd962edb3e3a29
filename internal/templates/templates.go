// Package templates renders the HTML pages of the verification surface.
package templates

import (
	"embed"
	"html/template"
	"io"
)

//go:embed html/*.html
var content embed.FS

// Templates manages the verification surface pages.
type Templates struct {
	verify   *template.Template
	consent  *template.Template
	complete *template.Template
	error    *template.Template
}

// Load parses all embedded templates.
func Load() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.verify, err = template.ParseFS(content, "html/verify.html", "html/layout.html"); err != nil {
		return nil, err
	}
	if t.consent, err = template.ParseFS(content, "html/consent.html", "html/layout.html"); err != nil {
		return nil, err
	}
	if t.complete, err = template.ParseFS(content, "html/complete.html", "html/layout.html"); err != nil {
		return nil, err
	}
	if t.error, err = template.ParseFS(content, "html/error.html", "html/layout.html"); err != nil {
		return nil, err
	}

	return t, nil
}

// VerifyData holds data for the code entry page.
type VerifyData struct {
	PrefilledCode string
	CSRFToken     string
	Error         string
}

// RenderVerify renders the code entry page.
func (t *Templates) RenderVerify(w io.Writer, data VerifyData) error {
	return t.verify.ExecuteTemplate(w, "layout", data)
}

// ConsentData holds data for the consent page: which client is asking and
// for what scopes.
type ConsentData struct {
	UserCode   string
	ClientName string
	Scopes     []string
	CSRFToken  string
}

// RenderConsent renders the approve/deny consent page.
func (t *Templates) RenderConsent(w io.Writer, data ConsentData) error {
	return t.consent.ExecuteTemplate(w, "layout", data)
}

// CompleteData holds data for the completion page.
type CompleteData struct {
	Message string
}

// RenderComplete renders the completion page.
func (t *Templates) RenderComplete(w io.Writer, data CompleteData) error {
	return t.complete.ExecuteTemplate(w, "layout", data)
}

// ErrorData holds data for the error page.
type ErrorData struct {
	Title   string
	Message string
}

// RenderError renders the error page.
func (t *Templates) RenderError(w io.Writer, data ErrorData) error {
	return t.error.ExecuteTemplate(w, "layout", data)
}
