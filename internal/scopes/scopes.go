// Package scopes validates requested OAuth scopes against a client's
// allowed scopes.
package scopes

import "fmt"

// Validator checks requested scopes against an allow list.
type Validator struct{}

// New creates a scope validator.
func New() *Validator { return &Validator{} }

// Validate returns the approved scope set: every requested scope must be
// in the client's allowed scopes. Request order is preserved and
// duplicates are dropped. An empty request yields an empty approved set.
func (v *Validator) Validate(requested, allowed []string) ([]string, error) {
	permitted := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		permitted[s] = true
	}

	var approved []string
	seen := make(map[string]bool, len(requested))
	for _, s := range requested {
		if seen[s] {
			continue
		}
		seen[s] = true
		if !permitted[s] {
			return nil, fmt.Errorf("scope %q is not allowed for this client", s)
		}
		approved = append(approved, s)
	}
	return approved, nil
}
