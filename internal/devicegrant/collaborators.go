package devicegrant

import "context"

// Client is a registered OAuth client as resolved by the client registry.
type Client struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	AllowedScopes []string `json:"allowed_scopes"`
}

// ClientRegistry resolves a client_id to its registration. A miss is
// reported as ErrClientNotFound.
type ClientRegistry interface {
	Resolve(ctx context.Context, clientID string) (Client, error)
}

// ScopeValidator validates requested scopes against a client's allowed
// scopes and returns the approved set, preserving request order.
type ScopeValidator interface {
	Validate(requested, allowed []string) ([]string, error)
}

// TokenResponse is the OAuth2 token response per RFC 8628 section 3.5.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenIssuer mints tokens once a device code has been approved and
// consumed. The engine guarantees Mint is reached at most once per device
// code.
type TokenIssuer interface {
	Mint(ctx context.Context, client Client, subject string, scopes []string) (*TokenResponse, error)
}
