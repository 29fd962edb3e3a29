// Package tokens implements the token issuer invoked once a device code
// has been approved and consumed.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/oauthkit/devicegrant/internal/devicegrant"
)

// Config holds issuer settings.
type Config struct {
	// Issuer is the iss claim, normally the server's base URL.
	Issuer string

	// Secret signs access tokens (HMAC-SHA256).
	Secret []byte

	// AccessTTL bounds access token validity.
	AccessTTL time.Duration

	// RefreshTTL is advisory; refresh tokens are opaque and their
	// lifetime is enforced wherever they are redeemed.
	RefreshTTL time.Duration
}

// JWTIssuer mints signed JWT access tokens plus opaque refresh tokens.
type JWTIssuer struct {
	cfg Config
	now func() time.Time
}

// NewJWTIssuer creates an issuer. The time source is overridable for tests
// via WithTimeSource.
func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	return &JWTIssuer{cfg: cfg, now: time.Now}, nil
}

// WithTimeSource overrides the issuer's clock.
func (i *JWTIssuer) WithTimeSource(now func() time.Time) *JWTIssuer {
	i.now = now
	return i
}

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Mint issues an access/refresh token pair for an approved device
// authorization.
func (i *JWTIssuer) Mint(ctx context.Context, client devicegrant.Client, subject string, scopes []string) (*devicegrant.TokenResponse, error) {
	now := i.now()
	scope := strings.Join(scopes, " ")

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{client.ID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
			ID:        ulid.Make().String(),
		},
		Scope: scope,
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := opaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	return &devicegrant.TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(i.cfg.AccessTTL.Seconds()),
		RefreshToken: refresh,
		Scope:        scope,
	}, nil
}

func opaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
