package devicegrant

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// staticRegistry resolves clients from a fixed map.
type staticRegistry map[string]Client

func (r staticRegistry) Resolve(ctx context.Context, clientID string) (Client, error) {
	c, ok := r[clientID]
	if !ok {
		return Client{}, ErrClientNotFound
	}
	return c, nil
}

// strictScopes rejects anything outside the allow list.
type strictScopes struct{}

func (strictScopes) Validate(requested, allowed []string) ([]string, error) {
	permitted := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		permitted[s] = true
	}
	var approved []string
	for _, s := range requested {
		if !permitted[s] {
			return nil, ErrInvalidScope
		}
		approved = append(approved, s)
	}
	return approved, nil
}

// countingIssuer records every mint.
type countingIssuer struct {
	mu     sync.Mutex
	minted []mintCall
}

type mintCall struct {
	client  Client
	subject string
	scopes  []string
}

func (i *countingIssuer) Mint(ctx context.Context, client Client, subject string, scopes []string) (*TokenResponse, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.minted = append(i.minted, mintCall{client: client, subject: subject, scopes: scopes})
	return &TokenResponse{
		AccessToken: "access-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func (i *countingIssuer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.minted)
}

var testClients = staticRegistry{
	"c1": {ID: "c1", Name: "Test CLI", AllowedScopes: []string{"read", "write"}},
}

// newTestFlow wires a flow over the given store with a fake clock and
// counting issuer.
func newTestFlow(store Store, opts ...Option) (*Flow, *fakeClock, *countingIssuer) {
	clock := newFakeClock()
	issuer := &countingIssuer{}
	all := append([]Option{WithClock(clock)}, opts...)
	flow := NewFlow(store, testClients, strictScopes{}, issuer, "https://auth.example.com", all...)
	return flow, clock, issuer
}
