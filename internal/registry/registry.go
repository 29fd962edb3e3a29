// Package registry provides the client registry consumed by the device
// flow engine. Clients are registered statically from a JSON file; dynamic
// client registration is out of scope.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/oauthkit/devicegrant/internal/devicegrant"
)

// Registry resolves client_ids against a fixed set of registered clients.
type Registry struct {
	clients map[string]devicegrant.Client
}

// New creates a registry from a client list.
func New(clients []devicegrant.Client) *Registry {
	m := make(map[string]devicegrant.Client, len(clients))
	for _, c := range clients {
		m[c.ID] = c
	}
	return &Registry{clients: m}
}

// LoadFile reads a JSON array of client registrations.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client registry: %w", err)
	}

	var clients []devicegrant.Client
	if err := json.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("parsing client registry: %w", err)
	}
	for _, c := range clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client registry entry missing id")
		}
	}

	return New(clients), nil
}

// Resolve returns the registration for a client_id, or
// devicegrant.ErrClientNotFound.
func (r *Registry) Resolve(ctx context.Context, clientID string) (devicegrant.Client, error) {
	c, ok := r.clients[clientID]
	if !ok {
		return devicegrant.Client{}, devicegrant.ErrClientNotFound
	}
	return c, nil
}
