package devicegrant

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Policy defaults. The backoff step and interval cap are deliberate policy
// choices, not RFC-mandated values: a fixed +5s increment capped at 60s
// keeps misbehaving clients polite without stranding well-behaved ones.
const (
	DefaultExpiry       = 10 * time.Minute
	DefaultPollInterval = 5 * time.Second
	DefaultBackoffStep  = 5 * time.Second
	DefaultMaxInterval  = 60 * time.Second

	// maxCodeAttempts bounds user code generation retries on collision.
	// Exhausting it means the live code space is saturated, which is an
	// operational problem to alarm on, never a case for a weaker code.
	maxCodeAttempts = 5
)

// Flow manages the device authorization grant per RFC 8628. It holds no
// in-process session state beyond what the Store persists, so any number
// of Flow instances across processes may act on the same records.
type Flow struct {
	store   Store
	clients ClientRegistry
	scopes  ScopeValidator
	issuer  TokenIssuer

	baseURL string

	expiry       time.Duration
	pollInterval time.Duration
	backoffStep  time.Duration
	maxInterval  time.Duration

	clock  Clock
	logger zerolog.Logger
}

// Option configures a Flow at construction time.
type Option func(*Flow)

// WithExpiry sets how long issued code pairs remain valid.
func WithExpiry(d time.Duration) Option {
	return func(f *Flow) { f.expiry = d }
}

// WithPollInterval sets the initial minimum interval between polls.
func WithPollInterval(d time.Duration) Option {
	return func(f *Flow) { f.pollInterval = d }
}

// WithBackoff sets the slow_down interval increment and its cap.
func WithBackoff(step, max time.Duration) Option {
	return func(f *Flow) {
		f.backoffStep = step
		f.maxInterval = max
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(f *Flow) { f.clock = c }
}

// WithLogger sets the structured logger used for operational alarms.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// NewFlow creates a device flow engine. The base URL is where end users
// verify codes; collaborators supply client resolution, scope validation,
// and token minting.
func NewFlow(store Store, clients ClientRegistry, scopes ScopeValidator, issuer TokenIssuer, baseURL string, opts ...Option) *Flow {
	f := &Flow{
		store:        store,
		clients:      clients,
		scopes:       scopes,
		issuer:       issuer,
		baseURL:      baseURL,
		expiry:       DefaultExpiry,
		pollInterval: DefaultPollInterval,
		backoffStep:  DefaultBackoffStep,
		maxInterval:  DefaultMaxInterval,
		clock:        systemClock{},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CheckHealth verifies the engine's storage backend is healthy.
func (f *Flow) CheckHealth(ctx context.Context) error {
	return f.store.CheckHealth(ctx)
}
