package wallet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"opf-quickbuy/internal/model"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 15 * time.Minute

// Session is the provider-neutral view of a wallet session held by the
// registry.
type Session interface {
	ID() string
	Key() string
	Provider() model.Provider
	LastActive() time.Time
	Snapshot() Snapshot
	Cancel(ctx context.Context) Snapshot
}

var (
	_ Session = (*ApplePaySession)(nil)
	_ Session = (*GooglePaySession)(nil)
)

// Key identifies a checkout context: provider, cart code and, when set, the
// cart GUID.
func Key(provider model.Provider, cart *model.Cart) string {
	key := string(provider) + ":" + cart.Code
	if cart.GUID != "" {
		key += ":" + cart.GUID
	}
	return key
}

// Registry holds one session per checkout context. Sessions idle for longer
// than the TTL are cancelled and dropped, which releases their guard.
type Registry struct {
	mu     sync.Mutex
	byID   map[string]Session
	byKey  map[string]Session
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates a registry. A non-positive ttl uses DefaultSessionTTL.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:   make(map[string]Session),
		byKey:  make(map[string]Session),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Acquire returns the session for key, creating it with create when there
// is none or the existing one expired.
func (r *Registry) Acquire(ctx context.Context, key string, create func(id string) Session) Session {
	r.mu.Lock()
	s, ok := r.byKey[key]
	if ok && !r.expired(s) {
		r.mu.Unlock()
		return s
	}
	if ok {
		r.removeLocked(s)
	}
	fresh := create(uuid.NewString())
	r.byID[fresh.ID()] = fresh
	r.byKey[key] = fresh
	r.mu.Unlock()

	if ok {
		s.Cancel(ctx)
	}
	return fresh
}

// Get returns the session with id. Expired sessions are cancelled and
// reported as missing.
func (r *Registry) Get(ctx context.Context, id string) (Session, bool) {
	r.mu.Lock()
	s, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if !r.expired(s) {
		r.mu.Unlock()
		return s, true
	}
	r.removeLocked(s)
	r.mu.Unlock()

	s.Cancel(ctx)
	return nil, false
}

// Len returns the number of held sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Sweep cancels and drops every expired session and returns how many it
// dropped.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	var expired []Session
	for _, s := range r.byID {
		if r.expired(s) {
			expired = append(expired, s)
			r.removeLocked(s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Cancel(ctx)
		r.logger.InfoContext(ctx, "wallet session expired",
			slog.String("session_id", s.ID()),
			slog.String("provider", string(s.Provider())),
		)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) expired(s Session) bool {
	return r.now().Sub(s.LastActive()) > r.ttl
}

func (r *Registry) removeLocked(s Session) {
	delete(r.byID, s.ID())
	if r.byKey[s.Key()] == s {
		delete(r.byKey, s.Key())
	}
}
