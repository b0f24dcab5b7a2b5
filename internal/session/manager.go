package session

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"github.com/google/uuid"
)

// Revalidator confirms a restored login against the identity service.
type Revalidator interface {
	Revalidate(ctx context.Context, st *auth.State, store auth.Persister) bool
}

// Warmer preloads the catalog for a new session.
type Warmer interface {
	List(ctx context.Context) ([]cart.Product, error)
}

// Option configures the manager.
type Option func(*Manager)

func WithRevalidator(r Revalidator) Option { return func(m *Manager) { m.revalidator = r } }

func WithWarmer(w Warmer) Option { return func(m *Manager) { m.warmer = w } }

func WithMetrics(s *metrics.Storefront) Option { return func(m *Manager) { m.metrics = s } }

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logg = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

type entry struct {
	sess     *Session
	lastSeen time.Time
	refs     int
}

// Manager keeps hydrated sessions in memory and serializes work per session.
type Manager struct {
	store       *Store
	cfg         config.SessionConfig
	revalidator Revalidator
	warmer      Warmer
	metrics     *metrics.Storefront
	logg        *logger.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

func NewManager(store *Store, cfg config.SessionConfig, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		cfg:      cfg,
		logg:     logger.Nop(),
		now:      time.Now,
		sessions: make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Acquire returns the session locked for the caller. The release func
// unlocks it and must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, id uuid.UUID) (*Session, func()) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{sess: newSession(id, m.store.For(id.String()))}
		m.sessions[id] = e
	}
	e.refs++
	e.lastSeen = m.now()
	active := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetActiveSessions(active)

	sess := e.sess
	sess.mu.Lock()
	if !sess.hydrated {
		m.hydrate(m.logg.WithSessionID(ctx, id.String()), sess)
		sess.hydrated = true
	}

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			sess.mu.Unlock()
			m.mu.Lock()
			e.refs--
			e.lastSeen = m.now()
			m.mu.Unlock()
		})
	}
}

func (m *Manager) hydrate(ctx context.Context, sess *Session) {
	store := sess.store

	if st, ok := store.LoadAuth(ctx); ok {
		*sess.Auth = st
		if m.revalidator != nil && st.Token != "" {
			m.revalidator.Revalidate(ctx, sess.Auth, store)
		}
	}

	if snap, ok := store.LoadCart(ctx); ok {
		sess.Cart = cart.Restore(snap, store, sess, m.logg)
	} else {
		sess.Cart = cart.New(store, sess, m.logg)
	}

	store.PurgeStalePendingOrder(ctx, m.now(), m.cfg.PendingOrderTTL)

	if m.warmer != nil {
		done := sess.TrackCatalog()
		if _, err := m.warmer.List(ctx); err != nil {
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.catalog_warmup.failed")
		}
		done()
	}
	m.logg.Debug(ctx, "session.hydrated")
}

// Sweep evicts sessions idle longer than the configured window and not in
// use. Their state stays in Redis and is hydrated again on the next request.
func (m *Manager) Sweep() int {
	if m.cfg.IdleEviction <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleEviction)

	m.mu.Lock()
	evicted := 0
	for id, e := range m.sessions {
		if e.refs == 0 && e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(active)
	return evicted
}

// Len is the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps on the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logg.Info(m.logg.WithField(ctx, "evicted", n), "session.sweep")
			}
		}
	}
}
