package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/chronus-storefront/pkg/redis"
	"github.com/angelmondragon/chronus-storefront/pkg/types"
)

// Keys under a session namespace.
const (
	KeyCart         = "cart"
	KeyPendingOrder = "pending_order"
	KeyAuth         = "auth"
)

// PendingOrder marks a checkout redirect awaiting reconciliation.
type PendingOrder struct {
	SessionID   string       `json:"session_id"`
	OrderID     string       `json:"order_id"`
	TotalAmount types.Amount `json:"total_amount"`
	ItemsCount  int          `json:"items_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Store persists session blobs in Redis.
type Store struct {
	kv   pkgredis.KV
	ttl  time.Duration
	logg *logger.Logger
}

// NewStore builds a store whose entries expire after ttl. Zero keeps them forever.
func NewStore(kv pkgredis.KV, ttl time.Duration, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{kv: kv, ttl: ttl, logg: logg}
}

// For scopes the store to one session.
func (s *Store) For(sessionID string) *Scoped {
	return &Scoped{store: s, sessionID: sessionID}
}

// Scoped is the persistence adapter of a single session.
type Scoped struct {
	store     *Store
	sessionID string
}

func (s *Scoped) SessionID() string { return s.sessionID }

func (s *Scoped) LoadCart(ctx context.Context) (cart.Snapshot, bool) {
	var snap cart.Snapshot
	ok := s.load(ctx, KeyCart, &snap)
	return snap, ok
}

func (s *Scoped) SaveCart(ctx context.Context, snap cart.Snapshot) error {
	return s.save(ctx, KeyCart, snap)
}

func (s *Scoped) DeleteCart(ctx context.Context) error {
	return s.delete(ctx, KeyCart)
}

func (s *Scoped) LoadPendingOrder(ctx context.Context) (PendingOrder, bool) {
	var po PendingOrder
	ok := s.load(ctx, KeyPendingOrder, &po)
	return po, ok
}

func (s *Scoped) SavePendingOrder(ctx context.Context, po PendingOrder) error {
	return s.save(ctx, KeyPendingOrder, po)
}

func (s *Scoped) DeletePendingOrder(ctx context.Context) error {
	return s.delete(ctx, KeyPendingOrder)
}

// PurgeStalePendingOrder drops a pending order older than maxAge and
// returns the one still in force, if any.
func (s *Scoped) PurgeStalePendingOrder(ctx context.Context, now time.Time, maxAge time.Duration) (PendingOrder, bool) {
	po, ok := s.LoadPendingOrder(ctx)
	if !ok {
		return PendingOrder{}, false
	}
	if maxAge > 0 && now.Sub(po.CreatedAt) > maxAge {
		if err := s.DeletePendingOrder(ctx); err != nil {
			s.warn(ctx, "session.pending_order.purge_failed", err)
		}
		s.store.logg.Info(s.store.logg.WithField(s.ctx(ctx), "order_id", po.OrderID), "session.pending_order.expired")
		return PendingOrder{}, false
	}
	return po, true
}

func (s *Scoped) LoadAuth(ctx context.Context) (auth.State, bool) {
	var st auth.State
	ok := s.load(ctx, KeyAuth, &st)
	return st, ok
}

func (s *Scoped) SaveAuth(ctx context.Context, st auth.State) error {
	return s.save(ctx, KeyAuth, st)
}

func (s *Scoped) DeleteAuth(ctx context.Context) error {
	return s.delete(ctx, KeyAuth)
}

func (s *Scoped) key(name string) string {
	return s.store.kv.SessionKey(s.sessionID, name)
}

// load reports false for a missing or unreadable entry. Malformed JSON is
// deleted so the next load starts clean.
func (s *Scoped) load(ctx context.Context, name string, dst any) bool {
	raw, err := s.store.kv.Get(ctx, s.key(name))
	if errors.Is(err, pkgredis.Nil) {
		return false
	}
	if err != nil {
		s.warn(ctx, "session.store.load_failed", err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.warn(s.store.logg.WithField(ctx, "key", name), "session.store.corrupt_entry", err)
		if delErr := s.store.kv.Del(ctx, s.key(name)); delErr != nil {
			s.warn(ctx, "session.store.corrupt_delete_failed", delErr)
		}
		return false
	}
	return true
}

func (s *Scoped) save(ctx context.Context, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.kv.Set(ctx, s.key(name), string(payload), s.store.ttl)
}

func (s *Scoped) delete(ctx context.Context, name string) error {
	return s.store.kv.Del(ctx, s.key(name))
}

func (s *Scoped) ctx(ctx context.Context) context.Context {
	return s.store.logg.WithSessionID(ctx, s.sessionID)
}

func (s *Scoped) warn(ctx context.Context, msg string, err error) {
	s.store.logg.Warn(s.store.logg.WithField(s.ctx(ctx), "error", err.Error()), msg)
}
