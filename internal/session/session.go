package session

import (
	"sync"
	"sync/atomic"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/google/uuid"
)

// Loading mirrors the in-flight remote calls of a session. Flags are raised
// under the session lock, so only code holding the session observes them set.
type Loading struct {
	Catalog  bool `json:"catalog"`
	Shipping bool `json:"shipping"`
	Checkout bool `json:"checkout"`
	Address  bool `json:"address"`
}

// Session is one shopper's hydrated state. Callers obtain it from
// Manager.Acquire and must not keep it past the release func.
type Session struct {
	ID    uuid.UUID
	Cart  *cart.Cart
	Auth  *auth.State
	store *Scoped

	mu       sync.Mutex
	hydrated bool

	catalog  atomic.Bool
	shipping atomic.Bool
	checkout atomic.Bool
	address  atomic.Bool
}

func newSession(id uuid.UUID, store *Scoped) *Session {
	return &Session{ID: id, Auth: &auth.State{}, store: store}
}

// Store is the session's persistence adapter.
func (s *Session) Store() *Scoped { return s.store }

// IsAuthenticated lets the cart ask about the current login.
func (s *Session) IsAuthenticated() bool { return s.Auth.IsAuthenticated() }

func (s *Session) Loading() Loading {
	return Loading{
		Catalog:  s.catalog.Load(),
		Shipping: s.shipping.Load(),
		Checkout: s.checkout.Load(),
		Address:  s.address.Load(),
	}
}

// TrackShipping raises the shipping flag until the returned func runs.
func (s *Session) TrackShipping() func() { return track(&s.shipping) }

func (s *Session) TrackCheckout() func() { return track(&s.checkout) }

func (s *Session) TrackCatalog() func() { return track(&s.catalog) }

func (s *Session) TrackAddress() func() { return track(&s.address) }

func track(flag *atomic.Bool) func() {
	flag.Store(true)
	return func() { flag.Store(false) }
}
