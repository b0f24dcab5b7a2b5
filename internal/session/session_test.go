package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	pkgredis "github.com/angelmondragon/chronus-storefront/pkg/redis"
	"github.com/angelmondragon/chronus-storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) SessionKey(sessionID, name string) string {
	return "chronus:session:" + sessionID + ":" + name
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type stubRevalidator struct{ calls int }

func (s *stubRevalidator) Revalidate(_ context.Context, st *auth.State, _ auth.Persister) bool {
	s.calls++
	return st.IsAuthenticated()
}

var testCfg = config.SessionConfig{TTL: 24 * time.Hour, IdleEviction: 30 * time.Minute, PendingOrderTTL: time.Hour}

func loggedIn() auth.State {
	return auth.State{Token: "tok", User: &identity.User{ID: 9, Active: true}}
}

func TestCartRoundTripAcrossManagers(t *testing.T) {
	kv := newMemoryKV()
	id := uuid.New()
	ctx := context.Background()
	jersey := cart.Product{ID: 1, Name: "Camisa 2025", Type: cart.ApparelType, Price: decimal.RequireFromString("199.90")}
	addr := cart.Address{CEP: "50000-000", Street: "Rua A", Number: "1", Neighborhood: "Centro", City: "Recife", State: "PE"}

	first := NewManager(NewStore(kv, testCfg.TTL, nil), testCfg)
	sess, release := first.Acquire(ctx, id)
	*sess.Auth = loggedIn()
	if err := sess.Cart.AddItem(ctx, jersey, 2, "G"); err != nil {
		t.Fatalf("add: %v", err)
	}
	sess.Cart.SetAddress(ctx, addr)
	sess.Cart.SetDonation(ctx, true)
	sess.Cart.SetShippingOptions(ctx, []cart.ShippingOption{{ID: "express", Price: decimal.RequireFromString("35")}}, "express")
	want := sess.Cart.Snapshot()
	release()

	if kv.ttls[kv.SessionKey(id.String(), KeyCart)] != testCfg.TTL {
		t.Fatalf("cart blob must carry the session ttl")
	}

	second := NewManager(NewStore(kv, testCfg.TTL, nil), testCfg)
	sess, release = second.Acquire(ctx, id)
	defer release()
	got := sess.Cart.Snapshot()

	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || got.Items[0].Size != "G" || !got.Items[0].Product.Price.Equal(jersey.Price) {
		t.Fatalf("items not restored: %+v", got.Items)
	}
	if got.ShippingAddress != want.ShippingAddress || got.DonationChecked != want.DonationChecked ||
		got.MembershipChecked != want.MembershipChecked || got.SelectedShipping != "express" {
		t.Fatalf("state not restored: got %+v want %+v", got, want)
	}
}

func TestCorruptCartIsDiscarded(t *testing.T) {
	kv := newMemoryKV()
	id := uuid.New()
	key := kv.SessionKey(id.String(), KeyCart)
	_ = kv.Set(context.Background(), key, `{"items": "not-a-list"`, 0)

	m := NewManager(NewStore(kv, 0, nil), testCfg)
	sess, release := m.Acquire(context.Background(), id)
	defer release()

	if !sess.Cart.IsEmpty() || sess.Cart.SelectedShipping() != cart.DefaultShippingID {
		t.Fatalf("expected a default cart, got %+v", sess.Cart.State())
	}
	if kv.has(key) {
		t.Fatal("corrupt blob must be deleted")
	}
}

func TestHydrationPurgesStalePendingOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, tc := range map[string]struct {
		age  time.Duration
		kept bool
	}{
		"fresh": {age: 30 * time.Minute, kept: true},
		"stale": {age: 2 * time.Hour, kept: false},
	} {
		t.Run(name, func(t *testing.T) {
			kv := newMemoryKV()
			id := uuid.New()
			store := NewStore(kv, 0, nil)
			po := PendingOrder{
				SessionID:   "cs_1",
				OrderID:     "ord_1",
				TotalAmount: types.NewAmount(decimal.RequireFromString("235")),
				ItemsCount:  2,
				CreatedAt:   now.Add(-tc.age),
			}
			if err := store.For(id.String()).SavePendingOrder(context.Background(), po); err != nil {
				t.Fatalf("save: %v", err)
			}

			m := NewManager(store, testCfg, WithClock(func() time.Time { return now }))
			_, release := m.Acquire(context.Background(), id)
			release()

			if got := kv.has(kv.SessionKey(id.String(), KeyPendingOrder)); got != tc.kept {
				t.Fatalf("pending order kept=%v, want %v", got, tc.kept)
			}
		})
	}
}

func TestHydrationRestoresAndRevalidatesLogin(t *testing.T) {
	kv := newMemoryKV()
	id := uuid.New()
	store := NewStore(kv, 0, nil)
	if err := store.For(id.String()).SaveAuth(context.Background(), loggedIn()); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	rv := &stubRevalidator{}

	m := NewManager(store, testCfg, WithRevalidator(rv))
	sess, release := m.Acquire(context.Background(), id)
	release()
	sess, release = m.Acquire(context.Background(), id)
	defer release()

	if !sess.IsAuthenticated() {
		t.Fatal("login not restored")
	}
	if rv.calls != 1 {
		t.Fatalf("expected one revalidation per hydration, got %d", rv.calls)
	}
}

func TestAcquireSerializesSession(t *testing.T) {
	m := NewManager(NewStore(newMemoryKV(), 0, nil), testCfg)
	id := uuid.New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := m.Acquire(context.Background(), id)
			defer release()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("lost updates: %d", counter)
	}
}

func TestSweepEvictsIdleSessionsOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewStore(newMemoryKV(), 0, nil), testCfg, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, releaseIdle := m.Acquire(ctx, uuid.New())
	releaseIdle()
	_, releaseBusy := m.Acquire(ctx, uuid.New())

	now = now.Add(time.Hour)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("busy session must survive, len=%d", m.Len())
	}
	releaseBusy()
	releaseBusy()

	now = now.Add(time.Hour)
	if n := m.Sweep(); n != 1 || m.Len() != 0 {
		t.Fatalf("expected the released session to be evicted, n=%d len=%d", n, m.Len())
	}
}

func TestLoadingFlags(t *testing.T) {
	sess := newSession(uuid.New(), nil)
	done := sess.TrackShipping()
	if !sess.Loading().Shipping {
		t.Fatal("shipping flag not raised")
	}
	done()
	if sess.Loading().Shipping {
		t.Fatal("shipping flag not lowered")
	}
}
