package confirmation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/payments"
	"github.com/shopspring/decimal"
)

type stubGateway struct {
	calls    int
	resp     *payments.SessionResponse
	err      error
	order    *payments.OrderDetails
	orderErr error
	sentTo   string
	sendErr  error
}

func (s *stubGateway) GetSession(context.Context, string) (*payments.SessionResponse, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubGateway) OrderBySession(context.Context, string) (*payments.OrderDetails, error) {
	return s.order, s.orderErr
}

func (s *stubGateway) SendConfirmation(_ context.Context, _ string, email string) error {
	s.sentTo = email
	return s.sendErr
}

type stubStorage struct {
	cartDeletes    int
	pendingDeletes int
	pending        *session.PendingOrder
	purgeAge       time.Duration
}

func (s *stubStorage) SaveCart(context.Context, cart.Snapshot) error { return nil }

func (s *stubStorage) DeleteCart(context.Context) error {
	s.cartDeletes++
	return nil
}

func (s *stubStorage) DeletePendingOrder(context.Context) error {
	s.pendingDeletes++
	s.pending = nil
	return nil
}

func (s *stubStorage) PurgeStalePendingOrder(ctx context.Context, now time.Time, maxAge time.Duration) (session.PendingOrder, bool) {
	s.purgeAge = maxAge
	if s.pending == nil {
		return session.PendingOrder{}, false
	}
	if now.Sub(s.pending.CreatedAt) > maxAge {
		_ = s.DeletePendingOrder(ctx)
		return session.PendingOrder{}, false
	}
	return *s.pending, true
}

type stubConfirmer struct {
	ids []string
	err error
}

func (s *stubConfirmer) MarkConfirmed(_ context.Context, id string, _ time.Time) (bool, error) {
	s.ids = append(s.ids, id)
	return true, s.err
}

type loggedIn struct{}

func (loggedIn) IsAuthenticated() bool { return true }

func filledCart(t *testing.T, storage cart.Storage) *cart.Cart {
	t.Helper()
	c := cart.New(storage, loggedIn{}, nil)
	p := cart.Product{ID: 7, Name: "Caneca", Type: "accessory", Price: decimal.RequireFromString("35")}
	if err := c.AddItem(context.Background(), p, 1, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	return c
}

func TestBlankSessionIsRejected(t *testing.T) {
	gw := &stubGateway{}
	_, err := NewVerifier(gw).Verify(context.Background(), "  ", Local{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestPaidSessionPurgesStorage(t *testing.T) {
	storage := &stubStorage{}
	c := filledCart(t, storage)
	confirmer := &stubConfirmer{}
	gw := &stubGateway{resp: &payments.SessionResponse{
		Success: true,
		Session: &payments.Session{ID: "cs_1", PaymentStatus: "paid", AmountTotal: 123456, PaymentIntent: &payments.StatusRef{ID: "pi_1"}},
	}}

	got, err := NewVerifier(gw, WithConfirmer(confirmer)).Verify(context.Background(), "cs_1", Local{Cart: c, Storage: storage})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.Confirmed || !got.Valid {
		t.Fatalf("expected confirmed, got %+v", got)
	}
	if storage.pendingDeletes != 1 || storage.cartDeletes == 0 || !c.IsEmpty() {
		t.Fatalf("expected purge, got pending=%d cart=%d", storage.pendingDeletes, storage.cartDeletes)
	}
	if len(confirmer.ids) != 1 || confirmer.ids[0] != "cs_1" {
		t.Fatalf("expected snapshot confirmation, got %v", confirmer.ids)
	}
	if got.View.FormattedAmount != "R$ 1234,56" || got.View.PaymentMethod != PaymentMethodCard || got.View.OrderNumber != "cs_1" {
		t.Fatalf("unexpected view %+v", got.View)
	}
}

func TestCompleteStatusCountsAsPaid(t *testing.T) {
	storage := &stubStorage{}
	gw := &stubGateway{resp: &payments.SessionResponse{Success: true, Session: &payments.Session{ID: "cs_2", Status: "complete"}}}

	got, _ := NewVerifier(gw).Verify(context.Background(), "cs_2", Local{Storage: storage})
	if !got.Confirmed || storage.pendingDeletes != 1 {
		t.Fatalf("expected confirmation, got %+v", got)
	}
}

func TestUnpaidSessionLeavesStorageUntouched(t *testing.T) {
	storage := &stubStorage{}
	c := filledCart(t, storage)
	confirmer := &stubConfirmer{}
	gw := &stubGateway{resp: &payments.SessionResponse{Success: true, Session: &payments.Session{ID: "cs_3", PaymentStatus: "unpaid", Status: "open"}}}

	got, err := NewVerifier(gw, WithConfirmer(confirmer)).Verify(context.Background(), "cs_3", Local{Cart: c, Storage: storage})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Confirmed || !got.Valid {
		t.Fatalf("expected valid but unpaid, got %+v", got)
	}
	if storage.pendingDeletes != 0 || storage.cartDeletes != 0 || c.IsEmpty() || len(confirmer.ids) != 0 {
		t.Fatal("unpaid session must not purge anything")
	}
}

func TestGatewayFailureKeepsMessage(t *testing.T) {
	storage := &stubStorage{}
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGateway, "failed to verify payment session")}

	got, err := NewVerifier(gw).Verify(context.Background(), "cs_4", Local{Storage: storage})
	if err != nil {
		t.Fatalf("gateway failures are reported on the result, got %v", err)
	}
	if got.Valid || got.Confirmed || got.ErrorMessage != "failed to verify payment session" {
		t.Fatalf("unexpected verification %+v", got)
	}

	gw = &stubGateway{resp: &payments.SessionResponse{Success: false, Message: "Sessão não encontrada"}}
	got, _ = NewVerifier(gw).Verify(context.Background(), "cs_4", Local{Storage: storage})
	if got.Valid || got.ErrorMessage != "Sessão não encontrada" {
		t.Fatalf("unexpected verification %+v", got)
	}
	if storage.pendingDeletes != 0 {
		t.Fatal("failed verification must not purge")
	}
}

func TestFetchOrderDetailsIsBestEffort(t *testing.T) {
	gw := &stubGateway{orderErr: errors.New("down")}
	if got := NewVerifier(gw).FetchOrderDetails(context.Background(), "cs_5"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	gw.orderErr = nil
	gw.order = &payments.OrderDetails{ID: "ord_5"}
	if got := NewVerifier(gw).FetchOrderDetails(context.Background(), "cs_5"); got == nil || got.ID != "ord_5" {
		t.Fatalf("unexpected details %+v", got)
	}
}

func TestCheckPendingOrderDropsStaleEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storage := &stubStorage{pending: &session.PendingOrder{OrderID: "ord_6", CreatedAt: now.Add(-61 * time.Minute)}}
	v := NewVerifier(&stubGateway{}, WithClock(func() time.Time { return now }))

	if _, ok := v.CheckPendingOrder(context.Background(), storage); ok {
		t.Fatal("stale pending order must be discarded")
	}
	if storage.pendingDeletes != 1 || storage.purgeAge != time.Hour {
		t.Fatalf("unexpected purge deletes=%d age=%s", storage.pendingDeletes, storage.purgeAge)
	}

	storage.pending = &session.PendingOrder{OrderID: "ord_7", CreatedAt: now.Add(-10 * time.Minute)}
	po, ok := v.CheckPendingOrder(context.Background(), storage)
	if !ok || po.OrderID != "ord_7" {
		t.Fatalf("fresh pending order must be kept, got %+v %v", po, ok)
	}
}

func TestSendConfirmationEmailPrefersCustomerDetails(t *testing.T) {
	gw := &stubGateway{}
	v := NewVerifier(gw)
	sess := &payments.Session{ID: "cs_8", CustomerEmail: "old@chronus.club", CustomerDetails: payments.CustomerDetails{Email: "fan@chronus.club"}}

	if err := v.SendConfirmationEmail(context.Background(), sess); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gw.sentTo != "fan@chronus.club" {
		t.Fatalf("unexpected recipient %q", gw.sentTo)
	}
	if err := v.SendConfirmationEmail(context.Background(), &payments.Session{ID: "cs_9"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildView(t *testing.T) {
	view := BuildView(&payments.Session{AmountTotal: 23500, Subscription: &payments.StatusRef{Status: "active"}}, nil)
	if view.OrderNumber != "N/A" || view.FormattedAmount != "R$ 235,00" || view.PaymentMethod != PaymentMethodBoleto || !view.IsSubscriptionActive {
		t.Fatalf("unexpected view %+v", view)
	}
	view = BuildView(&payments.Session{ID: "cs_10"}, &payments.OrderDetails{ID: "ord_10"})
	if view.OrderNumber != "ord_10" || view.IsSubscriptionActive {
		t.Fatalf("unexpected view %+v", view)
	}
}
