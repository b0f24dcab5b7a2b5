package confirmation

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"github.com/angelmondragon/chronus-storefront/pkg/payments"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPendingOrderTTL is how long a pending order stays eligible for
	// reconciliation.
	DefaultPendingOrderTTL = time.Hour

	msgMissingSession = "Session ID not found"
	msgVerifyFailed   = "Error verifying payment"
	msgMissingEmail   = "customer email unavailable"

	PaymentMethodCard   = "card"
	PaymentMethodBoleto = "boleto"
)

// Gateway reads payment sessions and their orders.
type Gateway interface {
	GetSession(ctx context.Context, sessionID string) (*payments.SessionResponse, error)
	OrderBySession(ctx context.Context, sessionID string) (*payments.OrderDetails, error)
	SendConfirmation(ctx context.Context, sessionID, email string) error
}

// Confirmer marks the audit snapshot of a session as paid.
type Confirmer interface {
	MarkConfirmed(ctx context.Context, gatewaySessionID string, at time.Time) (bool, error)
}

// Storage is the session-scoped persistence the verifier purges.
type Storage interface {
	DeleteCart(ctx context.Context) error
	DeletePendingOrder(ctx context.Context) error
	PurgeStalePendingOrder(ctx context.Context, now time.Time, maxAge time.Duration) (session.PendingOrder, bool)
}

// Local is the storefront session a verification applies to.
type Local struct {
	Cart    *cart.Cart
	Storage Storage
}

// Verification is the outcome of checking a returned payment session.
type Verification struct {
	Confirmed    bool                   `json:"confirmed"`
	Valid        bool                   `json:"valid"`
	Session      *payments.Session      `json:"session,omitempty"`
	OrderDetails *payments.OrderDetails `json:"order_details,omitempty"`
	ErrorMessage string                 `json:"error,omitempty"`
	View         *View                  `json:"view,omitempty"`
}

// View holds the fields the success page renders.
type View struct {
	OrderNumber          string `json:"order_number"`
	FormattedAmount      string `json:"formatted_amount"`
	PaymentMethod        string `json:"payment_method"`
	IsSubscriptionActive bool   `json:"is_subscription_active"`
	CustomerEmail        string `json:"customer_email,omitempty"`
}

type Option func(*Verifier)

func WithConfirmer(c Confirmer) Option { return func(v *Verifier) { v.confirmer = c } }

func WithMetrics(m *metrics.Storefront) Option { return func(v *Verifier) { v.metrics = m } }

// WithPendingOrderTTL overrides DefaultPendingOrderTTL.
func WithPendingOrderTTL(ttl time.Duration) Option {
	return func(v *Verifier) {
		if ttl > 0 {
			v.pendingTTL = ttl
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logg = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Verifier reconciles a storefront session with the gateway after the
// shopper returns from the hosted payment page.
type Verifier struct {
	gateway    Gateway
	confirmer  Confirmer
	metrics    *metrics.Storefront
	pendingTTL time.Duration
	logg       *logger.Logger
	now        func() time.Time
}

func NewVerifier(gw Gateway, opts ...Option) *Verifier {
	v := &Verifier{
		gateway:    gw,
		pendingTTL: DefaultPendingOrderTTL,
		logg:       logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify asks the gateway whether sessionID is paid. A paid session purges
// the pending order and the cart, in storage and in memory. Gateway failures
// are reported on the Verification, never as an error; the only error is a
// blank id.
func (v *Verifier) Verify(ctx context.Context, sessionID string, local Local) (*Verification, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		v.metrics.IncConfirmation("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgMissingSession)
	}
	ctx = v.logg.WithField(ctx, "gateway_session_id", sessionID)

	started := time.Now()
	resp, err := v.fetch(ctx, sessionID)
	v.metrics.ObserveUpstream("gateway_session", time.Since(started))
	if err != nil {
		v.metrics.IncConfirmation("error")
		v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "confirmation.verify.failed")
		return &Verification{ErrorMessage: pkgerrors.MessageOf(err, msgVerifyFailed)}, nil
	}
	if !resp.Success || resp.Session == nil {
		v.metrics.IncConfirmation("invalid")
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = msgVerifyFailed
		}
		return &Verification{ErrorMessage: msg}, nil
	}

	out := &Verification{
		Valid:        true,
		Session:      resp.Session,
		OrderDetails: resp.OrderDetails,
		View:         BuildView(resp.Session, resp.OrderDetails),
	}
	if !resp.Session.Paid() {
		v.metrics.IncConfirmation("unpaid")
		v.logg.Info(v.logg.WithField(ctx, "payment_status", resp.Session.PaymentStatus), "confirmation.verify.unpaid")
		return out, nil
	}

	out.Confirmed = true
	v.settle(ctx, sessionID, local)
	v.metrics.IncConfirmation("paid")
	v.logg.Info(ctx, "confirmation.verify.paid")
	return out, nil
}

// FetchOrderDetails is best-effort: any failure yields nil.
func (v *Verifier) FetchOrderDetails(ctx context.Context, sessionID string) *payments.OrderDetails {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || v.gateway == nil {
		return nil
	}
	started := time.Now()
	details, err := v.gateway.OrderBySession(ctx, sessionID)
	v.metrics.ObserveUpstream("gateway_order", time.Since(started))
	if err != nil {
		v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
			"gateway_session_id": sessionID,
			"error":              err.Error(),
		}), "confirmation.order_details.failed")
		return nil
	}
	return details
}

// SendConfirmationEmail asks the gateway to email the receipt of a paid
// session to its customer.
func (v *Verifier) SendConfirmationEmail(ctx context.Context, sess *payments.Session) error {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msgMissingSession)
	}
	email := customerEmail(sess)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msgMissingEmail)
	}
	if v.gateway == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}
	if err := v.gateway.SendConfirmation(ctx, sess.ID, email); err != nil {
		v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
			"gateway_session_id": sess.ID,
			"error":              err.Error(),
		}), "confirmation.email.failed")
		return err
	}
	return nil
}

// CheckPendingOrder discards a pending order past its reconciliation window
// and returns the one still in force.
func (v *Verifier) CheckPendingOrder(ctx context.Context, storage Storage) (session.PendingOrder, bool) {
	if storage == nil {
		return session.PendingOrder{}, false
	}
	return storage.PurgeStalePendingOrder(ctx, v.now(), v.pendingTTL)
}

func (v *Verifier) fetch(ctx context.Context, sessionID string) (*payments.SessionResponse, error) {
	if v.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}
	resp, err := v.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, msgVerifyFailed)
	}
	return resp, nil
}

func (v *Verifier) settle(ctx context.Context, sessionID string, local Local) {
	if local.Storage != nil {
		if err := local.Storage.DeletePendingOrder(ctx); err != nil {
			v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "confirmation.pending_order.delete_failed")
		}
		if err := local.Storage.DeleteCart(ctx); err != nil {
			v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "confirmation.cart.delete_failed")
		}
	}
	if local.Cart != nil {
		local.Cart.Clear(ctx)
	}
	if v.confirmer == nil {
		return
	}
	found, err := v.confirmer.MarkConfirmed(ctx, sessionID, v.now().UTC())
	switch {
	case err != nil:
		v.logg.Warn(v.logg.WithField(ctx, "error", err.Error()), "confirmation.snapshot.mark_failed")
	case !found:
		v.logg.Debug(ctx, "confirmation.snapshot.not_found")
	}
}

// BuildView derives the success page fields.
func BuildView(sess *payments.Session, details *payments.OrderDetails) *View {
	if sess == nil {
		return nil
	}
	view := &View{
		OrderNumber:          orderNumber(sess, details),
		FormattedAmount:      cart.FormatCurrency(decimal.New(sess.AmountTotal, -2)),
		PaymentMethod:        PaymentMethodBoleto,
		IsSubscriptionActive: sess.Subscription != nil && sess.Subscription.Status == "active",
		CustomerEmail:        customerEmail(sess),
	}
	if sess.PaymentIntent != nil {
		view.PaymentMethod = PaymentMethodCard
	}
	return view
}

func orderNumber(sess *payments.Session, details *payments.OrderDetails) string {
	if details != nil && strings.TrimSpace(details.ID) != "" {
		return details.ID
	}
	if id := strings.TrimSpace(sess.ID); id != "" {
		return id
	}
	return "N/A"
}

func customerEmail(sess *payments.Session) string {
	if email := strings.TrimSpace(sess.CustomerDetails.Email); email != "" {
		return email
	}
	return strings.TrimSpace(sess.CustomerEmail)
}
