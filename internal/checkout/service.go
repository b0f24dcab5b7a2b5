package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/internal/orders"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"github.com/angelmondragon/chronus-storefront/pkg/payments"
	"github.com/angelmondragon/chronus-storefront/pkg/types"
)

// Outcome is how the gateway answered a submission.
type Outcome string

const (
	OutcomeRedirect   Outcome = orders.OutcomeRedirect
	OutcomeConfirmed  Outcome = orders.OutcomeConfirmed
	OutcomeFailed     Outcome = orders.OutcomeFailed
	OutcomeUnexpected Outcome = orders.OutcomeUnexpected
)

const (
	// SuccessPath is where a shopper lands after an immediate confirmation.
	SuccessPath = "/sucesso"
	// SuccessDelay is how long the client waits before navigating there.
	SuccessDelay = 2 * time.Second

	msgLoginRequired   = "You need to be logged in to complete the purchase."
	msgEmptyCart       = "Cart is empty"
	msgSelectShipping  = "Select a shipping option"
	msgRedirecting     = "Redirecting to payment..."
	msgConfirmed       = "Payment confirmed! Redirecting..."
	msgUnexpected      = "Unexpected response from the server. Please try again."
	msgGatewayFallback = "failed to process checkout"
)

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, token string, payload any) (*payments.CheckoutResponse, error)
}

// PendingStore keeps the marker of a checkout awaiting its return redirect.
type PendingStore interface {
	SavePendingOrder(ctx context.Context, po session.PendingOrder) error
}

// Recorder keeps the audit trail of submissions.
type Recorder interface {
	Record(ctx context.Context, snap *orders.CheckoutSnapshot) (bool, error)
}

// Request carries the session state a submission reads and may clear.
type Request struct {
	StorefrontSessionID string
	Cart                *cart.Cart
	Auth                *auth.State
	AddOns              cart.AddOns
	Pending             PendingStore
}

// Result is the interpreted gateway answer.
type Result struct {
	Outcome         Outcome `json:"outcome"`
	RedirectURL     string  `json:"redirect_url,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	OrderID         string  `json:"order_id,omitempty"`
	Message         string  `json:"message,omitempty"`
	NavigateTo      string  `json:"navigate_to,omitempty"`
	NavigateAfterMS int64   `json:"navigate_after_ms,omitempty"`
}

// Succeeded reports whether the shopper moves on to payment or success.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeRedirect || r.Outcome == OutcomeConfirmed
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func WithMetrics(m *metrics.Storefront) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logg = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator validates a cart, submits it to the gateway and interprets
// the answer.
type Orchestrator struct {
	gateway  Gateway
	recorder Recorder
	store    config.StoreConfig
	metrics  *metrics.Storefront
	logg     *logger.Logger
	now      func() time.Time
}

func NewOrchestrator(gw Gateway, store config.StoreConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gw,
		store:   store,
		logg:    logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Validate checks the preconditions in order and returns the first failure.
func Validate(authenticated bool, s cart.State) error {
	if !authenticated {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msgLoginRequired)
	}
	if len(s.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}
	if errs := cart.ValidateAddress(s.Address); len(errs) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, errs[0]).WithDetails(map[string]any{"errors": errs})
	}
	if _, ok := cart.SelectedOption(s.ShippingOptions, s.SelectedShipping); !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, msgSelectShipping)
	}
	return nil
}

// Submit runs one checkout. Precondition and gateway failures are returned
// as errors; every answer the gateway gives is returned as a Result.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	if req.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart is required")
	}
	state := req.Cart.State()
	if err := Validate(req.Auth.IsAuthenticated(), state); err != nil {
		o.metrics.IncCheckout("rejected")
		return nil, err
	}
	if o.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}

	option, _ := cart.SelectedOption(state.ShippingOptions, state.SelectedShipping)
	now := o.now()
	payload := buildPayload(buildInput{
		state:      state,
		addons:     req.AddOns,
		option:     option,
		user:       *req.Auth.User,
		currency:   o.currency(),
		successURL: o.store.SuccessURL(),
		cancelURL:  o.store.CancelURL(),
		now:        now,
	})
	totals := cart.Price(state, req.AddOns)
	ctx = o.logg.WithUserID(ctx, req.Auth.UserID())

	started := time.Now()
	resp, err := o.gateway.CreateCheckout(ctx, req.Auth.Token, payload)
	o.metrics.ObserveUpstream("gateway_checkout", time.Since(started))
	if errors.Is(err, payments.ErrUnexpectedResponse) {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.response.malformed")
		resp, err = &payments.CheckoutResponse{}, nil
	}
	if err != nil {
		o.metrics.IncCheckout(string(OutcomeFailed))
		o.record(ctx, req, payload, totals, OutcomeFailed, nil)
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.gateway.failed")
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeGateway, err, msgGatewayFallback)
		}
		return nil, err
	}

	result := o.interpret(ctx, req, resp, totals, len(state.Items), now)
	o.metrics.IncCheckout(string(result.Outcome))
	o.record(ctx, req, payload, totals, result.Outcome, resp)
	o.logg.Info(o.logg.WithFields(ctx, map[string]any{
		"outcome":  result.Outcome,
		"mode":     payload.Mode,
		"order_id": result.OrderID,
	}), "checkout.submitted")
	return &result, nil
}

func (o *Orchestrator) interpret(ctx context.Context, req Request, resp *payments.CheckoutResponse, totals cart.Totals, itemsCount int, now time.Time) Result {
	switch {
	case resp.CheckoutSession != nil && strings.TrimSpace(resp.CheckoutSession.URL) != "":
		cs := resp.CheckoutSession
		if req.Pending != nil {
			po := session.PendingOrder{
				SessionID:   cs.SessionID,
				OrderID:     cs.OrderID,
				TotalAmount: types.NewAmount(totals.Total),
				ItemsCount:  itemsCount,
				CreatedAt:   now.UTC(),
			}
			if err := req.Pending.SavePendingOrder(ctx, po); err != nil {
				o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.pending_order.save_failed")
			}
		}
		return Result{Outcome: OutcomeRedirect, RedirectURL: cs.URL, SessionID: cs.SessionID, OrderID: cs.OrderID, Message: msgRedirecting}

	case resp.Success != nil && *resp.Success && resp.PaymentConfirmed:
		req.Cart.Clear(ctx)
		return Result{
			Outcome:         OutcomeConfirmed,
			OrderID:         resp.OrderID,
			Message:         msgConfirmed,
			NavigateTo:      SuccessPath,
			NavigateAfterMS: SuccessDelay.Milliseconds(),
		}

	case (resp.Success == nil || !*resp.Success) && strings.TrimSpace(resp.Error) != "":
		return Result{Outcome: OutcomeFailed, Message: resp.Error}

	default:
		o.logg.Warn(ctx, "checkout.response.unexpected")
		return Result{Outcome: OutcomeUnexpected, Message: msgUnexpected}
	}
}

func (o *Orchestrator) record(ctx context.Context, req Request, payload Payload, totals cart.Totals, outcome Outcome, resp *payments.CheckoutResponse) {
	if o.recorder == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		o.logg.Error(ctx, "checkout.snapshot.encode_failed", err)
		return
	}

	snap := &orders.CheckoutSnapshot{
		StorefrontSessionID: req.StorefrontSessionID,
		UserID:              req.Auth.UserID(),
		Outcome:             string(outcome),
		Mode:                payload.Mode,
		ItemsCount:          cart.ItemsCount(payload.InternalData.CartSnapshot.Items),
		TotalAmount:         cart.MinorUnits(totals.Total),
		Currency:            o.currency(),
		Payload:             string(raw),
		CreatedAt:           o.now().UTC(),
	}
	if resp != nil {
		if cs := resp.CheckoutSession; cs != nil {
			snap.GatewaySessionID = nonEmpty(cs.SessionID)
			snap.OrderID = nonEmpty(cs.OrderID)
		}
		if snap.OrderID == nil {
			snap.OrderID = nonEmpty(resp.OrderID)
		}
	}

	if _, err := o.recorder.Record(ctx, snap); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.snapshot.record_failed")
	}
}

func (o *Orchestrator) currency() string {
	if c := strings.TrimSpace(o.store.Currency); c != "" {
		return strings.ToLower(c)
	}
	return "brl"
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
