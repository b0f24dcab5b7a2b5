package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/internal/checkout"
	"github.com/angelmondragon/chronus-storefront/internal/confirmation"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

type checkoutSubmitter interface {
	Submit(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// PendingView reports the pending order left by a redirect checkout.
type PendingView struct {
	Pending bool                  `json:"pending"`
	Order   *session.PendingOrder `json:"order,omitempty"`
	Age     string                `json:"age,omitempty"`
}

// CheckoutSubmit sends the cart to the payment gateway.
func CheckoutSubmit(submitter checkoutSubmitter, catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		ctx := logg.WithSessionID(r.Context(), sess.ID.String())

		done := sess.TrackCheckout()
		result, err := submitter.Submit(ctx, checkout.Request{
			StorefrontSessionID: sess.ID.String(),
			Cart:                sess.Cart,
			Auth:                sess.Auth,
			AddOns:              addOns(ctx, catalog, logg),
			Pending:             sess.Store(),
		})
		done()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout returned no result"))
			return
		}

		responses.WriteSuccess(w, CheckoutResponse{
			Result: result,
			Cart:   buildCartView(sess, addOns(ctx, catalog, logg)),
		})
	}
}

// CheckoutPending reports a fresh pending order. Stale ones are discarded.
func CheckoutPending(v verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		po, found := v.CheckPendingOrder(r.Context(), sess.Store())
		if !found {
			responses.WriteSuccess(w, PendingView{})
			return
		}
		view := PendingView{Pending: true, Order: &po}
		if !po.CreatedAt.IsZero() {
			view.Age = time.Since(po.CreatedAt).Round(time.Second).String()
		}
		responses.WriteSuccess(w, view)
	}
}

var _ verifier = (*confirmation.Verifier)(nil)
