package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/internal/confirmation"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/payments"
	"github.com/go-chi/chi/v5"
)

type verifier interface {
	Verify(ctx context.Context, sessionID string, local confirmation.Local) (*confirmation.Verification, error)
	FetchOrderDetails(ctx context.Context, sessionID string) *payments.OrderDetails
	SendConfirmationEmail(ctx context.Context, sess *payments.Session) error
	CheckPendingOrder(ctx context.Context, storage confirmation.Storage) (session.PendingOrder, bool)
}

// EmailView acknowledges a confirmation email request.
type EmailView struct {
	Sent bool `json:"sent"`
}

// CheckoutVerify checks a gateway session after the shopper returns. A paid
// session clears the cart and the pending order.
func CheckoutVerify(v verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		result, err := v.Verify(r.Context(), gatewaySessionParam(r), confirmation.Local{Cart: sess.Cart, Storage: sess.Store()})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CheckoutOrder(v verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := gatewaySessionParam(r)
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Session ID not found"))
			return
		}
		details := v.FetchOrderDetails(r.Context(), id)
		if details == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, details)
	}
}

// CheckoutConfirmationEmail asks the gateway to email the receipt of a paid session.
func CheckoutConfirmationEmail(v verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		result, err := v.Verify(r.Context(), gatewaySessionParam(r), confirmation.Local{Cart: sess.Cart, Storage: sess.Store()})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !result.Confirmed || result.Session == nil {
			msg := result.ErrorMessage
			if msg == "" {
				msg = "payment not confirmed"
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeBusinessRule, msg))
			return
		}
		if err := v.SendConfirmationEmail(r.Context(), result.Session); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, EmailView{Sent: true})
	}
}

func gatewaySessionParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "sessionId"))
}
