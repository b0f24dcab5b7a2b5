package controllers

import (
	"net/http"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/api/validators"
	"github.com/angelmondragon/chronus-storefront/internal/address"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

type lookupRequest struct {
	CEP string `json:"cep" validate:"required"`
}

// AddressLookup fills the address from the postal code and requotes shipping.
func AddressLookup(svc address.Service, catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var req lookupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateStruct(req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		done := sess.TrackAddress()
		result, err := svc.LookupPostalCode(r.Context(), sess.Cart, req.CEP)
		done()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := CartWithNotice{Cart: buildCartView(sess, addOns(r.Context(), catalog, logg))}
		if result.Shipping != nil {
			view.Notice = result.Shipping.Notice
		}
		responses.WriteSuccess(w, view)
	}
}

// AddressProfile loads the logged-in shopper's saved address. A missing or
// unreachable profile leaves the cart as it was.
func AddressProfile(svc address.Service, catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		done := sess.TrackAddress()
		result, loaded := svc.LoadSaved(r.Context(), sess.Cart, sess.Auth)
		done()

		view := CartWithNotice{Cart: buildCartView(sess, addOns(r.Context(), catalog, logg))}
		if loaded && result != nil && result.Shipping != nil {
			view.Notice = result.Shipping.Notice
		}
		responses.WriteSuccess(w, view)
	}
}
