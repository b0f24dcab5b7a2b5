package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/api/validators"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	"github.com/angelmondragon/chronus-storefront/internal/shipping"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type shippingResolver interface {
	Apply(ctx context.Context, c *cart.Cart) shipping.Result
}

// Quantity defaults to one when omitted.
type addItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  *int   `json:"quantity"`
	Size      string `json:"size"`
}

func (r addItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type updateQuantityRequest struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size"`
}

type addOnsRequest struct {
	Donation   *bool `json:"donation_checked"`
	Membership *bool `json:"membership_checked"`
}

type selectShippingRequest struct {
	ID string `json:"id" validate:"required"`
}

// CartGet returns the cart view of the session.
func CartGet(catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		writeCart(w, r, sess, catalog, logg)
	}
}

// CartClear empties the cart and erases its persisted blob.
func CartClear(catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		sess.Cart.Clear(r.Context())
		writeCart(w, r, sess, catalog, logg)
	}
}

func CartAddItem(catalog catalogService, resolver shippingResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateStruct(req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, found, err := catalog.Find(r.Context(), req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog unavailable"))
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		quantity := req.quantity()
		if err := sess.Cart.AddItem(r.Context(), p, quantity, req.Size); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{"product_id": p.ID, "quantity": quantity})
		logg.Info(ctx, "cart.item.added")
		requote(r.Context(), sess, resolver)
		writeCart(w, r, sess, catalog, logg)
	}
}

func CartUpdateQuantity(catalog catalogService, resolver shippingResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.Cart.UpdateQuantity(r.Context(), productID, req.Size, req.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requote(r.Context(), sess, resolver)
		writeCart(w, r, sess, catalog, logg)
	}
}

// CartRemoveItem drops the line matching the product id and ?size=.
// Removing a missing line is not an error.
func CartRemoveItem(catalog catalogService, resolver shippingResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		removed, found := sess.Cart.RemoveItem(r.Context(), productID, r.URL.Query().Get("size"))
		view := CartWithNotice{}
		if found {
			view.Notice = removed.DisplayName() + " removed from cart"
			requote(r.Context(), sess, resolver)
		}
		view.Cart = buildCartView(sess, addOns(r.Context(), catalog, logg))
		responses.WriteSuccess(w, view)
	}
}

// CartSetAddress replaces the delivery address. Validation errors are
// reported on the view, not rejected.
func CartSetAddress(catalog catalogService, resolver shippingResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var addr cart.Address
		if err := validators.DecodeJSONBody(r, &addr); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addr = trimAddress(addr)
		previous := cart.NormalizePostalCode(sess.Cart.Address().CEP)
		sess.Cart.SetAddress(r.Context(), addr)
		if cart.NormalizePostalCode(addr.CEP) != previous {
			requote(r.Context(), sess, resolver)
		}
		writeCart(w, r, sess, catalog, logg)
	}
}

func CartSetAddOns(catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var req addOnsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Donation != nil {
			sess.Cart.SetDonation(r.Context(), *req.Donation)
		}
		if req.Membership != nil {
			sess.Cart.SetMembership(r.Context(), *req.Membership)
		}
		writeCart(w, r, sess, catalog, logg)
	}
}

// CartQuoteShipping recalculates the options for the current address.
func CartQuoteShipping(catalog catalogService, resolver shippingResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		result := quote(r.Context(), sess, resolver)
		responses.WriteSuccess(w, CartWithNotice{
			Cart:   buildCartView(sess, addOns(r.Context(), catalog, logg)),
			Notice: result.Notice,
		})
	}
}

func CartSelectShipping(catalog catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		var req selectShippingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateStruct(req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.Cart.SelectShipping(r.Context(), strings.TrimSpace(req.ID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, sess, catalog, logg)
	}
}

func quote(ctx context.Context, sess *session.Session, resolver shippingResolver) shipping.Result {
	if resolver == nil {
		return shipping.Result{Source: shipping.SourceSkipped}
	}
	done := sess.TrackShipping()
	defer done()
	return resolver.Apply(ctx, sess.Cart)
}

// requote refreshes the options after a change that moves the package or
// destination, as long as the postal code is complete.
func requote(ctx context.Context, sess *session.Session, resolver shippingResolver) {
	if len(cart.NormalizePostalCode(sess.Cart.Address().CEP)) != 8 || sess.Cart.IsEmpty() {
		return
	}
	quote(ctx, sess, resolver)
}

func productIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "productId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	return id, nil
}

func trimAddress(a cart.Address) cart.Address {
	a.CEP = strings.TrimSpace(a.CEP)
	a.Street = strings.TrimSpace(a.Street)
	a.Number = strings.TrimSpace(a.Number)
	a.Complement = strings.TrimSpace(a.Complement)
	a.Neighborhood = strings.TrimSpace(a.Neighborhood)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	return a
}
