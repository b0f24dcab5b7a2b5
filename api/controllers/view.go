package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/chronus-storefront/api/middleware"
	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	checkoutsvc "github.com/angelmondragon/chronus-storefront/internal/checkout"
	"github.com/angelmondragon/chronus-storefront/internal/session"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

// catalogService is the slice of the catalog the handlers read.
type catalogService interface {
	List(ctx context.Context) ([]cart.Product, error)
	Find(ctx context.Context, id int64) (cart.Product, bool, error)
	AddOns(ctx context.Context) (cart.AddOns, error)
}

// CartView is the cart as every cart endpoint returns it.
type CartView struct {
	Items               []ItemView            `json:"items"`
	ItemsCount          int                   `json:"items_count"`
	ShippingAddress     cart.Address          `json:"shipping_address"`
	ShippingOptions     []cart.ShippingOption `json:"shipping_options"`
	SelectedShipping    string                `json:"selected_shipping"`
	SelectedOption      *cart.ShippingOption  `json:"selected_shipping_option,omitempty"`
	DonationChecked     bool                  `json:"donation_checked"`
	MembershipChecked   bool                  `json:"membership_checked"`
	Donation            *cart.Product         `json:"donation_product,omitempty"`
	Membership          *cart.Product         `json:"membership_product,omitempty"`
	Totals              cart.Totals           `json:"totals"`
	Formatted           FormattedTotals       `json:"formatted"`
	HasSubscriptionItem bool                  `json:"has_subscription_items"`
	HasOneTimeItems     bool                  `json:"has_one_time_items"`
	AddressErrors       []string              `json:"address_errors"`
	CanCheckout         bool                  `json:"can_checkout"`
	Authenticated       bool                  `json:"authenticated"`
	User                *identity.User        `json:"user,omitempty"`
	Loading             session.Loading       `json:"loading"`
}

type ItemView struct {
	cart.Item
	DisplayName    string `json:"display_name"`
	LineTotal      string `json:"line_total"`
	FormattedPrice string `json:"formatted_price"`
}

type FormattedTotals struct {
	Subtotal   string `json:"subtotal"`
	Shipping   string `json:"shipping"`
	Donation   string `json:"donation"`
	Membership string `json:"membership"`
	Total      string `json:"total"`
}

func buildCartView(sess *session.Session, addons cart.AddOns) CartView {
	state := sess.Cart.State()
	totals := cart.Price(state, addons)
	authenticated := sess.Auth.IsAuthenticated()

	items := make([]ItemView, 0, len(state.Items))
	for _, item := range state.Items {
		items = append(items, ItemView{
			Item:           item,
			DisplayName:    item.DisplayName(),
			LineTotal:      cart.FormatCurrency(item.LineTotal()),
			FormattedPrice: cart.FormatCurrency(item.Product.Price),
		})
	}
	addressErrors := cart.ValidateAddress(state.Address)
	if addressErrors == nil {
		addressErrors = []string{}
	}
	options := state.ShippingOptions
	if options == nil {
		options = []cart.ShippingOption{}
	}

	view := CartView{
		Items:               items,
		ItemsCount:          cart.ItemsCount(state.Items),
		ShippingAddress:     state.Address,
		ShippingOptions:     options,
		SelectedShipping:    state.SelectedShipping,
		DonationChecked:     state.DonationChecked,
		MembershipChecked:   state.MembershipChecked,
		Donation:            addons.Donation,
		Membership:          addons.Membership,
		Totals:              totals,
		HasSubscriptionItem: cart.HasSubscriptionItems(state, addons),
		HasOneTimeItems:     cart.HasOneTimeItems(state, addons),
		AddressErrors:       addressErrors,
		CanCheckout:         cart.CanCheckout(authenticated, state),
		Authenticated:       authenticated,
		Loading:             sess.Loading(),
		Formatted: FormattedTotals{
			Subtotal:   cart.FormatCurrency(totals.Subtotal),
			Shipping:   cart.FormatCurrency(totals.Shipping),
			Donation:   cart.FormatCurrency(totals.Donation),
			Membership: cart.FormatCurrency(totals.Membership),
			Total:      cart.FormatCurrency(totals.Total),
		},
	}
	if opt, ok := cart.SelectedOption(state.ShippingOptions, state.SelectedShipping); ok {
		view.SelectedOption = &opt
	}
	if authenticated {
		view.User = sess.Auth.User
	}
	return view
}

// requireSession returns the request's storefront session or writes an error.
func requireSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*session.Session, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil || sess.Cart == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session context missing"))
		return nil, false
	}
	return sess, true
}

// addOns reads the add-on products. A catalog outage prices the cart without them.
func addOns(ctx context.Context, catalog catalogService, logg *logger.Logger) cart.AddOns {
	if catalog == nil {
		return cart.AddOns{}
	}
	addons, err := catalog.AddOns(ctx)
	if err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "cart.addons.unavailable")
	}
	return addons
}

func writeCart(w http.ResponseWriter, r *http.Request, sess *session.Session, catalog catalogService, logg *logger.Logger) {
	responses.WriteSuccess(w, buildCartView(sess, addOns(r.Context(), catalog, logg)))
}

// CartWithNotice wraps the cart view with a message for the shopper.
type CartWithNotice struct {
	Cart   CartView `json:"cart"`
	Notice string   `json:"notice,omitempty"`
}

// CheckoutResponse is the checkout result plus the cart after it.
type CheckoutResponse struct {
	Result *checkoutsvc.Result `json:"result"`
	Cart   CartView            `json:"cart"`
}
