package cart

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonDigits = regexp.MustCompile(`\D`)

// Totals are the derived amounts of a cart. They are recomputed on every
// read and never stored.
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Donation     decimal.Decimal `json:"donation"`
	Membership   decimal.Decimal `json:"membership"`
	Shipping     decimal.Decimal `json:"shipping"`
	Total        decimal.Decimal `json:"total"`
	OneTime      decimal.Decimal `json:"one_time_total"`
	Subscription decimal.Decimal `json:"subscription_total"`
}

// Price derives every total from s and the catalog add-ons.
func Price(s State, addons AddOns) Totals {
	subtotal := Subtotal(s.Items)
	donation := DonationValue(s.DonationChecked, addons)
	membership := MembershipValue(s.MembershipChecked, addons)
	shipping := ShippingCost(s.ShippingOptions, s.SelectedShipping)

	return Totals{
		Subtotal:     subtotal,
		Donation:     donation,
		Membership:   membership,
		Shipping:     shipping,
		Total:        subtotal.Add(donation).Add(membership).Add(shipping),
		OneTime:      subtotal.Add(shipping).Add(donation),
		Subscription: membership,
	}
}

// Subtotal is the sum of price times quantity over all lines.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// ShirtQuantity sums the quantity of apparel lines.
func ShirtQuantity(items []Item) int {
	n := 0
	for _, item := range items {
		if item.Product.IsApparel() {
			n += item.Quantity
		}
	}
	return n
}

// ItemsCount sums the quantity of all lines.
func ItemsCount(items []Item) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// DonationValue is the donation price when the flag is set and the catalog has one.
func DonationValue(checked bool, addons AddOns) decimal.Decimal {
	if !checked || addons.Donation == nil {
		return decimal.Zero
	}
	return addons.Donation.Price
}

// MembershipValue is the membership price when the flag is set and the catalog has one.
func MembershipValue(checked bool, addons AddOns) decimal.Decimal {
	if !checked || addons.Membership == nil {
		return decimal.Zero
	}
	return addons.Membership.Price
}

// SelectedOption finds id among options.
func SelectedOption(options []ShippingOption, id string) (ShippingOption, bool) {
	for _, opt := range options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

// ShippingCost is the price of the selected option, or zero when the
// selection is not among the available options.
func ShippingCost(options []ShippingOption, selected string) decimal.Decimal {
	if opt, ok := SelectedOption(options, selected); ok {
		return opt.Price
	}
	return decimal.Zero
}

// HasSubscriptionItems reports whether checkout will open a subscription.
func HasSubscriptionItems(s State, addons AddOns) bool {
	return s.MembershipChecked && addons.Membership != nil
}

// HasOneTimeItems reports whether checkout has anything paid once.
func HasOneTimeItems(s State, addons AddOns) bool {
	return len(s.Items) > 0 || (s.DonationChecked && addons.Donation != nil)
}

// Address rule messages, in evaluation order.
const (
	ErrPostalCodeRequired   = "Postal code is required"
	ErrPostalCodeDigits     = "Postal code must have 8 digits"
	ErrStreetRequired       = "Street is required"
	ErrNumberRequired       = "Number is required"
	ErrNeighborhoodRequired = "Neighborhood is required"
	ErrCityRequired         = "City is required"
	ErrStateRequired        = "State is required"
)

// ValidateAddress returns every violated rule in order. An empty result
// means the address is complete.
func ValidateAddress(a Address) []string {
	var errs []string
	if blank(a.CEP) {
		errs = append(errs, ErrPostalCodeRequired)
	} else if len(NormalizePostalCode(a.CEP)) != 8 {
		errs = append(errs, ErrPostalCodeDigits)
	}
	if blank(a.Street) {
		errs = append(errs, ErrStreetRequired)
	}
	if blank(a.Number) {
		errs = append(errs, ErrNumberRequired)
	}
	if blank(a.Neighborhood) {
		errs = append(errs, ErrNeighborhoodRequired)
	}
	if blank(a.City) {
		errs = append(errs, ErrCityRequired)
	}
	if blank(a.State) {
		errs = append(errs, ErrStateRequired)
	}
	return errs
}

// CanCheckout holds when the shopper is logged in, the cart has lines, the
// address is complete and the selection is among the available options.
func CanCheckout(authenticated bool, s State) bool {
	if !authenticated || len(s.Items) == 0 {
		return false
	}
	if len(ValidateAddress(s.Address)) > 0 {
		return false
	}
	_, ok := SelectedOption(s.ShippingOptions, s.SelectedShipping)
	return ok
}

// NormalizePostalCode strips every non-digit.
func NormalizePostalCode(cep string) string {
	return nonDigits.ReplaceAllString(cep, "")
}

// MinorUnits converts an amount to integer cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
