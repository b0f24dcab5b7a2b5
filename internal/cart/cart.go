package cart

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

const (
	msgLoginRequired  = "You need to be logged in to add products to the cart."
	msgSizeRequired   = "Select a size to continue."
	msgMinQuantity    = "Minimum quantity: 1 unit."
	msgMaxPerItem     = "Maximum quantity per product: 5 units."
	msgApparelLimit   = "ATTENTION, FAN! To make sure every supporter gets one, the Official Jersey is limited to 5 units per customer (CPF or CNPJ). Special edition with limited stock."
	msgUnknownOption  = "Select a valid shipping option."
	msgSizeDecoration = " - Tamanho "
)

// Storage persists the cart blob of one session.
type Storage interface {
	SaveCart(ctx context.Context, snap Snapshot) error
	DeleteCart(ctx context.Context) error
}

// Authenticator answers whether the shopper owning the cart is logged in.
type Authenticator interface {
	IsAuthenticated() bool
}

// Cart is the session's cart. Every exported mutator finishes by writing the
// full snapshot to Storage; write failures are logged and never returned.
// A Cart is not safe for concurrent use; callers hold the session lock.
type Cart struct {
	items      []Item
	address    Address
	options    []ShippingOption
	selected   string
	donation   bool
	membership bool

	storage Storage
	auth    Authenticator
	logg    *logger.Logger
}

// New returns an empty cart.
func New(storage Storage, auth Authenticator, logg *logger.Logger) *Cart {
	return &Cart{
		selected: DefaultShippingID,
		storage:  storage,
		auth:     auth,
		logg:     logg,
	}
}

// Restore rebuilds a cart from a persisted snapshot without writing it back.
func Restore(snap Snapshot, storage Storage, auth Authenticator, logg *logger.Logger) *Cart {
	c := New(storage, auth, logg)
	c.items = append([]Item(nil), snap.Items...)
	c.address = snap.ShippingAddress
	c.donation = snap.DonationChecked
	c.membership = snap.MembershipChecked
	if snap.SelectedShipping != "" {
		c.selected = snap.SelectedShipping
	}
	return c
}

// AddItem merges quantity units of product into the cart.
func (c *Cart) AddItem(ctx context.Context, product Product, quantity int, size string) error {
	size = strings.TrimSpace(size)
	if c.auth == nil || !c.auth.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msgLoginRequired)
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, msgMinQuantity)
	}
	if product.IsApparel() && size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msgSizeRequired)
	}
	if product.IsApparel() {
		if current := ShirtQuantity(c.items); current+quantity > MaxApparelQuantity {
			return apparelLimitError(current, quantity)
		}
	}

	if idx := c.indexOf(product.ID, size); idx >= 0 {
		next := c.items[idx].Quantity + quantity
		if next > MaxQuantityPerItem {
			return perItemLimitError(c.items[idx].Quantity, quantity)
		}
		c.items[idx].Quantity = next
	} else {
		if quantity > MaxQuantityPerItem {
			return perItemLimitError(0, quantity)
		}
		stored := product
		if size != "" {
			stored.SelectedSize = size
			stored.Name = product.Name + msgSizeDecoration + size
		}
		c.items = append(c.items, Item{Product: stored, Quantity: quantity, Size: size})
	}

	c.persist(ctx)
	return nil
}

// UpdateQuantity sets the quantity of an existing line. A missing line is a
// no-op; a rejected quantity leaves the cart untouched.
func (c *Cart) UpdateQuantity(ctx context.Context, productID int64, size string, quantity int) error {
	idx := c.indexOf(productID, strings.TrimSpace(size))
	if idx < 0 {
		return nil
	}
	item := c.items[idx]

	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, msgMinQuantity)
	}
	if quantity > MaxQuantityPerItem {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, msgMaxPerItem).
			WithDetails(map[string]any{"limit": MaxQuantityPerItem, "requested": quantity})
	}
	if item.Product.IsApparel() {
		others := ShirtQuantity(c.items) - item.Quantity
		if others+quantity > MaxApparelQuantity {
			return apparelLimitError(others, quantity)
		}
	}

	c.items[idx].Quantity = quantity
	c.persist(ctx)
	return nil
}

// RemoveItem drops the matching line and reports whether one existed.
func (c *Cart) RemoveItem(ctx context.Context, productID int64, size string) (Item, bool) {
	idx := c.indexOf(productID, strings.TrimSpace(size))
	if idx < 0 {
		return Item{}, false
	}
	removed := c.items[idx]
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.persist(ctx)
	return removed, true
}

// Clear empties the cart, resets the add-ons and shipping selection and
// erases the persisted blob. The delivery address is kept in memory.
func (c *Cart) Clear(ctx context.Context) {
	c.items = nil
	c.donation = false
	c.membership = false
	c.options = nil
	c.selected = DefaultShippingID

	if c.storage == nil {
		return
	}
	if err := c.storage.DeleteCart(ctx); err != nil {
		c.logWarn(ctx, "cart.clear.delete_failed", err)
	}
}

// SetAddress replaces the delivery address.
func (c *Cart) SetAddress(ctx context.Context, addr Address) {
	c.address = addr
	c.persist(ctx)
}

// UpdateAddress applies fn to the delivery address in place.
func (c *Cart) UpdateAddress(ctx context.Context, fn func(*Address)) {
	if fn == nil {
		return
	}
	fn(&c.address)
	c.persist(ctx)
}

// SetShippingOptions replaces the available options wholesale and selects selected.
func (c *Cart) SetShippingOptions(ctx context.Context, options []ShippingOption, selected string) {
	c.options = append([]ShippingOption(nil), options...)
	c.selected = selected
	c.persist(ctx)
}

// SelectShipping picks one of the available options.
func (c *Cart) SelectShipping(ctx context.Context, id string) error {
	if _, ok := SelectedOption(c.options, id); !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, msgUnknownOption)
	}
	c.selected = id
	c.persist(ctx)
	return nil
}

// SetDonation toggles the donation add-on.
func (c *Cart) SetDonation(ctx context.Context, checked bool) {
	c.donation = checked
	c.persist(ctx)
}

// SetMembership toggles the membership add-on.
func (c *Cart) SetMembership(ctx context.Context, checked bool) {
	c.membership = checked
	c.persist(ctx)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Cart) Address() Address { return c.address }

func (c *Cart) ShippingOptions() []ShippingOption {
	return append([]ShippingOption(nil), c.options...)
}

func (c *Cart) SelectedShipping() string { return c.selected }

func (c *Cart) DonationChecked() bool { return c.donation }

func (c *Cart) MembershipChecked() bool { return c.membership }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// State returns a copy for the pricing functions.
func (c *Cart) State() State {
	return State{
		Items:             c.Items(),
		Address:           c.address,
		ShippingOptions:   c.ShippingOptions(),
		SelectedShipping:  c.selected,
		DonationChecked:   c.donation,
		MembershipChecked: c.membership,
	}
}

// Snapshot returns the persisted form of the cart.
func (c *Cart) Snapshot() Snapshot {
	items := c.Items()
	if items == nil {
		items = []Item{}
	}
	return Snapshot{
		Items:             items,
		ShippingAddress:   c.address,
		DonationChecked:   c.donation,
		MembershipChecked: c.membership,
		SelectedShipping:  c.selected,
	}
}

func (c *Cart) indexOf(productID int64, size string) int {
	for i, item := range c.items {
		if item.matches(productID, size) {
			return i
		}
	}
	return -1
}

func (c *Cart) persist(ctx context.Context) {
	if c.storage == nil {
		return
	}
	if err := c.storage.SaveCart(ctx, c.Snapshot()); err != nil {
		c.logWarn(ctx, "cart.persist.failed", err)
	}
}

func (c *Cart) logWarn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}

func apparelLimitError(current, requested int) error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule, msgApparelLimit).
		WithDetails(map[string]any{"limit": MaxApparelQuantity, "current": current, "requested": requested})
}

func perItemLimitError(current, requested int) error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule, msgMaxPerItem).
		WithDetails(map[string]any{"limit": MaxQuantityPerItem, "current": current, "requested": requested})
}
