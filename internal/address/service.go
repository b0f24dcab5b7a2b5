package address

import (
	"context"
	"strings"

	"github.com/angelmondragon/chronus-storefront/internal/auth"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/internal/shipping"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/viacep"
)

// PostalLookup resolves a normalized postal code.
type PostalLookup interface {
	Lookup(ctx context.Context, cep string) (*viacep.Address, error)
}

// Profiles reads the address saved on the shopper's account.
type Profiles interface {
	Address(ctx context.Context, token string, userID int64) (*identity.SavedAddress, error)
}

// ShippingApplier recalculates the cart's shipping options.
type ShippingApplier interface {
	Apply(ctx context.Context, c *cart.Cart) shipping.Result
}

// Result is the address after an update and the shipping it produced.
type Result struct {
	Address  cart.Address     `json:"address"`
	Shipping *shipping.Result `json:"shipping,omitempty"`
}

type Service interface {
	LookupPostalCode(ctx context.Context, c *cart.Cart, cep string) (*Result, error)
	LoadSaved(ctx context.Context, c *cart.Cart, st *auth.State) (*Result, bool)
}

type service struct {
	lookup   PostalLookup
	profiles Profiles
	shipping ShippingApplier
	logg     *logger.Logger
}

func NewService(lookup PostalLookup, profiles Profiles, applier ShippingApplier, logg *logger.Logger) Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{lookup: lookup, profiles: profiles, shipping: applier, logg: logg}
}

// LookupPostalCode fills street, neighborhood, city and state from the
// postal code and then recalculates shipping. Number and complement are kept.
func (s *service) LookupPostalCode(ctx context.Context, c *cart.Cart, cep string) (*Result, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart is required")
	}
	digits := cart.NormalizePostalCode(cep)
	if len(digits) != 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, cart.ErrPostalCodeDigits)
	}
	if s.lookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "address lookup unavailable")
	}

	found, err := s.lookup.Lookup(ctx, digits)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cep": digits, "error": err.Error()}), "address.lookup.failed")
		return nil, err
	}

	c.UpdateAddress(ctx, func(a *cart.Address) {
		a.CEP = strings.TrimSpace(cep)
		a.Street = found.Street
		a.Neighborhood = found.Neighborhood
		a.City = found.City
		a.State = found.State
	})
	return s.reprice(ctx, c), nil
}

// LoadSaved replaces the cart address with the one on the shopper's profile.
// Failures are logged and reported as false.
func (s *service) LoadSaved(ctx context.Context, c *cart.Cart, st *auth.State) (*Result, bool) {
	if c == nil || s.profiles == nil || !st.IsAuthenticated() {
		return nil, false
	}
	ctx = s.logg.WithUserID(ctx, st.UserID())

	saved, err := s.profiles.Address(ctx, st.Token, st.User.ID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			s.logg.Debug(ctx, "address.saved.none")
		} else {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "address.saved.failed")
		}
		return nil, false
	}
	if saved == nil {
		return nil, false
	}

	c.SetAddress(ctx, cart.Address{
		CEP:          saved.CEP,
		Street:       saved.Street,
		Number:       saved.Number,
		Complement:   saved.Complement,
		Neighborhood: saved.Neighborhood,
		City:         saved.City,
		State:        saved.State,
	})
	if strings.TrimSpace(saved.CEP) == "" {
		return &Result{Address: c.Address()}, true
	}
	return s.reprice(ctx, c), true
}

func (s *service) reprice(ctx context.Context, c *cart.Cart) *Result {
	out := &Result{Address: c.Address()}
	if s.shipping != nil {
		res := s.shipping.Apply(ctx, c)
		out.Shipping = &res
	}
	return out
}
