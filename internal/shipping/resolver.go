package shipping

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/config"
	"github.com/angelmondragon/chronus-storefront/pkg/freight"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"github.com/angelmondragon/chronus-storefront/pkg/types"
	"github.com/shopspring/decimal"
)

// Source tells where a set of options came from.
type Source string

const (
	SourceSkipped           Source = "skipped"
	SourceInvalidPostalCode Source = "invalid_postal_code"
	SourceHomeCity          Source = "home_city"
	SourceRemote            Source = "remote"
	SourceFallback          Source = "fallback"
)

const (
	StandardID = "standard"
	ExpressID  = "express"
	FreeID     = "free"

	defaultCarrier = "Carrier"
)

var preferredKeywords = []string{"sedex", "express", "priority"}

// Quoter asks the rate service for carrier options.
type Quoter interface {
	Calculate(ctx context.Context, req freight.QuoteRequest) ([]freight.Quote, error)
}

// Result is the outcome of one resolution. Options and Selected are empty
// when Source is skipped or invalid_postal_code.
type Result struct {
	Options  []cart.ShippingOption `json:"options"`
	Selected string                `json:"selected"`
	Source   Source                `json:"source"`
	Notice   string                `json:"notice,omitempty"`
}

// Applies reports whether the result should replace the cart's options.
func (r Result) Applies() bool {
	return r.Source != SourceSkipped && r.Source != SourceInvalidPostalCode
}

// Resolver turns a destination and cart contents into shipping options.
type Resolver struct {
	quoter   Quoter
	homeCity string
	standard decimal.Decimal
	express  decimal.Decimal
	metrics  *metrics.Storefront
	logg     *logger.Logger
}

// NewResolver builds a resolver. A nil quoter always yields the fallback.
func NewResolver(quoter Quoter, cfg config.ShippingConfig, homeCity string, m *metrics.Storefront, logg *logger.Logger) *Resolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{
		quoter:   quoter,
		homeCity: strings.TrimSpace(homeCity),
		standard: cfg.StandardPrice(),
		express:  cfg.ExpressPrice(),
		metrics:  m,
		logg:     logg,
	}
}

// Resolve never fails. Any remote problem ends in the fallback table.
func (r *Resolver) Resolve(ctx context.Context, addr cart.Address, items []cart.Item) Result {
	res := r.resolve(ctx, addr, items)
	r.metrics.IncShippingQuote(string(res.Source))
	return res
}

// Apply resolves for c and writes the options into it when they apply.
func (r *Resolver) Apply(ctx context.Context, c *cart.Cart) Result {
	res := r.Resolve(ctx, c.Address(), c.Items())
	if res.Applies() {
		c.SetShippingOptions(ctx, res.Options, res.Selected)
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, addr cart.Address, items []cart.Item) Result {
	if strings.TrimSpace(addr.CEP) == "" || len(items) == 0 {
		return Result{Source: SourceSkipped}
	}
	if r.isHomeCity(addr.City) {
		return Result{
			Options:  []cart.ShippingOption{{ID: FreeID, Name: "Free shipping", Price: decimal.Zero, Company: "-"}},
			Selected: FreeID,
			Source:   SourceHomeCity,
		}
	}

	cep := cart.NormalizePostalCode(addr.CEP)
	if len(cep) != 8 {
		return Result{Source: SourceInvalidPostalCode, Notice: cart.ErrPostalCodeDigits}
	}

	if r.quoter == nil {
		return r.fallback(addr.City, "")
	}

	started := time.Now()
	quotes, err := r.quoter.Calculate(ctx, packageRequest(cep, items))
	r.metrics.ObserveUpstream("shipping", time.Since(started))
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "shipping.quote.fallback")
		return r.fallback(addr.City, "")
	}

	options := normalizeQuotes(quotes)
	if len(options) == 0 {
		r.logg.Warn(r.logg.WithField(ctx, "quotes", len(quotes)), "shipping.quote.no_valid_options")
		return r.fallback(addr.City, "No shipping options available for this postal code; showing estimated rates.")
	}
	return Result{Options: options, Selected: preferred(options), Source: SourceRemote}
}

// Fallback returns the two-tier table for city.
func (r *Resolver) Fallback(city string) []cart.ShippingOption {
	standard, express := r.standard, r.express
	if r.isHomeCity(city) {
		standard, express = decimal.Zero, decimal.Zero
	}
	return []cart.ShippingOption{
		{ID: StandardID, Name: "PAC", Price: standard, Company: "Correios"},
		{ID: ExpressID, Name: "Sedex", Price: express, Company: "Correios"},
	}
}

func (r *Resolver) fallback(city, notice string) Result {
	return Result{Options: r.Fallback(city), Selected: StandardID, Source: SourceFallback, Notice: notice}
}

func (r *Resolver) isHomeCity(city string) bool {
	return r.homeCity != "" && strings.EqualFold(strings.TrimSpace(city), r.homeCity)
}

func packageRequest(cep string, items []cart.Item) freight.QuoteRequest {
	return freight.QuoteRequest{
		CEP: cep,
		Products: []freight.QuotePackage{{
			ID:             freight.PackageID,
			Quantity:       cart.ItemsCount(items),
			InsuranceValue: types.NewAmount(cart.Subtotal(items)),
		}},
	}
}

func normalizeQuotes(quotes []freight.Quote) []cart.ShippingOption {
	options := make([]cart.ShippingOption, 0, len(quotes))
	for _, q := range quotes {
		price := q.Amount()
		if !price.IsPositive() {
			continue
		}
		carrier := strings.TrimSpace(q.Company.Name)
		if carrier == "" {
			carrier = defaultCarrier
		}
		options = append(options, cart.ShippingOption{
			ID:           q.Identifier(),
			Name:         carrier + " - " + q.Name,
			Price:        price,
			DeliveryTime: q.DeliveryTime,
			Company:      carrier,
		})
	}
	return options
}

func preferred(options []cart.ShippingOption) string {
	for _, opt := range options {
		name := strings.ToLower(opt.Name)
		for _, kw := range preferredKeywords {
			if strings.Contains(name, kw) {
				return opt.ID
			}
		}
	}
	return options[0].ID
}
