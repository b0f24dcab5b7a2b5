package product

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/catalog"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
	"github.com/angelmondragon/chronus-storefront/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultStock      = 100
	defaultMaxPerUser = 5
	fetchKey          = "catalog"
)

// Lister is the remote catalog.
type Lister interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// Service exposes the normalized catalog to the cart.
type Service interface {
	List(ctx context.Context) ([]cart.Product, error)
	Refresh(ctx context.Context) ([]cart.Product, error)
	Find(ctx context.Context, id int64) (cart.Product, bool, error)
	MainProduct(ctx context.Context) (cart.Product, bool, error)
	AddOns(ctx context.Context) (cart.AddOns, error)
}

// Option configures the catalog service.
type Option func(*service)

// WithTTL sets how long a fetched catalog is served before being re-fetched.
// Zero keeps it until Refresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *service) { s.ttl = ttl }
}

// WithMetrics records fetch results and upstream latency.
func WithMetrics(m *metrics.Storefront) Option {
	return func(s *service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logg *logger.Logger) Option {
	return func(s *service) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	lister  Lister
	ttl     time.Duration
	metrics *metrics.Storefront
	logg    *logger.Logger
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	products  []cart.Product
	fetchedAt time.Time
	loaded    bool
}

// NewService returns a catalog shared by every session of the process.
func NewService(lister Lister, opts ...Option) Service {
	s := &service{
		lister: lister,
		logg:   logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *service) List(ctx context.Context) ([]cart.Product, error) {
	if cached, ok := s.cached(); ok {
		return cached, nil
	}
	return s.fetch(ctx)
}

func (s *service) Refresh(ctx context.Context) ([]cart.Product, error) {
	return s.fetch(ctx)
}

func (s *service) Find(ctx context.Context, id int64) (cart.Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return cart.Product{}, false, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, true, nil
		}
	}
	return cart.Product{}, false, nil
}

// MainProduct is the first apparel product of the catalog.
func (s *service) MainProduct(ctx context.Context) (cart.Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return cart.Product{}, false, err
	}
	for _, p := range products {
		if p.IsApparel() {
			return p, true, nil
		}
	}
	return cart.Product{}, false, nil
}

func (s *service) AddOns(ctx context.Context) (cart.AddOns, error) {
	products, err := s.List(ctx)
	if err != nil {
		return cart.AddOns{}, err
	}
	return ResolveAddOns(products), nil
}

func (s *service) cached() ([]cart.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(s.fetchedAt) >= s.ttl {
		return nil, false
	}
	return append([]cart.Product(nil), s.products...), true
}

func (s *service) fetch(ctx context.Context) ([]cart.Product, error) {
	if s.lister == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable")
	}

	v, err, _ := s.group.Do(fetchKey, func() (any, error) {
		started := s.now()
		raw, err := s.lister.ListProducts(ctx)
		s.metrics.ObserveUpstream("catalog", s.now().Sub(started))
		if err != nil {
			s.metrics.IncCatalogFetch("error")
			s.logg.Error(ctx, "catalog.fetch.failed", err)
			return nil, err
		}

		products := Normalize(raw)
		s.mu.Lock()
		s.products = products
		s.fetchedAt = s.now()
		s.loaded = true
		s.mu.Unlock()

		s.metrics.IncCatalogFetch("ok")
		s.logg.Info(s.logg.WithField(ctx, "products", len(products)), "catalog.fetch.ok")
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]cart.Product(nil), v.([]cart.Product)...), nil
}

// Normalize converts wire products and backfills missing stock and caps.
func Normalize(raw []catalog.Product) []cart.Product {
	out := make([]cart.Product, 0, len(raw))
	for _, p := range raw {
		stock := int(p.Stock.IntPart())
		available := int(p.AvailableQuantity.IntPart())
		if stock == 0 {
			stock = available
		}
		if stock == 0 {
			stock = defaultStock
		}
		maxPerUser := int(p.MaxPerUser.IntPart())
		if maxPerUser == 0 {
			maxPerUser = defaultMaxPerUser
		}

		out = append(out, cart.Product{
			ID:                p.ID,
			Name:              p.Name,
			Type:              p.Type,
			Category:          p.Category,
			Price:             p.Price.Decimal,
			Image:             p.Image,
			Description:       p.Description,
			Stock:             stock,
			MaxPerUser:        maxPerUser,
			AvailableQuantity: available,
			TotalQuantity:     int(p.TotalQuantity.IntPart()),
			Width:             p.Width.Decimal,
			Height:            p.Height.Decimal,
			Length:            p.Length.Decimal,
			Weight:            p.Weight.Decimal,
		})
	}
	return out
}

// ResolveAddOns picks the first donation and membership products.
func ResolveAddOns(products []cart.Product) cart.AddOns {
	var addons cart.AddOns
	for i := range products {
		p := products[i]
		if addons.Donation == nil && p.IsDonation() {
			addons.Donation = &p
		}
		if addons.Membership == nil && p.IsMembership() {
			addons.Membership = &p
		}
	}
	return addons
}
