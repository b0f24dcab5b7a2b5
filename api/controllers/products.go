package controllers

import (
	"net/http"

	"github.com/angelmondragon/chronus-storefront/api/responses"
	"github.com/angelmondragon/chronus-storefront/internal/cart"
	product "github.com/angelmondragon/chronus-storefront/internal/products"
	"github.com/angelmondragon/chronus-storefront/pkg/logger"
)

// CatalogView is the product list with the resolved add-ons.
type CatalogView struct {
	Products    []cart.Product `json:"products"`
	MainProduct *cart.Product  `json:"main_product,omitempty"`
	Donation    *cart.Product  `json:"donation_product,omitempty"`
	Membership  *cart.Product  `json:"membership_product,omitempty"`
}

// ProductsList serves the cached catalog. ?refresh=true forces a re-fetch.
func ProductsList(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		done := sess.TrackCatalog()
		defer done()

		list := svc.List
		if r.URL.Query().Get("refresh") == "true" {
			list = svc.Refresh
		}
		products, err := list(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if products == nil {
			products = []cart.Product{}
		}

		addons := product.ResolveAddOns(products)
		view := CatalogView{Products: products, Donation: addons.Donation, Membership: addons.Membership}
		for i := range products {
			if products[i].IsApparel() {
				view.MainProduct = &products[i]
				break
			}
		}
		responses.WriteSuccess(w, view)
	}
}
