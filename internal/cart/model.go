package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// ApparelType tags the official jersey, the only sized product.
	ApparelType    = "Camisa Oficial"
	DonationType   = "lottery_ticket"
	MembershipType = "membership"

	MaxQuantityPerItem = 5
	MaxApparelQuantity = 5

	// DefaultShippingID is the selection a fresh or cleared cart starts from.
	DefaultShippingID = "standard"
)

// Product is a catalog entry as the cart sees it.
type Product struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	Image             string          `json:"image"`
	Description       string          `json:"description,omitempty"`
	Stock             int             `json:"stock"`
	MaxPerUser        int             `json:"max_per_user"`
	AvailableQuantity int             `json:"available_quantity"`
	TotalQuantity     int             `json:"total_quantity"`
	Width             decimal.Decimal `json:"width"`
	Height            decimal.Decimal `json:"height"`
	Length            decimal.Decimal `json:"length"`
	Weight            decimal.Decimal `json:"weight"`
	SelectedSize      string          `json:"selectedSize,omitempty"`
}

// IsApparel reports whether the product counts against the jersey cap.
func (p Product) IsApparel() bool {
	return p.Type == ApparelType
}

// IsDonation matches the donation ticket offered as an add-on.
func (p Product) IsDonation() bool {
	return p.Type == DonationType && strings.Contains(strings.ToLower(p.Name), "de")
}

// IsMembership matches the supporter membership offered as an add-on.
func (p Product) IsMembership() bool {
	return p.Type == MembershipType && strings.Contains(strings.ToLower(p.Name), "torcedor")
}

// Item is one cart line. Items are unique by (product id, size).
type Item struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Size     string  `json:"size"`
}

func (i Item) matches(productID int64, size string) bool {
	return i.Product.ID == productID && i.Size == size
}

// LineTotal is unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DisplayName is the name shown in notices, with the size in parentheses.
func (i Item) DisplayName() string {
	if i.Size == "" {
		return i.Product.Name
	}
	return fmt.Sprintf("%s (%s)", i.Product.Name, i.Size)
}

// Address is the delivery address. JSON names follow the Brazilian field
// names the storefront has always persisted.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
}

// StreetLine is "street, number".
func (a Address) StreetLine() string {
	return a.Street + ", " + a.Number
}

// Locality is the address without the postal code:
// "street, number[, complement], neighborhood, city - state".
func (a Address) Locality() string {
	var b strings.Builder
	b.WriteString(a.StreetLine())
	if a.Complement != "" {
		b.WriteString(", ")
		b.WriteString(a.Complement)
	}
	fmt.Fprintf(&b, ", %s, %s - %s", a.Neighborhood, a.City, a.State)
	return b.String()
}

// FullAddress is Locality followed by ", CEP: <cep>".
func (a Address) FullAddress() string {
	return a.Locality() + ", CEP: " + a.CEP
}

// ShippingOption is one way to deliver the cart.
type ShippingOption struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DeliveryTime *int            `json:"delivery_time,omitempty"`
	Company      string          `json:"company"`
}

// Snapshot is the persisted cart blob. Shipping options are not part of it;
// they are re-quoted after a reload.
type Snapshot struct {
	Items             []Item  `json:"items"`
	ShippingAddress   Address `json:"shippingAddress"`
	DonationChecked   bool    `json:"donationChecked"`
	MembershipChecked bool    `json:"membershipChecked"`
	SelectedShipping  string  `json:"selectedShipping"`
}

// State is a read-only copy of everything the pricing functions look at.
type State struct {
	Items             []Item
	Address           Address
	ShippingOptions   []ShippingOption
	SelectedShipping  string
	DonationChecked   bool
	MembershipChecked bool
}

// AddOns are the catalog products the two opt-in flags refer to. Either may
// be nil when the catalog has no matching product.
type AddOns struct {
	Donation   *Product
	Membership *Product
}
