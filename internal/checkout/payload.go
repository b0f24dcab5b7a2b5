package checkout

import (
	"strconv"
	"time"

	"github.com/angelmondragon/chronus-storefront/internal/cart"
	"github.com/angelmondragon/chronus-storefront/pkg/identity"
)

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"

	defaultDonationDescription   = "Doação para o clube"
	defaultMembershipDescription = "Sócio Torcedor"
)

// Payload is the body posted to the gateway's checkout endpoint.
type Payload struct {
	Customer                  Customer                  `json:"customer"`
	SuccessURL                string                    `json:"success_url"`
	CancelURL                 string                    `json:"cancel_url"`
	ShippingAddress           AddressBlock              `json:"shipping_address"`
	BillingAddress            AddressBlock              `json:"billing_address"`
	Shipping                  ShippingBlock             `json:"shipping"`
	LineItems                 []LineItem                `json:"line_items"`
	SubscriptionData          *SubscriptionData         `json:"subscription_data,omitempty"`
	LineItemsSubscription     []LineItem                `json:"line_items_subscription,omitempty"`
	Metadata                  Metadata                  `json:"metadata"`
	Mode                      string                    `json:"mode"`
	PaymentMethodTypes        []string                  `json:"payment_method_types"`
	AllowPromotionCodes       bool                      `json:"allow_promotion_codes"`
	BillingAddressCollection  string                    `json:"billing_address_collection"`
	ShippingAddressCollection ShippingAddressCollection `json:"shipping_address_collection"`
	InternalData              InternalData              `json:"internal_data"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AddressBlock is the delivery address plus its single-line rendering.
type AddressBlock struct {
	cart.Address
	FullAddress string `json:"full_address"`
}

type ShippingBlock struct {
	OptionID        string          `json:"option_id"`
	OptionName      string          `json:"option_name"`
	Cost            int64           `json:"cost"`
	Company         string          `json:"company"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
}

type DeliveryAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Formatted    string `json:"formatted"`
}

type LineItem struct {
	PriceData PriceData `json:"price_data"`
	Quantity  int       `json:"quantity"`
}

type PriceData struct {
	Currency    string      `json:"currency"`
	ProductData ProductData `json:"product_data"`
	UnitAmount  int64       `json:"unit_amount"`
	Recurring   *Recurring  `json:"recurring,omitempty"`
}

type ProductData struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Images      []string          `json:"images,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int    `json:"interval_count"`
}

type SubscriptionData struct {
	Metadata        map[string]string `json:"metadata"`
	TrialPeriodDays int               `json:"trial_period_days"`
}

// Metadata is the flat summary read by systems that ignore the nested blocks.
type Metadata struct {
	OrderType            string `json:"order_type"`
	UserID               string `json:"user_id"`
	CartItemsCount       string `json:"cart_items_count"`
	HasDonation          string `json:"has_donation"`
	HasMembership        string `json:"has_membership"`
	TotalAmount          string `json:"total_amount"`
	ShippingCEP          string `json:"shipping_cep"`
	ShippingStreet       string `json:"shipping_street"`
	ShippingNumber       string `json:"shipping_number"`
	ShippingComplement   string `json:"shipping_complement"`
	ShippingNeighborhood string `json:"shipping_neighborhood"`
	ShippingCity         string `json:"shipping_city"`
	ShippingState        string `json:"shipping_state"`
	ShippingFullAddress  string `json:"shipping_full_address"`
	CreatedAt            string `json:"created_at"`
}

type ShippingAddressCollection struct {
	AllowedCountries []string `json:"allowed_countries"`
}

type InternalData struct {
	CartSnapshot CartSnapshot `json:"cart_snapshot"`
}

// CartSnapshot mirrors the cart and its totals at submission time.
type CartSnapshot struct {
	Items             []cart.Item         `json:"items"`
	ShippingAddress   cart.Address        `json:"shipping_address"`
	ShippingOption    cart.ShippingOption `json:"shipping_option"`
	DonationChecked   bool                `json:"donation_checked"`
	MembershipChecked bool                `json:"membership_checked"`
	Totals            SnapshotTotals      `json:"totals"`
	DeliveryInfo      DeliveryInfo        `json:"delivery_info"`
}

type SnapshotTotals struct {
	Subtotal   string `json:"subtotal"`
	Shipping   string `json:"shipping"`
	Donation   string `json:"donation"`
	Membership string `json:"membership"`
	Total      string `json:"total"`
}

type DeliveryInfo struct {
	FullAddress     string `json:"full_address"`
	PostalCode      string `json:"postal_code"`
	ShippingMethod  string `json:"shipping_method"`
	ShippingCompany string `json:"shipping_company"`
}

type buildInput struct {
	state      cart.State
	addons     cart.AddOns
	option     cart.ShippingOption
	user       identity.User
	currency   string
	successURL string
	cancelURL  string
	now        time.Time
}

func buildPayload(in buildInput) Payload {
	s := in.state
	addr := s.Address
	totals := cart.Price(s, in.addons)
	full := addr.FullAddress()
	subscription := cart.HasSubscriptionItems(s, in.addons)

	p := Payload{
		Customer:        Customer{ID: in.user.ID, Email: in.user.Email, Name: in.user.FullName},
		SuccessURL:      in.successURL,
		CancelURL:       in.cancelURL,
		ShippingAddress: AddressBlock{Address: addr, FullAddress: full},
		BillingAddress:  AddressBlock{Address: addr, FullAddress: full},
		Shipping: ShippingBlock{
			OptionID:   in.option.ID,
			OptionName: in.option.Name,
			Cost:       cart.MinorUnits(totals.Shipping),
			Company:    in.option.Company,
			DeliveryAddress: DeliveryAddress{
				Street:       addr.Street,
				Number:       addr.Number,
				Complement:   addr.Complement,
				Neighborhood: addr.Neighborhood,
				City:         addr.City,
				State:        addr.State,
				PostalCode:   addr.CEP,
				Formatted:    full,
			},
		},
		Metadata: Metadata{
			OrderType:            "ecommerce",
			UserID:               strconv.FormatInt(in.user.ID, 10),
			CartItemsCount:       strconv.Itoa(len(s.Items)),
			HasDonation:          strconv.FormatBool(s.DonationChecked),
			HasMembership:        strconv.FormatBool(s.MembershipChecked),
			TotalAmount:          strconv.FormatInt(cart.MinorUnits(totals.Total), 10),
			ShippingCEP:          addr.CEP,
			ShippingStreet:       addr.Street,
			ShippingNumber:       addr.Number,
			ShippingComplement:   addr.Complement,
			ShippingNeighborhood: addr.Neighborhood,
			ShippingCity:         addr.City,
			ShippingState:        addr.State,
			ShippingFullAddress:  full,
			CreatedAt:            in.now.UTC().Format(time.RFC3339Nano),
		},
		Mode:                      ModePayment,
		PaymentMethodTypes:        []string{"card", "boleto"},
		AllowPromotionCodes:       true,
		BillingAddressCollection:  "auto",
		ShippingAddressCollection: ShippingAddressCollection{AllowedCountries: []string{"BR"}},
		InternalData: InternalData{CartSnapshot: CartSnapshot{
			Items:             s.Items,
			ShippingAddress:   addr,
			ShippingOption:    in.option,
			DonationChecked:   s.DonationChecked,
			MembershipChecked: s.MembershipChecked,
			Totals: SnapshotTotals{
				Subtotal:   totals.Subtotal.StringFixed(2),
				Shipping:   totals.Shipping.StringFixed(2),
				Donation:   totals.Donation.StringFixed(2),
				Membership: totals.Membership.StringFixed(2),
				Total:      totals.Total.StringFixed(2),
			},
			DeliveryInfo: DeliveryInfo{
				FullAddress:     addr.Locality(),
				PostalCode:      addr.CEP,
				ShippingMethod:  in.option.Name,
				ShippingCompany: in.option.Company,
			},
		}},
	}

	for _, item := range s.Items {
		p.LineItems = append(p.LineItems, productLine(in.currency, item, addr))
	}
	if s.DonationChecked && in.addons.Donation != nil {
		p.LineItems = append(p.LineItems, addOnLine(in.currency, *in.addons.Donation, defaultDonationDescription, "is_donation"))
	}
	p.LineItems = append(p.LineItems, shippingLine(in.currency, in.option, totals, addr))

	if subscription {
		m := *in.addons.Membership
		line := addOnLine(in.currency, m, defaultMembershipDescription, "is_membership")
		line.PriceData.Recurring = &Recurring{Interval: "month", IntervalCount: 1}
		p.LineItemsSubscription = []LineItem{line}
		p.SubscriptionData = &SubscriptionData{
			Metadata: map[string]string{
				"product_id":   strconv.FormatInt(m.ID, 10),
				"product_type": m.Type,
				"customer_id":  strconv.FormatInt(in.user.ID, 10),
			},
		}
		p.Mode = ModeSubscription
	}
	return p
}

func productLine(currency string, item cart.Item, addr cart.Address) LineItem {
	return LineItem{
		PriceData: PriceData{
			Currency: currency,
			ProductData: ProductData{
				Name:        item.Product.Name,
				Description: item.Product.Description,
				Images:      images(item.Product.Image),
				Metadata: map[string]string{
					"product_id":       strconv.FormatInt(item.Product.ID, 10),
					"product_type":     item.Product.Type,
					"size":             item.Size,
					"delivery_cep":     addr.CEP,
					"delivery_city":    addr.City,
					"delivery_state":   addr.State,
					"delivery_address": addr.StreetLine(),
				},
			},
			UnitAmount: cart.MinorUnits(item.Product.Price),
		},
		Quantity: item.Quantity,
	}
}

func addOnLine(currency string, p cart.Product, defaultDescription, flag string) LineItem {
	desc := p.Description
	if desc == "" {
		desc = defaultDescription
	}
	return LineItem{
		PriceData: PriceData{
			Currency: currency,
			ProductData: ProductData{
				Name:        p.Name,
				Description: desc,
				Images:      images(p.Image),
				Metadata: map[string]string{
					"product_id":   strconv.FormatInt(p.ID, 10),
					"product_type": p.Type,
					flag:           "true",
				},
			},
			UnitAmount: cart.MinorUnits(p.Price),
		},
		Quantity: 1,
	}
}

func shippingLine(currency string, opt cart.ShippingOption, totals cart.Totals, addr cart.Address) LineItem {
	return LineItem{
		PriceData: PriceData{
			Currency: currency,
			ProductData: ProductData{
				Name: "Frete - " + opt.Name,
				Metadata: map[string]string{
					"is_shipping":           "true",
					"shipping_option_id":    opt.ID,
					"shipping_cep":          addr.CEP,
					"shipping_street":       addr.Street,
					"shipping_number":       addr.Number,
					"shipping_complement":   addr.Complement,
					"shipping_neighborhood": addr.Neighborhood,
					"shipping_city":         addr.City,
					"shipping_state":        addr.State,
					"shipping_full_address": addr.FullAddress(),
				},
			},
			UnitAmount: cart.MinorUnits(totals.Shipping),
		},
		Quantity: 1,
	}
}

func images(url string) []string {
	if url == "" {
		return nil
	}
	return []string{url}
}
