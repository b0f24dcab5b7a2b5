package payments

// CheckoutSession is the gateway-hosted payment page created for an order.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
}

// CheckoutResponse covers every shape the checkout endpoint answers with.
// Success is a pointer so an absent indicator can be told apart from false.
type CheckoutResponse struct {
	CheckoutSession  *CheckoutSession `json:"checkout_session,omitempty"`
	Success          *bool            `json:"success,omitempty"`
	PaymentConfirmed bool             `json:"payment_confirmed,omitempty"`
	Error            string           `json:"error,omitempty"`
	OrderID          string           `json:"order_id,omitempty"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type StatusRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Session is the payment session status record.
type Session struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	AmountTotal     int64           `json:"amount_total"`
	Currency        string          `json:"currency"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	PaymentIntent   *StatusRef      `json:"payment_intent,omitempty"`
	Subscription    *StatusRef      `json:"subscription,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Created         int64           `json:"created"`
	URL             string          `json:"url,omitempty"`
}

// Paid reports whether the session settled.
func (s *Session) Paid() bool {
	return s != nil && (s.PaymentStatus == "paid" || s.Status == "complete")
}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Type     string  `json:"type"`
}

type OrderAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	State      string `json:"state"`
	Country    string `json:"country"`
}

// OrderDetails is the order recorded by the gateway backend for a session.
type OrderDetails struct {
	ID                string          `json:"id"`
	SessionID         string          `json:"session_id"`
	CheckoutIntentID  string          `json:"checkout_intent_id"`
	Status            string          `json:"status"`
	TotalAmount       float64         `json:"total_amount"`
	Currency          string          `json:"currency"`
	Items             []OrderItem     `json:"items"`
	ShippingAddress   OrderAddress    `json:"shipping_address"`
	Customer          CustomerDetails `json:"customer"`
	CreatedAt         string          `json:"created_at"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
}

// SessionResponse is the session-status envelope.
type SessionResponse struct {
	Success      bool          `json:"success"`
	Session      *Session      `json:"session,omitempty"`
	OrderDetails *OrderDetails `json:"order_details,omitempty"`
	Message      string        `json:"message,omitempty"`
}
