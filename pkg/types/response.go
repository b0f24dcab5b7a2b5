package types

// SuccessEnvelope wraps every 2xx body of the storefront API. Data is a
// cart view, catalog view, auth view or checkout result.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is what the shopper sees. Message is shown verbatim for cart
// rules, login and gateway declines; other codes carry a public fallback.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

