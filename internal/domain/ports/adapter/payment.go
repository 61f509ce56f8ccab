package adapter

import "context"

// GatewayOrder is the provider-side order created before checkout.
type GatewayOrder struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Status   string
}

// GatewayPayment is a payment attempt against a gateway order.
type GatewayPayment struct {
	ID      string
	OrderID string
	Status  string // created | authorized | captured | failed | refunded
	Amount  int64
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	// PublicKey is handed to the browser checkout widget.
	PublicKey() string

	// CreateOrder registers a payment intent at the provider.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (GatewayOrder, error)
	// ListOrderPayments returns the payment attempts recorded for an order.
	ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]GatewayPayment, error)
}

// SignatureVerifier authenticates data claiming to come from the gateway.
// Both methods fail closed.
type SignatureVerifier interface {
	// VerifyWebhook checks the signature header against the untouched raw body.
	VerifyWebhook(rawBody []byte, signature string) bool
	// VerifyCheckout checks the signature the client receives on redirect.
	VerifyCheckout(gatewayOrderID, gatewayPaymentID, signature string) bool
}
