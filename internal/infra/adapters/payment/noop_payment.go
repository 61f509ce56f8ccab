package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for local runs and tests.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	orders   map[string]adapter.GatewayOrder
	payments map[string][]adapter.GatewayPayment
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders:   make(map[string]adapter.GatewayOrder),
		payments: make(map[string][]adapter.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string      { return "noop" }
func (g *NoopPaymentGateway) PublicKey() string { return "noop_key" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := adapter.GatewayOrder{ID: g.next("order"), Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}
	g.orders[o.ID] = o
	return o, nil
}

func (g *NoopPaymentGateway) ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[gatewayOrderID]; !ok {
		return nil, fmt.Errorf("noop: order %s not found", gatewayOrderID)
	}
	return append([]adapter.GatewayPayment(nil), g.payments[gatewayOrderID]...), nil
}

// Pay records a payment attempt with the given status and returns its id.
func (g *NoopPaymentGateway) Pay(gatewayOrderID, status string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[gatewayOrderID]
	if !ok {
		return "", fmt.Errorf("noop: order %s not found", gatewayOrderID)
	}
	p := adapter.GatewayPayment{ID: g.next("pay"), OrderID: o.ID, Status: status, Amount: o.Amount}
	g.payments[o.ID] = append(g.payments[o.ID], p)
	return p.ID, nil
}
