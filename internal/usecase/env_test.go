//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/security"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

const (
	testWebhookSecret = "whsec_test"
	testKeySecret     = "key_secret_test"

	priceFourDay  int64 = 19900
	priceSixMonth int64 = 299900
	priceWebinar  int64 = 49900
)

var t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// testEnv wires the real usecases over in-memory repositories.
type testEnv struct {
	clock   *fixedClock
	orders  *MockOrderRepo
	events  *MockWebhookEventRepo
	subs    *MockSubscriptionRepo
	grants  *MockGrantRepo
	users   *MockUserRepo
	catalog *MockCatalog
	gateway *MockGateway
	tm      *MockTxManager

	ledger   *usecase.OrderLedger
	resolver *usecase.EntitlementResolver
	gate     *usecase.AccessGate
	payments usecase.PaymentUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		clock:   newClock(t0),
		orders:  NewMockOrderRepo(),
		events:  NewMockWebhookEventRepo(),
		subs:    NewMockSubscriptionRepo(),
		grants:  NewMockGrantRepo(),
		users:   NewMockUserRepo(),
		catalog: NewMockCatalog(&model.Webinar{ID: "web-1", Title: "Masterclass", Price: priceWebinar, IsPaid: true}),
		gateway: NewMockGateway(),
		tm:      NewMockTxManager(),
	}
	logger := newTestLogger()
	prices := usecase.PriceBook{Currency: "INR", FourDay: priceFourDay, SixMonth: priceSixMonth}

	e.ledger = usecase.NewOrderLedger(e.orders, e.users, e.catalog, e.gateway, prices, logger)
	e.ledger.SetClock(e.clock.Now)
	e.resolver = usecase.NewEntitlementResolver(e.subs, e.grants, e.users, e.catalog, e.tm, logger)
	e.resolver.SetClock(e.clock.Now)
	e.gate = usecase.NewAccessGate(e.subs, e.grants, e.users, logger)
	e.gate.SetClock(e.clock.Now)
	e.payments = usecase.NewPaymentUseCase(e.ledger, e.resolver, e.events, security.NewHMACVerifier(testWebhookSecret, testKeySecret), e.gateway, e.tm, logger)
	return e
}

func (e *testEnv) addUser(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := model.NewUser(id, id+"@example.com", id)
	require.NoError(t, err)
	require.NoError(t, e.users.Save(context.Background(), nil, u))
	return u
}

func (e *testEnv) createOrder(t *testing.T, userID string, plan model.PlanType) *model.Order {
	t.Helper()
	in := usecase.CreateOrderInput{UserID: userID, PlanType: plan, Currency: "INR"}
	switch plan {
	case model.PlanFourDay:
		in.Amount = priceFourDay
	case model.PlanSixMonth:
		in.Amount = priceSixMonth
	case model.PlanPaidWebinar:
		in.Amount = priceWebinar
		in.WebinarID = strPtr("web-1")
	}
	o, err := e.ledger.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	return o
}

func capturedWebhook(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured","amount":19900,"currency":"INR"}}}}`, paymentID, orderID))
}

func failedWebhook(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"failed"}}}}`, paymentID, orderID))
}

func checkoutSig(orderID, paymentID string) string {
	return security.Sign(security.CheckoutPayload(orderID, paymentID), testKeySecret)
}

func webhookSig(body []byte) string {
	return security.Sign(body, testWebhookSecret)
}
