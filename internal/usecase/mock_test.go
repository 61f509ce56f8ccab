//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fixedClock returns a settable clock for deterministic tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func strPtr(s string) *string { return &s }

// =============================
// Transactions
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Repositories
// =============================

// ---- Orders ----

type MockOrderRepo struct {
	mu   sync.Mutex
	data map[string]*model.Order // by gateway order id

	TransitionStatusFunc func(ctx context.Context, tx repository.Tx, gatewayOrderID string, to model.OrderStatus, paymentID, signature *string, at time.Time) (bool, error)
	FindFunc             func(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.Order, error)
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{data: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[o.GatewayOrderID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *o
	r.data[o.GatewayOrderID] = &cp
	return nil
}

func (r *MockOrderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.Order, error) {
	if r.FindFunc != nil {
		return r.FindFunc(ctx, tx, gatewayOrderID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MockOrderRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.data {
		if o.GatewayPaymentID != nil && *o.GatewayPaymentID == gatewayPaymentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// TransitionStatus is atomic under the mutex, like the conditional UPDATE it stands in for.
func (r *MockOrderRepo) TransitionStatus(ctx context.Context, tx repository.Tx, gatewayOrderID string, to model.OrderStatus, paymentID, signature *string, at time.Time) (bool, error) {
	if r.TransitionStatusFunc != nil {
		return r.TransitionStatusFunc(ctx, tx, gatewayOrderID, to, paymentID, signature, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[gatewayOrderID]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = to
	o.GatewayPaymentID = paymentID
	o.Signature = signature
	o.UpdatedAt = at
	if to == model.OrderStatusCaptured {
		t := at
		o.CapturedAt = &t
	}
	return true, nil
}

func (r *MockOrderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.data {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Status is a test helper.
func (r *MockOrderRepo) Status(gatewayOrderID string) model.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.data[gatewayOrderID]; ok {
		return o.Status
	}
	return ""
}

// ---- Webhook events ----

type MockWebhookEventRepo struct {
	mu   sync.Mutex
	data map[string]*model.WebhookEvent // by provider/event id
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{data: map[string]*model.WebhookEvent{}}
}

func eventKey(provider, eventID string) string { return provider + "/" + eventID }

func (r *MockWebhookEventRepo) Insert(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := eventKey(e.Provider, e.EventID)
	if _, ok := r.data[k]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *e
	r.data[k] = &cp
	return nil
}

func (r *MockWebhookEventRepo) FindByEventID(ctx context.Context, tx repository.Tx, provider, eventID string) (*model.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.data[eventKey(provider, eventID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MockWebhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, processingErr string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.data {
		if e.ID == id {
			t := at
			e.ProcessedAt = &t
			e.ProcessingError = processingErr
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockWebhookEventRepo) All() []*model.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.WebhookEvent, 0, len(r.data))
	for _, e := range r.data {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// ---- Subscriptions ----

// MockSubscriptionRepo enforces order id uniqueness the way the table's
// unique index does.
type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription // by id

	CreateFunc           func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	ListActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.data {
		if s.OrderID != nil && e.OrderID != nil && *e.OrderID == *s.OrderID {
			return domain.ErrAlreadyExists
		}
		if s.Source == model.SourceFreeTrial && e.Source == model.SourceFreeTrial && e.UserID == s.UserID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockSubscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.OrderID != nil && *s.OrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) list(userID string, activeOnly bool) []*model.Subscription {
	var out []*model.Subscription
	for _, s := range r.data {
		if s.UserID != userID || (activeOnly && !s.IsActive) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out
}

func (r *MockSubscriptionRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	if r.ListActiveByUserFunc != nil {
		return r.ListActiveByUserFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(userID, true), nil
}

func (r *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(userID, false), nil
}

func (r *MockSubscriptionRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.IsActive = false
	return nil
}

func (r *MockSubscriptionRepo) DeactivateActiveByUserAndPlan(ctx context.Context, tx repository.Tx, userID string, plan model.PlanType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.data {
		if s.UserID == userID && s.PlanType == plan && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) HasSource(ctx context.Context, tx repository.Tx, userID string, source model.EntitlementSource) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.UserID == userID && s.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockSubscriptionRepo) CountValidByPlan(ctx context.Context, tx repository.Tx) (map[model.PlanType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.PlanType]int{}
	now := time.Now()
	for _, s := range r.data {
		if s.IsValidAt(now) {
			out[s.PlanType]++
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Put stores s as-is; tests use it to seed state.
func (r *MockSubscriptionRepo) Put(s *model.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.ID] = &cp
}

// ---- Webinar grants ----

type MockGrantRepo struct {
	mu   sync.Mutex
	data []*model.WebinarGrant

	ExistsFunc func(ctx context.Context, tx repository.Tx, userID, webinarID string) (bool, error)
}

var _ repository.WebinarGrantRepository = (*MockGrantRepo)(nil)

func NewMockGrantRepo() *MockGrantRepo { return &MockGrantRepo{} }

func (r *MockGrantRepo) Create(ctx context.Context, tx repository.Tx, g *model.WebinarGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.data {
		if g.OrderID != nil && e.OrderID != nil && *e.OrderID == *g.OrderID {
			return domain.ErrAlreadyExists
		}
		if g.OrderID == nil && e.OrderID == nil && e.UserID == g.UserID && e.WebinarID == g.WebinarID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *g
	r.data = append(r.data, &cp)
	return nil
}

func (r *MockGrantRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.WebinarGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.data {
		if g.OrderID != nil && *g.OrderID == orderID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockGrantRepo) Exists(ctx context.Context, tx repository.Tx, userID, webinarID string) (bool, error) {
	if r.ExistsFunc != nil {
		return r.ExistsFunc(ctx, tx, userID, webinarID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.data {
		if g.UserID == userID && g.WebinarID == webinarID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockGrantRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WebinarGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebinarGrant
	for _, g := range r.data {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockGrantRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Users ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.data {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) SetAccountActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// ---- Webinar catalog ----

type MockCatalog struct {
	mu   sync.Mutex
	data map[string]*model.Webinar
}

var _ repository.WebinarCatalog = (*MockCatalog)(nil)

func NewMockCatalog(ws ...*model.Webinar) *MockCatalog {
	c := &MockCatalog{data: map[string]*model.Webinar{}}
	for _, w := range ws {
		c.data[w.ID] = w
	}
	return c
}

func (c *MockCatalog) FindWebinar(ctx context.Context, tx repository.Tx, id string) (*model.Webinar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// =============================
// Adapters
// =============================

// ---- Mock payment gateway ----

type MockGateway struct {
	mu       sync.Mutex
	seq      int
	Created  []adapter.GatewayOrder
	Payments map[string][]adapter.GatewayPayment

	CreateOrderErr error
	ListErr        error
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{Payments: map[string][]adapter.GatewayPayment{}}
}

func (g *MockGateway) Name() string      { return "mock" }
func (g *MockGateway) PublicKey() string { return "pk_test" }

func (g *MockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	if g.CreateOrderErr != nil {
		return adapter.GatewayOrder{}, g.CreateOrderErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := adapter.GatewayOrder{
		ID:       fmt.Sprintf("order_%03d", g.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	g.Created = append(g.Created, o)
	return o, nil
}

func (g *MockGateway) ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]adapter.GatewayPayment, error) {
	if g.ListErr != nil {
		return nil, g.ListErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Payments[gatewayOrderID], nil
}
