//go:build !integration

package web

import (
	"context"
	"sync"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

// --- Mock Services ---

type mockGrantService struct {
	mu     sync.Mutex
	inputs []usecase.GrantInput
	res    *usecase.Resolution
	err    error
}

func (m *mockGrantService) Grant(ctx context.Context, in usecase.GrantInput) (*usecase.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

type mockSummaryService struct {
	summaries map[string]*usecase.EntitlementSummary
	err       error
}

func (m *mockSummaryService) Summary(ctx context.Context, userID string) (*usecase.EntitlementSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.summaries[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s, nil
}

type mockOrderService struct {
	orders map[string]*model.Order
	err    error
}

func (m *mockOrderService) Get(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[gatewayOrderID]
	if !ok {
		return nil, domain.ErrUnknownOrder
	}
	return o, nil
}

type mockReconciler struct {
	captured bool
	err      error
	calls    []string
}

func (m *mockReconciler) ReconcileOrder(ctx context.Context, gatewayOrderID string) (bool, error) {
	m.calls = append(m.calls, gatewayOrderID)
	return m.captured, m.err
}
