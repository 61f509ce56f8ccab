//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/usecase"
)

func grantAdmin(t *testing.T, e *testEnv, userID string, plan model.PlanType) *model.Subscription {
	t.Helper()
	res, err := e.resolver.Grant(context.Background(), usecase.GrantInput{UserID: userID, PlanType: plan, Source: model.SourceAdmin})
	require.NoError(t, err)
	return res.Subscription
}

func TestAccessGate_Evaluate(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour

	t.Run("never subscribed", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		d, err := e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonNeverSubscribed, d.Reason)
	})

	t.Run("unknown user", func(t *testing.T) {
		e := newTestEnv(t)
		d, err := e.gate.Evaluate(ctx, "ghost", model.AnyActiveSubscription())
		require.NoError(t, err)
		assert.Equal(t, model.ReasonUnknownUser, d.Reason)
	})

	t.Run("four day access ends exactly at end date", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		s := grantAdmin(t, e, "u1", model.PlanFourDay)

		d, err := e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, model.ReasonFourDayAccess, d.Reason)

		e.clock.Advance(s.EndDate.Sub(t0))
		d, _ = e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		assert.True(t, d.Allowed, "still valid at the end instant")

		e.clock.Advance(time.Second)
		d, _ = e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonNoActiveEntitlement, d.Reason)
	})

	t.Run("six month only content requires upgrade from four day", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanFourDay)

		d, err := e.gate.Evaluate(ctx, "u1", model.SixMonthOnly())
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonUpgradeRequired, d.Reason)
	})

	t.Run("upgrade switches to six month immediately", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanFourDay)
		e.clock.Advance(2 * day)
		grantAdmin(t, e, "u1", model.PlanSixMonth)

		d, err := e.gate.Evaluate(ctx, "u1", model.SixMonthOnly())
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, model.ReasonSixMonthAccess, d.Reason)

		e.clock.Advance(10 * day)
		d, _ = e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		assert.Equal(t, model.ReasonSixMonthAccess, d.Reason)
	})

	t.Run("valid six month wins over a newer four day", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanSixMonth)
		e.clock.Advance(day)
		grantAdmin(t, e, "u1", model.PlanFourDay)

		d, _ := e.gate.Evaluate(ctx, "u1", model.SixMonthOnly())
		assert.True(t, d.Allowed)
	})

	t.Run("drip content follows the unlock schedule", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanFourDay)

		d, _ := e.gate.Evaluate(ctx, "u1", model.DripContent(1))
		assert.True(t, d.Allowed)
		d, _ = e.gate.Evaluate(ctx, "u1", model.DripContent(2))
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonContentLocked, d.Reason)

		e.clock.Advance(3 * day)
		d, _ = e.gate.Evaluate(ctx, "u1", model.DripContent(1))
		assert.Equal(t, model.ReasonContentLocked, d.Reason, "day 1 expires after three days")
	})

	t.Run("webinar grant is independent of subscriptions", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanSixMonth)

		d, _ := e.gate.Evaluate(ctx, "u1", model.SpecificWebinarGrant("web-1"))
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonNoWebinarGrant, d.Reason)

		_, err := e.resolver.Grant(ctx, usecase.GrantInput{UserID: "u1", PlanType: model.PlanPaidWebinar, Source: model.SourceAdmin, WebinarID: "web-1"})
		require.NoError(t, err)
		d, _ = e.gate.Evaluate(ctx, "u1", model.SpecificWebinarGrant("web-1"))
		assert.True(t, d.Allowed)
		assert.Equal(t, model.ReasonWebinarGrant, d.Reason)
	})

	t.Run("storage failure fails closed", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, "u1")
		grantAdmin(t, e, "u1", model.PlanSixMonth)
		e.subs.ListActiveByUserFunc = func(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
			return nil, errors.New("connection refused")
		}

		d, err := e.gate.Evaluate(ctx, "u1", model.AnyActiveSubscription())
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
		assert.False(t, d.Allowed)
		assert.Equal(t, model.ReasonStorageUnavailable, d.Reason)
	})

	t.Run("invalid capability", func(t *testing.T) {
		e := newTestEnv(t)
		d, err := e.gate.Evaluate(ctx, "u1", model.DripContent(0))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.False(t, d.Allowed)
	})
}

func TestAccessGate_Summary(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.addUser(t, "u1")
	grantAdmin(t, e, "u1", model.PlanFourDay)
	e.clock.Advance(time.Hour)
	six := grantAdmin(t, e, "u1", model.PlanSixMonth)

	sum, err := e.gate.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sum.Subscriptions, 2)
	require.NotNil(t, sum.Current)
	assert.Equal(t, six.ID, sum.Current.ID)
	assert.True(t, sum.User.IsActive)

	_, err = e.gate.Summary(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
