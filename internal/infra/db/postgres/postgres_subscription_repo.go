package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, order_id, plan_type, source, start_date, end_date, is_active, unlocked_content, note, created_at, updated_at`

// Create relies on the unique order_id (and the one-free-trial index):
// a second insert is a no-op reported as ErrAlreadyExists, and the
// surrounding transaction stays usable.
func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT DO NOTHING;`

	content, err := encodeUnlockState(s.UnlockedContent)
	if err != nil {
		return err
	}
	tag, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.OrderID, string(s.PlanType), string(s.Source),
		s.StartDate, s.EndDate, s.IsActive, content, s.Note, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := forUpdate(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id=$1`, tx)
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE order_id=$1`
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *subscriptionRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE user_id=$1 AND is_active
 ORDER BY start_date DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY start_date DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE subscriptions SET is_active=FALSE, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) DeactivateActiveByUserAndPlan(ctx context.Context, tx repository.Tx, userID string, plan model.PlanType) (int, error) {
	const q = `UPDATE subscriptions SET is_active=FALSE, updated_at=NOW() WHERE user_id=$1 AND plan_type=$2 AND is_active;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, string(plan))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *subscriptionRepo) HasSource(ctx context.Context, tx repository.Tx, userID string, source model.EntitlementSource) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id=$1 AND source=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, string(source))
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func (r *subscriptionRepo) CountValidByPlan(ctx context.Context, tx repository.Tx) (map[model.PlanType]int, error) {
	const q = `
SELECT plan_type, COUNT(*)
  FROM subscriptions
 WHERE is_active AND end_date >= NOW()
 GROUP BY plan_type;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.PlanType]int)
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, scanErr(err)
		}
		out[model.PlanType(plan)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s            model.Subscription
		plan, source string
		content      []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.OrderID, &plan, &source, &s.StartDate, &s.EndDate,
		&s.IsActive, &content, &s.Note, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	s.PlanType = model.PlanType(plan)
	s.Source = model.EntitlementSource(source)
	if len(content) > 0 {
		var st model.UnlockState
		if err := json.Unmarshal(content, &st); err != nil {
			return nil, fmt.Errorf("%w: unlocked_content of %s: %v", domain.ErrReadDatabaseRow, s.ID, err)
		}
		s.UnlockedContent = &st
	}
	return &s, nil
}

// encodeUnlockState returns a value pgx binds as JSONB, or nil for NULL.
func encodeUnlockState(st *model.UnlockState) (interface{}, error) {
	if st == nil {
		return nil, nil
	}
	b, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: encode unlocked content: %v", domain.ErrInvalidArgument, err)
	}
	return string(b), nil
}
