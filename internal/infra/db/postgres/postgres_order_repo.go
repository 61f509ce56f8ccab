package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderCols = `id, gateway_order_id, gateway_payment_id, signature, receipt, user_id, amount, currency, plan_type, webinar_id, status, created_at, updated_at, captured_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.GatewayOrderID, o.GatewayPaymentID, o.Signature, o.Receipt, o.UserID,
		o.Amount, o.Currency, string(o.PlanType), o.WebinarID, string(o.Status),
		o.CreatedAt, o.UpdatedAt, o.CapturedAt)
	return err
}

func (r *orderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.Order, error) {
	q := forUpdate(`SELECT `+orderCols+` FROM orders WHERE gateway_order_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE gateway_payment_id=$1 LIMIT 1`
	row, err := pickRow(ctx, r.pool, tx, q, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

// TransitionStatus is a conditional update: concurrent callers serialize on
// the row lock and only the first one sees status='pending'.
func (r *orderRepo) TransitionStatus(ctx context.Context, tx repository.Tx, gatewayOrderID string, to model.OrderStatus, paymentID, signature *string, at time.Time) (bool, error) {
	if !to.Terminal() {
		return false, domain.ErrInvalidTransition
	}
	const q = `
UPDATE orders
   SET status=$2,
       gateway_payment_id=COALESCE($3, gateway_payment_id),
       signature=COALESCE($4, signature),
       updated_at=$5,
       captured_at=CASE WHEN $2::text = 'captured' THEN $5 ELSE captured_at END
 WHERE gateway_order_id=$1 AND status='pending';`

	tag, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID, string(to), paymentID, signature, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderCols + ` FROM orders WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o            model.Order
		plan, status string
	)
	if err := row.Scan(&o.ID, &o.GatewayOrderID, &o.GatewayPaymentID, &o.Signature, &o.Receipt, &o.UserID,
		&o.Amount, &o.Currency, &plan, &o.WebinarID, &status, &o.CreatedAt, &o.UpdatedAt, &o.CapturedAt); err != nil {
		return nil, scanErr(err)
	}
	o.PlanType = model.PlanType(plan)
	o.Status = model.OrderStatus(status)
	return &o, nil
}
