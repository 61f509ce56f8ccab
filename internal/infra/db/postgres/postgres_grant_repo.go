package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

var _ repository.WebinarGrantRepository = (*grantRepo)(nil)

type grantRepo struct{ pool *pgxpool.Pool }

func NewWebinarGrantRepo(pool *pgxpool.Pool) *grantRepo {
	return &grantRepo{pool: pool}
}

const grantCols = `id, user_id, webinar_id, order_id, source, created_at`

func (r *grantRepo) Create(ctx context.Context, tx repository.Tx, g *model.WebinarGrant) error {
	const q = `
INSERT INTO webinar_grants (` + grantCols + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, g.ID, g.UserID, g.WebinarID, g.OrderID, string(g.Source), g.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *grantRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.WebinarGrant, error) {
	const q = `SELECT ` + grantCols + ` FROM webinar_grants WHERE order_id=$1`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanGrant(row)
}

func (r *grantRepo) Exists(ctx context.Context, tx repository.Tx, userID, webinarID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM webinar_grants WHERE user_id=$1 AND webinar_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, webinarID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func (r *grantRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WebinarGrant, error) {
	const q = `SELECT ` + grantCols + ` FROM webinar_grants WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WebinarGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanGrant(row pgx.Row) (*model.WebinarGrant, error) {
	var (
		g      model.WebinarGrant
		source string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.WebinarID, &g.OrderID, &source, &g.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	g.Source = model.EntitlementSource(source)
	return &g, nil
}
