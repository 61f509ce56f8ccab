package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)
var _ repository.WebinarCatalog = (*PostgresUserRepo)(nil)

// PostgresUserRepo covers the user directory and the webinar catalog, the
// two read-mostly collaborators owned outside the entitlement engine.
type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userCols = `id, email, name, is_active, is_admin, registered_at, updated_at`

// Save upserts profile fields. is_active is only changed by SetAccountActive.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (` + userCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, is_admin=$5, updated_at=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Name, u.IsActive, u.IsAdmin, u.RegisteredAt, u.UpdatedAt)
	return err
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`SELECT `+userCols+` FROM users WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	row, err := pickRow(ctx, r.pool, tx, q, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) SetAccountActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	const q = `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.IsAdmin, &u.RegisteredAt, &u.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &u, nil
}

// --- webinar catalog ---

func (r *PostgresUserRepo) FindWebinar(ctx context.Context, tx repository.Tx, id string) (*model.Webinar, error) {
	const q = `SELECT id, title, price, is_paid, starts_at FROM webinars WHERE id=$1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var w model.Webinar
	if err := row.Scan(&w.ID, &w.Title, &w.Price, &w.IsPaid, &w.StartsAt); err != nil {
		return nil, scanErr(err)
	}
	return &w, nil
}

// SaveWebinar upserts a catalog entry. Used by seeding and tests.
func (r *PostgresUserRepo) SaveWebinar(ctx context.Context, tx repository.Tx, w *model.Webinar) error {
	const q = `
INSERT INTO webinars (id, title, price, is_paid, starts_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET title=$2, price=$3, is_paid=$4, starts_at=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.Title, w.Price, w.IsPaid, w.StartsAt)
	return err
}
