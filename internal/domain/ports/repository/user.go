package repository

import (
	"context"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	SetAccountActive(ctx context.Context, tx Tx, id string, active bool) error
}

// -----------------------------
// Content catalog (read-only)
// -----------------------------

type WebinarCatalog interface {
	FindWebinar(ctx context.Context, tx Tx, id string) (*model.Webinar, error)
}
