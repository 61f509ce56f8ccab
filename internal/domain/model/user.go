package model

import (
	"strings"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"

	"github.com/google/uuid"
)

// User is the slice of the user directory the entitlement engine needs.
// IsActive is the account-level flag flipped on by the first plan purchase;
// it is distinct from Subscription.IsActive.
type User struct {
	ID           string
	Email        string
	Name         string
	IsActive     bool
	IsAdmin      bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

func NewUser(id, email, name string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(name),
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// Webinar is the catalog entry consumed for PaidWebinar purchases.
type Webinar struct {
	ID       string
	Title    string
	Price    int64 // minor units; 0 means free
	IsPaid   bool
	StartsAt *time.Time
}
