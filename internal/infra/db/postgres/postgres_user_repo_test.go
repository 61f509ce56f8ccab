//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPostgresUserRepo(testPool)

	t.Run("save and find", func(t *testing.T) {
		cleanup(t)
		u := seedUser(t, ctx, "Alice@Example.com")
		got, err := repo.FindByID(ctx, nil, u.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Email != "alice@example.com" || got.IsActive {
			t.Errorf("unexpected user %+v", got)
		}
		byEmail, err := repo.FindByEmail(ctx, nil, " ALICE@example.com")
		if err != nil || byEmail.ID != u.ID {
			t.Errorf("FindByEmail: %+v %v", byEmail, err)
		}
	})

	t.Run("save does not touch the active flag", func(t *testing.T) {
		cleanup(t)
		u := seedUser(t, ctx, "a@example.com")
		if err := repo.SetAccountActive(ctx, nil, u.ID, true); err != nil {
			t.Fatalf("activate: %v", err)
		}
		u.Name = "Renamed"
		u.IsActive = false
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, _ := repo.FindByID(ctx, nil, u.ID)
		if !got.IsActive || got.Name != "Renamed" {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.SetAccountActive(ctx, nil, "nope", true); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("webinar catalog", func(t *testing.T) {
		cleanup(t)
		starts := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
		w := &model.Webinar{ID: "web-1", Title: "Masterclass", Price: 49900, IsPaid: true, StartsAt: &starts}
		if err := repo.SaveWebinar(ctx, nil, w); err != nil {
			t.Fatalf("save webinar: %v", err)
		}
		got, err := repo.FindWebinar(ctx, nil, "web-1")
		if err != nil {
			t.Fatalf("find webinar: %v", err)
		}
		if got.Price != 49900 || !got.IsPaid || got.StartsAt == nil || !got.StartsAt.Equal(starts) {
			t.Errorf("unexpected webinar %+v", got)
		}
	})
}

func TestWebhookEventRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewWebhookEventRepo(testPool)
	cleanup(t)

	e := &model.WebhookEvent{
		ID:             uuid.NewString(),
		Provider:       "razorpay",
		EventID:        "evt_1",
		EventType:      "payment.captured",
		GatewayOrderID: "order_A",
		Payload:        []byte(`{"event":"payment.captured"}`),
		CreatedAt:      time.Now(),
	}
	if err := repo.Insert(ctx, nil, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	again := *e
	again.ID = uuid.NewString()
	if err := repo.Insert(ctx, nil, &again); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if err := repo.MarkProcessed(ctx, nil, e.ID, "UnknownOrder", time.Now()); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	got, err := repo.FindByEventID(ctx, nil, "razorpay", "evt_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ProcessedAt == nil || got.ProcessingError != "UnknownOrder" || string(got.Payload) != string(e.Payload) {
		t.Errorf("unexpected event %+v", got)
	}
}
