package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Insert(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, provider, event_id, event_type, gateway_order_id, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (provider, event_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Provider, e.EventID, e.EventType, e.GatewayOrderID, e.Payload, e.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *webhookEventRepo) FindByEventID(ctx context.Context, tx repository.Tx, provider, eventID string) (*model.WebhookEvent, error) {
	const q = `
SELECT id, provider, event_id, event_type, gateway_order_id, payload, processed_at, processing_error, created_at
  FROM webhook_events
 WHERE provider=$1 AND event_id=$2`
	row, err := pickRow(ctx, r.pool, tx, q, provider, eventID)
	if err != nil {
		return nil, err
	}
	var e model.WebhookEvent
	if err := row.Scan(&e.ID, &e.Provider, &e.EventID, &e.EventType, &e.GatewayOrderID, &e.Payload,
		&e.ProcessedAt, &e.ProcessingError, &e.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &e, nil
}

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, processingErr string, at time.Time) error {
	const q = `UPDATE webhook_events SET processed_at=$2, processing_error=$3 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at, processingErr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
