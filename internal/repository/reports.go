package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// CHEventsRepository lists email events from ClickHouse, fed by the
// replication pipeline off the MySQL email_events table.
type CHEventsRepository interface {
	ListByCampaign(ctx context.Context, campaignID int64, eventType model.EmailEventType, limit, offset int) ([]model.EmailEvent, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

func (r *chEventsRepository) ListByCampaign(ctx context.Context, campaignID int64, eventType model.EmailEventType, limit, offset int) ([]model.EmailEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, campaign_id, contact_id, event_type, event_time, event_data, created_at
		FROM samplepal.email_events
		WHERE campaign_id = ?
	`
	args := []any{campaignID}

	if eventType != "" {
		q += " AND event_type = ?"
		args = append(args, eventType.String())
	}

	q += " ORDER BY event_time DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.EmailEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
