package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// EmailEventsRepository appends to the audit log. Rows are write-once; the
// reporting reads go through the ClickHouse repository instead.
type EmailEventsRepository interface {
	Append(ctx context.Context, ev model.EmailEvent) error
}

type EmailEventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEmailEventsRepository(db *sqlx.DB) *EmailEventsRepositoryImpl {
	return &EmailEventsRepositoryImpl{db: db}
}

var _ EmailEventsRepository = (*EmailEventsRepositoryImpl)(nil)

func (r *EmailEventsRepositoryImpl) Append(ctx context.Context, ev model.EmailEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_events
		    (id, campaign_id, contact_id, event_type, event_time, event_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
	`, ev.ID, ev.CampaignID, ev.ContactID, ev.EventType.String(), ev.EventTime, ev.EventData)
	return err
}
