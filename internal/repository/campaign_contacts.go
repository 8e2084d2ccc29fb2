package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

const campaignContactColumns = `
	id, campaign_id, contact_id, segment_id, status, message_id,
	failure_reason, sent_at, delivered_at, opened_at, clicked_at,
	responded_at, failed_at, created_at, updated_at`

// CampaignContactsRepository defines persistence for campaign membership
// rows.
type CampaignContactsRepository interface {
	GetByPair(ctx context.Context, campaignID, contactID int64) (*model.CampaignContact, error)
	GetByMessageID(ctx context.Context, messageID string) (*model.CampaignContact, error)
	Save(ctx context.Context, cc *model.CampaignContact) error
	SelectPendingBatch(ctx context.Context, campaignID int64, segmentID *int64, limit int) ([]model.CampaignContact, error)
	CountByStatus(ctx context.Context, campaignID int64, segmentID *int64) (map[model.ContactStatus]int, error)
	ResetForResume(ctx context.Context, campaignID int64) (int64, error)
}

type CampaignContactsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignContactsRepository(db *sqlx.DB) *CampaignContactsRepositoryImpl {
	return &CampaignContactsRepositoryImpl{db: db}
}

var _ CampaignContactsRepository = (*CampaignContactsRepositoryImpl)(nil)

func (r *CampaignContactsRepositoryImpl) GetByPair(ctx context.Context, campaignID, contactID int64) (*model.CampaignContact, error) {
	var cc model.CampaignContact
	err := r.db.GetContext(ctx, &cc, `
		SELECT `+campaignContactColumns+`
		  FROM campaign_contacts
		 WHERE campaign_id = ? AND contact_id = ? LIMIT 1
	`, campaignID, contactID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *CampaignContactsRepositoryImpl) GetByMessageID(ctx context.Context, messageID string) (*model.CampaignContact, error) {
	var cc model.CampaignContact
	err := r.db.GetContext(ctx, &cc, `
		SELECT `+campaignContactColumns+`
		  FROM campaign_contacts
		 WHERE message_id = ? LIMIT 1
	`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *CampaignContactsRepositoryImpl) Save(ctx context.Context, cc *model.CampaignContact) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_contacts
		   SET status = ?, message_id = ?, failure_reason = ?, sent_at = ?,
		       delivered_at = ?, opened_at = ?, clicked_at = ?, responded_at = ?,
		       failed_at = ?, updated_at = NOW()
		 WHERE id = ?
	`, cc.Status.String(), cc.MessageID, cc.FailureReason, cc.SentAt,
		cc.DeliveredAt, cc.OpenedAt, cc.ClickedAt, cc.RespondedAt,
		cc.FailedAt, cc.ID)
	return err
}

// SelectPendingBatch returns up to limit contacts still pending, oldest
// first. A nil segmentID means campaign-wide.
func (r *CampaignContactsRepositoryImpl) SelectPendingBatch(ctx context.Context, campaignID int64, segmentID *int64, limit int) ([]model.CampaignContact, error) {
	q := `
		SELECT ` + campaignContactColumns + `
		  FROM campaign_contacts
		 WHERE campaign_id = ? AND status = 'pending'`
	args := []any{campaignID}
	if segmentID != nil {
		q += " AND segment_id = ?"
		args = append(args, *segmentID)
	}
	q += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	var rows []model.CampaignContact
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignContactsRepositoryImpl) CountByStatus(ctx context.Context, campaignID int64, segmentID *int64) (map[model.ContactStatus]int, error) {
	q := `
		SELECT status, COUNT(*) AS n
		  FROM campaign_contacts
		 WHERE campaign_id = ?`
	args := []any{campaignID}
	if segmentID != nil {
		q += " AND segment_id = ?"
		args = append(args, *segmentID)
	}
	q += " GROUP BY status"

	var rows []struct {
		Status model.ContactStatus `db:"status"`
		N      int                 `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	counts := make(map[model.ContactStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// ResetForResume puts pending/processing/failed contacts back to a clean
// pending state so a stopped campaign can be restarted safely.
func (r *CampaignContactsRepositoryImpl) ResetForResume(ctx context.Context, campaignID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_contacts
		   SET status = 'pending', failure_reason = NULL, failed_at = NULL,
		       updated_at = NOW()
		 WHERE campaign_id = ? AND status IN ('pending', 'processing', 'failed')
	`, campaignID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
