package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// CampaignsRepository defines persistence for campaigns and their segments.
type CampaignsRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	ListByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	MarkFinished(ctx context.Context, id int64, status model.CampaignStatus, at time.Time) error
	GetSegment(ctx context.Context, id int64) (*model.CampaignSegment, error)
	UpdateSegmentStatus(ctx context.Context, id int64, status model.SegmentStatus, completedAt *time.Time) error
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

func (r *CampaignsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, type, status, subject, content, from_email, from_name,
		       reply_to, completed_at, created_at, updated_at
		  FROM campaigns
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignsRepositoryImpl) ListByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error) {
	var out []model.Campaign
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, name, type, status, subject, content, from_email, from_name,
		       reply_to, completed_at, created_at, updated_at
		  FROM campaigns
		 WHERE status = ?
		 ORDER BY id
	`, status.String())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CampaignsRepositoryImpl) UpdateStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), id)
	return err
}

// MarkFinished stamps the terminal outcome (completed or failed).
func (r *CampaignsRepositoryImpl) MarkFinished(ctx context.Context, id int64, status model.CampaignStatus, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, completed_at = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), at, id)
	return err
}

func (r *CampaignsRepositoryImpl) GetSegment(ctx context.Context, id int64) (*model.CampaignSegment, error) {
	var s model.CampaignSegment
	err := r.db.GetContext(ctx, &s, `
		SELECT id, campaign_id, name, position, subject, content, status,
		       completed_at, created_at, updated_at
		  FROM campaign_segments
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CampaignsRepositoryImpl) UpdateSegmentStatus(ctx context.Context, id int64, status model.SegmentStatus, completedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_segments SET status = ?, completed_at = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), completedAt, id)
	return err
}
