package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

const contactColumns = `
	id, company_id, first_name, last_name, email, job_title, company_name,
	has_been_contacted, deal_status, unsubscribed, unsubscribed_at,
	created_at, updated_at`

type ContactsRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	Save(ctx context.Context, c *model.Contact) error
	ListByCompany(ctx context.Context, companyID int64) ([]model.Contact, error)
}

type ContactsRepositoryImpl struct {
	db *sqlx.DB
}

func NewContactsRepository(db *sqlx.DB) *ContactsRepositoryImpl {
	return &ContactsRepositoryImpl{db: db}
}

var _ ContactsRepository = (*ContactsRepositoryImpl)(nil)

func (r *ContactsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := r.db.GetContext(ctx, &c, `
		SELECT `+contactColumns+`
		  FROM contacts
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

func (r *ContactsRepositoryImpl) Save(ctx context.Context, c *model.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		   SET has_been_contacted = ?, deal_status = ?, unsubscribed = ?,
		       unsubscribed_at = ?, updated_at = NOW()
		 WHERE id = ?
	`, c.HasBeenContacted, c.DealStatus.String(), c.Unsubscribed, c.UnsubscribedAt, c.ID)
	return err
}

// ListByCompany returns the contacts at a company ordered by id, used to
// build the co-recipient list on company-wide campaigns.
func (r *ContactsRepositoryImpl) ListByCompany(ctx context.Context, companyID int64) ([]model.Contact, error) {
	var rows []model.Contact
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+contactColumns+`
		  FROM contacts
		 WHERE company_id = ?
		 ORDER BY id
	`, companyID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
