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

const sequenceEmailColumns = `
	id, sequence_id, sequence_step_id, sequence_contact_id, contact_id,
	status, message_id, failure_reason, sent_at, delivered_at, opened_at,
	clicked_at, created_at, updated_at`

// SequencesRepository defines persistence for sequences, their steps,
// enrollments, and per-step emails.
type SequencesRepository interface {
	GetSequence(ctx context.Context, id int64) (*model.Sequence, error)
	ListSteps(ctx context.Context, sequenceID int64) ([]model.SequenceStep, error)
	DueContacts(ctx context.Context, now time.Time, limit int) ([]model.SequenceContact, error)
	AdvanceContact(ctx context.Context, sc *model.SequenceContact) error
	ExitContact(ctx context.Context, id int64, reason model.ExitReason, at time.Time) error
	CompleteContact(ctx context.Context, id int64) error

	CreateSequenceEmail(ctx context.Context, se *model.SequenceEmail) error
	GetSequenceEmail(ctx context.Context, id int64) (*model.SequenceEmail, error)
	GetSequenceEmailByMessageID(ctx context.Context, messageID string) (*model.SequenceEmail, error)
	SaveSequenceEmail(ctx context.Context, se *model.SequenceEmail) error
}

type SequencesRepositoryImpl struct {
	db *sqlx.DB
}

func NewSequencesRepository(db *sqlx.DB) *SequencesRepositoryImpl {
	return &SequencesRepositoryImpl{db: db}
}

var _ SequencesRepository = (*SequencesRepositoryImpl)(nil)

func (r *SequencesRepositoryImpl) GetSequence(ctx context.Context, id int64) (*model.Sequence, error) {
	var s model.Sequence
	err := r.db.GetContext(ctx, &s, `
		SELECT id, name, status, from_email, from_name, reply_to, created_at, updated_at
		  FROM sequences
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

func (r *SequencesRepositoryImpl) ListSteps(ctx context.Context, sequenceID int64) ([]model.SequenceStep, error) {
	var rows []model.SequenceStep
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, sequence_id, position, subject, content, delay_days,
		       send_hour, created_at, updated_at
		  FROM sequence_steps
		 WHERE sequence_id = ?
		 ORDER BY position
	`, sequenceID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DueContacts returns active enrollments of active sequences whose
// next_send_at has passed, oldest first.
func (r *SequencesRepositoryImpl) DueContacts(ctx context.Context, now time.Time, limit int) ([]model.SequenceContact, error) {
	var rows []model.SequenceContact
	err := r.db.SelectContext(ctx, &rows, `
		SELECT sc.id, sc.sequence_id, sc.contact_id, sc.status, sc.current_step,
		       sc.next_send_at, sc.entered_at, sc.exited_at, sc.exit_reason,
		       sc.created_at, sc.updated_at
		  FROM sequence_contacts sc
		  JOIN sequences s ON s.id = sc.sequence_id
		 WHERE sc.status = 'active'
		   AND s.status = 'active'
		   AND sc.next_send_at IS NOT NULL
		   AND sc.next_send_at <= ?
		 ORDER BY sc.next_send_at
		 LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdvanceContact persists a forward step move. The WHERE clause guards
// against concurrent engine passes rewinding the step counter.
func (r *SequencesRepositoryImpl) AdvanceContact(ctx context.Context, sc *model.SequenceContact) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sequence_contacts
		   SET status = ?, current_step = ?, next_send_at = ?, updated_at = NOW()
		 WHERE id = ? AND current_step < ?
	`, sc.Status.String(), sc.CurrentStep, sc.NextSendAt, sc.ID, sc.CurrentStep)
	return err
}

func (r *SequencesRepositoryImpl) ExitContact(ctx context.Context, id int64, reason model.ExitReason, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sequence_contacts
		   SET status = 'exited', exit_reason = ?, exited_at = ?,
		       next_send_at = NULL, updated_at = NOW()
		 WHERE id = ? AND status = 'active'
	`, string(reason), at, id)
	return err
}

// CompleteContact marks an enrollment that has run out of steps.
func (r *SequencesRepositoryImpl) CompleteContact(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sequence_contacts
		   SET status = 'completed', next_send_at = NULL, updated_at = NOW()
		 WHERE id = ? AND status = 'active'
	`, id)
	return err
}

func (r *SequencesRepositoryImpl) CreateSequenceEmail(ctx context.Context, se *model.SequenceEmail) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sequence_emails
		    (sequence_id, sequence_step_id, sequence_contact_id, contact_id,
		     status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', NOW(), NOW())
	`, se.SequenceID, se.SequenceStepID, se.SequenceContactID, se.ContactID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	se.ID = id
	se.Status = model.StatusPending
	return nil
}

func (r *SequencesRepositoryImpl) GetSequenceEmail(ctx context.Context, id int64) (*model.SequenceEmail, error) {
	var se model.SequenceEmail
	err := r.db.GetContext(ctx, &se, `
		SELECT `+sequenceEmailColumns+`
		  FROM sequence_emails
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &se, nil
}

func (r *SequencesRepositoryImpl) GetSequenceEmailByMessageID(ctx context.Context, messageID string) (*model.SequenceEmail, error) {
	var se model.SequenceEmail
	err := r.db.GetContext(ctx, &se, `
		SELECT `+sequenceEmailColumns+`
		  FROM sequence_emails
		 WHERE message_id = ? LIMIT 1
	`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &se, nil
}

func (r *SequencesRepositoryImpl) SaveSequenceEmail(ctx context.Context, se *model.SequenceEmail) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sequence_emails
		   SET status = ?, message_id = ?, failure_reason = ?, sent_at = ?,
		       delivered_at = ?, opened_at = ?, clicked_at = ?, updated_at = NOW()
		 WHERE id = ?
	`, se.Status.String(), se.MessageID, se.FailureReason, se.SentAt,
		se.DeliveredAt, se.OpenedAt, se.ClickedAt, se.ID)
	return err
}
