// Package sequence advances enrolled contacts through ordered email steps.
package sequence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
)

// ExitCheck decides whether an enrollment should leave the sequence before
// its next step goes out. Returning ok=false means keep going. The rule set
// is pluggable; DefaultExitCheck covers the stock criteria.
type ExitCheck func(sc model.SequenceContact, seq *model.Sequence, contact *model.Contact) (model.ExitReason, bool)

// DefaultExitCheck exits contacts who unsubscribed, converted, or whose
// sequence is no longer active. Step exhaustion is handled by the engine
// itself as completion, not an exit.
func DefaultExitCheck(_ model.SequenceContact, seq *model.Sequence, contact *model.Contact) (model.ExitReason, bool) {
	switch {
	case contact.Unsubscribed:
		return model.ExitUnsubscribed, true
	case contact.DealStatus.Terminal():
		return model.ExitConverted, true
	case seq.Status != model.SequenceActive:
		return model.ExitSequenceOff, true
	default:
		return "", false
	}
}

// SendEnqueuer queues one step email for asynchronous sending.
type SendEnqueuer interface {
	EnqueueSequenceSend(ctx context.Context, sequenceEmailID, contactID int64) error
}

// Engine processes due enrollments: evaluate exit criteria, and when none
// fire, queue the current step's email and move the cursor forward.
// Invocations are re-entrant; the forward-only step guard in the repository
// absorbs concurrent passes.
type Engine struct {
	Sequences repository.SequencesRepository
	Contacts  repository.ContactsRepository
	Enqueuer  SendEnqueuer
	ExitCheck ExitCheck
	BatchSize int
	Log       *zap.Logger
}

// Run handles one engine pass over everything due at now. Per-contact
// failures are logged and isolated.
func (e *Engine) Run(ctx context.Context, now time.Time) error {
	check := e.ExitCheck
	if check == nil {
		check = DefaultExitCheck
	}
	limit := e.BatchSize
	if limit <= 0 {
		limit = 100
	}

	due, err := e.Sequences.DueContacts(ctx, now, limit)
	if err != nil {
		return err
	}

	for _, sc := range due {
		if err := e.processContact(ctx, sc, now, check); err != nil {
			e.Log.Error("sequence contact processing failed",
				zap.Int64("sequence_contact_id", sc.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) processContact(ctx context.Context, sc model.SequenceContact, now time.Time, check ExitCheck) error {
	seq, err := e.Sequences.GetSequence(ctx, sc.SequenceID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			e.Log.Warn("enrollment for unknown sequence", zap.Int64("sequence_id", sc.SequenceID))
			return nil
		}
		return err
	}
	contact, err := e.Contacts.GetByID(ctx, sc.ContactID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			e.Log.Warn("enrollment for unknown contact", zap.Int64("contact_id", sc.ContactID))
			return nil
		}
		return err
	}

	// Exit criteria win over any pending send.
	if reason, exit := check(sc, seq, contact); exit {
		e.Log.Info("sequence contact exited",
			zap.Int64("sequence_contact_id", sc.ID),
			zap.String("reason", string(reason)))
		return e.Sequences.ExitContact(ctx, sc.ID, reason, now)
	}

	steps, err := e.Sequences.ListSteps(ctx, sc.SequenceID)
	if err != nil {
		return err
	}
	if sc.CurrentStep < 1 || sc.CurrentStep > len(steps) {
		return e.Sequences.CompleteContact(ctx, sc.ID)
	}
	step := steps[sc.CurrentStep-1]

	se := &model.SequenceEmail{
		SequenceID:        sc.SequenceID,
		SequenceStepID:    step.ID,
		SequenceContactID: sc.ID,
		ContactID:         sc.ContactID,
	}
	if err := e.Sequences.CreateSequenceEmail(ctx, se); err != nil {
		return err
	}
	if err := e.Enqueuer.EnqueueSequenceSend(ctx, se.ID, sc.ContactID); err != nil {
		return err
	}

	sc.CurrentStep++
	if sc.CurrentStep > len(steps) {
		// Last step queued; the enrollment is done.
		sc.Status = model.SeqContactCompleted
		sc.NextSendAt = nil
	} else {
		next := NextSendTime(now, steps[sc.CurrentStep-1])
		sc.NextSendAt = &next
	}
	return e.Sequences.AdvanceContact(ctx, &sc)
}

// NextSendTime computes when a step becomes due: its delay in days from
// the previous send, pinned to the step's hour of day when configured.
func NextSendTime(from time.Time, step model.SequenceStep) time.Time {
	t := from.AddDate(0, 0, step.DelayDays)
	if step.SendHour != nil {
		t = time.Date(t.Year(), t.Month(), t.Day(), *step.SendHour, 0, 0, 0, t.Location())
	}
	return t
}
