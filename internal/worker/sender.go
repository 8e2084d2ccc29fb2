package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/content"
	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/kafka"
	"github.com/doug7410/samplepal-leads-sub001/internal/mailer"
	"github.com/doug7410/samplepal-leads-sub001/internal/metrics"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/throttle"
	"github.com/doug7410/samplepal-leads-sub001/internal/util"
)

// NoMessageIDReason is the fixed failure reason recorded when the
// transport accepts a send but returns no provider message id.
const NoMessageIDReason = "no message id returned"

// Sender consumes send jobs from Kafka and performs the per-recipient send:
// re-check preconditions, render, throttle, dispatch, record the outcome.
// Failures become data on the recipient row, never errors past processOne.
type Sender struct {
	Consumer         *kafka.Consumer
	Campaigns        repository.CampaignsRepository
	CampaignContacts repository.CampaignContactsRepository
	Contacts         repository.ContactsRepository
	Sequences        repository.SequencesRepository
	Machine          *delivery.Machine
	Pipeline         *content.Pipeline
	SequencePipeline *content.Pipeline
	Router           *mailer.Router
	Throttle         throttle.Limiter
	Lane             model.SendLane
	Workers          int
	Log              *zap.Logger
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Sender) Run(ctx context.Context) error {
	if !w.Lane.Valid() {
		return errors.New("sender: invalid lane")
	}
	if w.Workers <= 0 {
		w.Workers = 16
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.Log.Warn("kafka fetch failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	for i := 0; i < w.Workers; i++ {
		go w.runProcessor(ctx, msgCh)
	}

	<-ctx.Done()
	return nil
}

func (w *Sender) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m)
		}
	}
}

func (w *Sender) processOne(ctx context.Context, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
		// poison message: commit and skip
		_ = w.Consumer.Commit(ctx, m)
		w.Log.Warn("bad send envelope", zap.Error(err))
		return
	}

	switch env.Lane {
	case model.LaneSequence:
		w.processSequenceSend(ctx, env)
	default:
		w.processCampaignSend(ctx, env)
	}

	// Always commit; redelivery is harmless because every mutation
	// re-checks its status precondition first.
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Warn("kafka commit failed", zap.Error(err))
	}
}

// processCampaignSend performs one campaign-lane send. Precondition races
// (campaign paused, contact no longer pending) are silent no-ops.
func (w *Sender) processCampaignSend(ctx context.Context, env model.Envelope) {
	campaign, err := w.Campaigns.GetByID(ctx, env.CampaignID)
	if err != nil {
		w.skip(env, "campaign load failed", err)
		return
	}
	if !campaign.Status.Actionable() {
		w.skip(env, "campaign not actionable", nil)
		return
	}

	cc, err := w.CampaignContacts.GetByPair(ctx, env.CampaignID, env.ContactID)
	if err != nil {
		w.skip(env, "campaign contact load failed", err)
		return
	}
	if cc.Status != model.StatusPending {
		w.skip(env, "contact no longer pending", nil)
		return
	}

	contact, err := w.Contacts.GetByID(ctx, env.ContactID)
	if err != nil {
		w.skip(env, "contact load failed", err)
		return
	}
	if contact.Unsubscribed {
		_, _ = w.Machine.Apply(ctx, env.CampaignID, env.ContactID, delivery.Event{
			Type: model.EventCancelled,
			Data: map[string]any{"reason": "contact unsubscribed"},
		})
		metrics.EmailsTotal.WithLabelValues("skipped", string(w.Lane)).Inc()
		return
	}

	subject, body := campaign.Subject, campaign.Content
	if env.SegmentID != nil {
		if seg, err := w.Campaigns.GetSegment(ctx, *env.SegmentID); err == nil {
			if seg.Subject != nil {
				subject = *seg.Subject
			}
			if seg.Content != nil {
				body = *seg.Content
			}
		}
	}

	sctx := content.SendContext{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		Contact:      *contact,
	}
	if campaign.Type == model.CampaignTypeCompany && contact.CompanyID != nil {
		if others, err := w.Contacts.ListByCompany(ctx, *contact.CompanyID); err == nil {
			sctx.Recipients = others
		}
	}

	html := w.Pipeline.Render(body, sctx)
	subject = content.Substitute(subject, sctx)

	email := mailer.Email{
		To:        util.NormalizeEmail(contact.Email),
		Subject:   subject,
		HTML:      html,
		FromEmail: campaign.FromEmail,
		FromName:  campaign.FromName,
		ReplyTo:   campaign.ReplyTo,
		Headers: map[string]string{
			"X-Campaign-ID": strconv.FormatInt(campaign.ID, 10),
			"X-Contact-ID":  strconv.FormatInt(contact.ID, 10),
		},
	}

	msgID, sendErr := w.send(ctx, email)

	ev := delivery.Event{Type: model.EventSent, MessageID: msgID}
	if sendErr != nil {
		ev = delivery.Event{Type: model.EventFailed, Reason: sendErr.Error()}
	}
	if _, err := w.Machine.Apply(ctx, env.CampaignID, env.ContactID, ev); err != nil {
		w.Log.Error("record send outcome failed",
			zap.Int64("campaign_id", env.CampaignID),
			zap.Int64("contact_id", env.ContactID),
			zap.Error(err))
		return
	}

	if sendErr != nil {
		metrics.EmailsTotal.WithLabelValues("failed", string(w.Lane)).Inc()
	} else {
		metrics.EmailsTotal.WithLabelValues("sent", string(w.Lane)).Inc()
	}
}

// processSequenceSend performs one sequence-lane send, gated by the triple
// race guard: sequence active, enrollment active, email still pending.
func (w *Sender) processSequenceSend(ctx context.Context, env model.Envelope) {
	se, err := w.Sequences.GetSequenceEmail(ctx, env.SequenceEmailID)
	if err != nil {
		w.skip(env, "sequence email load failed", err)
		return
	}
	if se.Status != model.StatusPending {
		w.skip(env, "sequence email no longer pending", nil)
		return
	}

	seq, err := w.Sequences.GetSequence(ctx, se.SequenceID)
	if err != nil {
		w.skip(env, "sequence load failed", err)
		return
	}
	if seq.Status != model.SequenceActive {
		w.skip(env, "sequence not active", nil)
		return
	}

	steps, err := w.Sequences.ListSteps(ctx, se.SequenceID)
	if err != nil {
		w.skip(env, "sequence steps load failed", err)
		return
	}
	var step *model.SequenceStep
	for i := range steps {
		if steps[i].ID == se.SequenceStepID {
			step = &steps[i]
			break
		}
	}
	if step == nil {
		w.skip(env, "sequence step missing", nil)
		return
	}

	contact, err := w.Contacts.GetByID(ctx, se.ContactID)
	if err != nil {
		w.skip(env, "contact load failed", err)
		return
	}
	if contact.Unsubscribed {
		w.skip(env, "contact unsubscribed", nil)
		return
	}

	sctx := content.SendContext{Contact: *contact}
	html := w.SequencePipeline.Render(step.Content, sctx)
	subject := content.Substitute(step.Subject, sctx)

	email := mailer.Email{
		To:        util.NormalizeEmail(contact.Email),
		Subject:   subject,
		HTML:      html,
		FromEmail: seq.FromEmail,
		FromName:  seq.FromName,
		ReplyTo:   seq.ReplyTo,
		Headers: map[string]string{
			"X-Sequence-Email-ID": strconv.FormatInt(se.ID, 10),
		},
	}

	msgID, sendErr := w.send(ctx, email)

	ev := delivery.Event{Type: model.EventSent, MessageID: msgID}
	if sendErr != nil {
		ev = delivery.Event{Type: model.EventFailed, Reason: sendErr.Error()}
	}
	if _, err := w.Machine.ApplySequence(ctx, se.ID, ev); err != nil {
		w.Log.Error("record sequence send outcome failed",
			zap.Int64("sequence_email_id", se.ID),
			zap.Error(err))
		return
	}

	if sendErr != nil {
		metrics.EmailsTotal.WithLabelValues("failed", string(w.Lane)).Inc()
	} else {
		metrics.EmailsTotal.WithLabelValues("sent", string(w.Lane)).Inc()
	}
}

// send waits for the shared throttle slot, dispatches, and normalizes the
// empty-message-id case into a failure.
func (w *Sender) send(ctx context.Context, email mailer.Email) (string, error) {
	if err := throttle.Wait(ctx, w.Throttle); err != nil {
		return "", fmt.Errorf("throttle: %w", err)
	}
	msgID, err := w.Router.Send(ctx, email)
	if err != nil {
		return "", err
	}
	if msgID == "" {
		return "", errors.New(NoMessageIDReason)
	}
	return msgID, nil
}

func (w *Sender) skip(env model.Envelope, reason string, err error) {
	metrics.EmailsTotal.WithLabelValues("skipped", string(w.Lane)).Inc()
	w.Log.Info("send skipped",
		zap.String("send_id", env.ID),
		zap.String("lane", string(env.Lane)),
		zap.Int64("contact_id", env.ContactID),
		zap.String("reason", reason),
		zap.Error(err))
}
