package delivery

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// ErrNotFound is returned by stores when the referenced record does not
// exist.
var ErrNotFound = errors.New("record not found")

// Outcome reports what applying an event did. Stale and unknown-target are
// deliberately distinct so out-of-order duplicates and dangling references
// stay separately observable.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeStale
	OutcomeUnknownTarget
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeUnknownTarget:
		return "unknown_target"
	default:
		return "invalid"
	}
}

// Event is one status-transition request against a campaign contact or a
// sequence email.
type Event struct {
	Type       model.EmailEventType
	MessageID  string
	Reason     string // required for failed
	OccurredAt time.Time
	Data       map[string]any
}

// Store is the persistence port the machine mutates campaign contacts
// through.
type Store interface {
	GetCampaignContact(ctx context.Context, campaignID, contactID int64) (*model.CampaignContact, error)
	SaveCampaignContact(ctx context.Context, cc *model.CampaignContact) error
	GetContact(ctx context.Context, id int64) (*model.Contact, error)
	SaveContact(ctx context.Context, c *model.Contact) error
	AppendEvent(ctx context.Context, ev model.EmailEvent) error
}

// SequenceEmailStore is the persistence port for sequence-email upgrades.
type SequenceEmailStore interface {
	GetSequenceEmail(ctx context.Context, id int64) (*model.SequenceEmail, error)
	SaveSequenceEmail(ctx context.Context, se *model.SequenceEmail) error
}

// Machine applies status events under the monotonic upgrade rule: a status
// only ever advances along the rank order, event arrival order does not
// matter, and the audit log records every event regardless.
type Machine struct {
	store    Store
	seqStore SequenceEmailStore
	log      *zap.Logger
	newID    func() string
}

func NewMachine(store Store, seqStore SequenceEmailStore, log *zap.Logger) *Machine {
	return &Machine{
		store:    store,
		seqStore: seqStore,
		log:      log,
		newID:    func() string { return ulid.MustNew(ulid.Now(), rand.Reader).String() },
	}
}

// Apply runs one event through the state machine for a campaign contact.
// A lower-or-equal-ranked target is a no-op for the status but still
// backfills its timestamp and still lands in the audit log.
func (m *Machine) Apply(ctx context.Context, campaignID, contactID int64, ev Event) (Outcome, error) {
	target, ok := ev.Type.Status()
	if !ok {
		return OutcomeStale, fmt.Errorf("event type %q maps to no status", ev.Type)
	}
	if target == model.StatusFailed && ev.Reason == "" {
		return OutcomeStale, errors.New("failed transition requires a reason")
	}

	cc, err := m.store.GetCampaignContact(ctx, campaignID, contactID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.log.Warn("event for unknown campaign contact",
				zap.Int64("campaign_id", campaignID),
				zap.Int64("contact_id", contactID),
				zap.String("event", ev.Type.String()))
			return OutcomeUnknownTarget, nil
		}
		return OutcomeStale, fmt.Errorf("load campaign contact: %w", err)
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	upgraded := false
	if target.SideBranch() {
		if !cc.Status.Terminal() {
			cc.Status = target
			upgraded = true
		}
	} else {
		tr, _ := target.Rank()
		if cr, onTrack := cc.Status.Rank(); onTrack && tr > cr {
			cc.Status = target
			upgraded = true
		}
	}

	stamped := stamp(cc, target, at)
	firstEngagement := stamped && (target == model.StatusOpened || target == model.StatusClicked)

	if ev.MessageID != "" && cc.MessageID == nil {
		id := ev.MessageID
		cc.MessageID = &id
		stamped = true
	}
	if target == model.StatusFailed && cc.FailureReason == nil {
		reason := ev.Reason
		cc.FailureReason = &reason
		stamped = true
	}

	if upgraded || stamped {
		if err := m.store.SaveCampaignContact(ctx, cc); err != nil {
			return OutcomeStale, fmt.Errorf("save campaign contact: %w", err)
		}
	}

	if err := m.appendEvent(ctx, campaignID, contactID, ev, at); err != nil {
		return OutcomeStale, err
	}

	if firstEngagement {
		if err := m.markContacted(ctx, contactID); err != nil {
			m.log.Warn("mark contacted failed", zap.Int64("contact_id", contactID), zap.Error(err))
		}
	}
	if upgraded && target == model.StatusUnsubscribed {
		if err := m.markUnsubscribed(ctx, contactID, at); err != nil {
			m.log.Warn("mark unsubscribed failed", zap.Int64("contact_id", contactID), zap.Error(err))
		}
	}

	if upgraded {
		return OutcomeApplied, nil
	}
	m.log.Debug("stale event ignored",
		zap.Int64("campaign_id", campaignID),
		zap.Int64("contact_id", contactID),
		zap.String("event", ev.Type.String()),
		zap.String("status", cc.Status.String()))
	return OutcomeStale, nil
}

// ApplySequence upgrades one sequence email under the same rank order. The
// campaign-scoped audit log does not apply here.
func (m *Machine) ApplySequence(ctx context.Context, sequenceEmailID int64, ev Event) (Outcome, error) {
	target, ok := ev.Type.Status()
	if !ok {
		return OutcomeStale, fmt.Errorf("event type %q maps to no status", ev.Type)
	}

	se, err := m.seqStore.GetSequenceEmail(ctx, sequenceEmailID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.log.Warn("event for unknown sequence email", zap.Int64("sequence_email_id", sequenceEmailID))
			return OutcomeUnknownTarget, nil
		}
		return OutcomeStale, fmt.Errorf("load sequence email: %w", err)
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	upgraded := false
	if target.SideBranch() {
		if !se.Status.Terminal() {
			se.Status = target
			upgraded = true
		}
	} else {
		tr, _ := target.Rank()
		if cr, onTrack := se.Status.Rank(); onTrack && tr > cr {
			se.Status = target
			upgraded = true
		}
	}

	stamped := stampSequence(se, target, at)
	if ev.MessageID != "" && se.MessageID == nil {
		id := ev.MessageID
		se.MessageID = &id
		stamped = true
	}
	if target == model.StatusFailed && se.FailureReason == nil && ev.Reason != "" {
		reason := ev.Reason
		se.FailureReason = &reason
		stamped = true
	}

	if upgraded || stamped {
		if err := m.seqStore.SaveSequenceEmail(ctx, se); err != nil {
			return OutcomeStale, fmt.Errorf("save sequence email: %w", err)
		}
	}

	if upgraded {
		return OutcomeApplied, nil
	}
	return OutcomeStale, nil
}

func (m *Machine) appendEvent(ctx context.Context, campaignID, contactID int64, ev Event, at time.Time) error {
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	if ev.MessageID != "" {
		data["message_id"] = ev.MessageID
	}
	if ev.Reason != "" {
		data["reason"] = ev.Reason
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if err := m.store.AppendEvent(ctx, model.EmailEvent{
		ID:         m.newID(),
		CampaignID: campaignID,
		ContactID:  contactID,
		EventType:  ev.Type,
		EventTime:  at,
		EventData:  payload,
	}); err != nil {
		return fmt.Errorf("append email event: %w", err)
	}
	return nil
}

// markContacted flips the contact's has_been_contacted flag on first open
// or click and raises deal_status to at least contacted.
func (m *Machine) markContacted(ctx context.Context, contactID int64) error {
	c, err := m.store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if c.HasBeenContacted {
		return nil
	}
	c.HasBeenContacted = true
	c.DealStatus = c.DealStatus.Upgrade(model.DealContacted)
	return m.store.SaveContact(ctx, c)
}

func (m *Machine) markUnsubscribed(ctx context.Context, contactID int64, at time.Time) error {
	c, err := m.store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if c.Unsubscribed {
		return nil
	}
	c.Unsubscribed = true
	c.UnsubscribedAt = &at
	return m.store.SaveContact(ctx, c)
}

// stamp backfills the timestamp matching target when still null, returning
// whether anything changed. Backfill happens even for stale events.
func stamp(cc *model.CampaignContact, target model.ContactStatus, at time.Time) bool {
	slot := func(p **time.Time) bool {
		if *p != nil {
			return false
		}
		t := at
		*p = &t
		return true
	}
	switch target {
	case model.StatusSent:
		return slot(&cc.SentAt)
	case model.StatusDelivered:
		return slot(&cc.DeliveredAt)
	case model.StatusOpened:
		return slot(&cc.OpenedAt)
	case model.StatusClicked:
		return slot(&cc.ClickedAt)
	case model.StatusResponded:
		return slot(&cc.RespondedAt)
	case model.StatusFailed, model.StatusBounced:
		return slot(&cc.FailedAt)
	default:
		return false
	}
}

func stampSequence(se *model.SequenceEmail, target model.ContactStatus, at time.Time) bool {
	slot := func(p **time.Time) bool {
		if *p != nil {
			return false
		}
		t := at
		*p = &t
		return true
	}
	switch target {
	case model.StatusSent:
		return slot(&se.SentAt)
	case model.StatusDelivered:
		return slot(&se.DeliveredAt)
	case model.StatusOpened:
		return slot(&se.OpenedAt)
	case model.StatusClicked:
		return slot(&se.ClickedAt)
	default:
		return false
	}
}
