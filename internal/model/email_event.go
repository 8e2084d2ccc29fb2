package model

import "time"

type EmailEventType string

const (
	EventSent          EmailEventType = "sent"
	EventDelivered     EmailEventType = "delivered"
	EventOpened        EmailEventType = "opened"
	EventClicked       EmailEventType = "clicked"
	EventResponded     EmailEventType = "responded"
	EventFailed        EmailEventType = "failed"
	EventBounced       EmailEventType = "bounced"
	EventUnsubscribed  EmailEventType = "unsubscribed"
	EventCancelled     EmailEventType = "cancelled"
	EventDemoScheduled EmailEventType = "demo_scheduled"
)

func (t EmailEventType) String() string { return string(t) }

// Status maps an event type onto the contact status it represents.
func (t EmailEventType) Status() (ContactStatus, bool) {
	s := ContactStatus(t)
	if _, ok := s.Rank(); ok || s.SideBranch() {
		return s, true
	}
	return "", false
}

// EmailEvent is one row of the append-only audit log. Rows are never
// mutated or deleted; the monotonic upgrade rule applies to statuses, not
// to this log.
type EmailEvent struct {
	ID         string         `db:"id"`
	CampaignID int64          `db:"campaign_id"`
	ContactID  int64          `db:"contact_id"`
	EventType  EmailEventType `db:"event_type"`
	EventTime  time.Time      `db:"event_time"`
	EventData  []byte         `db:"event_data"`
	CreatedAt  time.Time      `db:"created_at"`
}
