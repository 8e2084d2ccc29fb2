package model

import "time"

// ContactStatus is the per-recipient delivery status of a campaign contact.
//
// Main track: pending -> processing -> sent -> delivered -> opened ->
// clicked -> responded, upgrade-only. The side branches (failed, bounced,
// unsubscribed, cancelled, demo_scheduled) are reachable from any
// non-terminal state and are terminal themselves.
type ContactStatus string

const (
	StatusPending    ContactStatus = "pending"
	StatusProcessing ContactStatus = "processing"
	StatusSent       ContactStatus = "sent"
	StatusDelivered  ContactStatus = "delivered"
	StatusOpened     ContactStatus = "opened"
	StatusClicked    ContactStatus = "clicked"
	StatusResponded  ContactStatus = "responded"

	StatusFailed        ContactStatus = "failed"
	StatusBounced       ContactStatus = "bounced"
	StatusUnsubscribed  ContactStatus = "unsubscribed"
	StatusCancelled     ContactStatus = "cancelled"
	StatusDemoScheduled ContactStatus = "demo_scheduled"
)

func (s ContactStatus) String() string { return string(s) }

var statusRanks = map[ContactStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusSent:       2,
	StatusDelivered:  3,
	StatusOpened:     4,
	StatusClicked:    5,
	StatusResponded:  6,
}

// Rank returns the position of s on the upgrade scale. Side-branch statuses
// are not on the scale and return ok=false.
func (s ContactStatus) Rank() (int, bool) {
	r, ok := statusRanks[s]
	return r, ok
}

// SideBranch reports whether s is an exit status off the main track.
func (s ContactStatus) SideBranch() bool {
	_, ok := statusRanks[s]
	return !ok && s != ""
}

// Terminal reports whether no further transition may leave s.
func (s ContactStatus) Terminal() bool {
	return s == StatusResponded || s.SideBranch()
}

// AtLeast reports whether s has reached rank r's position on the main track.
func (s ContactStatus) AtLeast(other ContactStatus) bool {
	a, ok := s.Rank()
	if !ok {
		return false
	}
	b, ok := other.Rank()
	if !ok {
		return false
	}
	return a >= b
}

// CampaignContact is the join row of one contact within one campaign; it is
// the record the delivery state machine operates on.
type CampaignContact struct {
	ID            int64         `db:"id"`
	CampaignID    int64         `db:"campaign_id"`
	ContactID     int64         `db:"contact_id"`
	SegmentID     *int64        `db:"segment_id"`
	Status        ContactStatus `db:"status"`
	MessageID     *string       `db:"message_id"`
	FailureReason *string       `db:"failure_reason"`
	SentAt        *time.Time    `db:"sent_at"`
	DeliveredAt   *time.Time    `db:"delivered_at"`
	OpenedAt      *time.Time    `db:"opened_at"`
	ClickedAt     *time.Time    `db:"clicked_at"`
	RespondedAt   *time.Time    `db:"responded_at"`
	FailedAt      *time.Time    `db:"failed_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}
