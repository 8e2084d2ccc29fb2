package model

import "time"

type SequenceStatus string

const (
	SequenceDraft    SequenceStatus = "draft"
	SequenceActive   SequenceStatus = "active"
	SequencePaused   SequenceStatus = "paused"
	SequenceArchived SequenceStatus = "archived"
)

func (s SequenceStatus) String() string { return string(s) }

// Sequence is an ordered series of delayed email steps contacts are
// enrolled in.
type Sequence struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	Status    SequenceStatus `db:"status"`
	FromEmail string         `db:"from_email"`
	FromName  string         `db:"from_name"`
	ReplyTo   string         `db:"reply_to"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// SequenceStep is one email in a sequence. Position is 1-based. DelayDays is
// counted from the previous step's send; SendHour, when set, pins the send
// to that hour of day.
type SequenceStep struct {
	ID         int64     `db:"id"`
	SequenceID int64     `db:"sequence_id"`
	Position   int       `db:"position"`
	Subject    string    `db:"subject"`
	Content    string    `db:"content"`
	DelayDays  int       `db:"delay_days"`
	SendHour   *int      `db:"send_hour"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type SequenceContactStatus string

const (
	SeqContactActive    SequenceContactStatus = "active"
	SeqContactCompleted SequenceContactStatus = "completed"
	SeqContactExited    SequenceContactStatus = "exited"
)

func (s SequenceContactStatus) String() string { return string(s) }

type ExitReason string

const (
	ExitConverted    ExitReason = "converted"
	ExitUnsubscribed ExitReason = "unsubscribed"
	ExitManual       ExitReason = "manual"
	ExitSequenceOff  ExitReason = "sequence_inactive"
)

// SequenceContact is one contact's enrollment in a sequence. CurrentStep is
// the 1-based position of the next step to send and only ever increases;
// NextSendAt is set only while the enrollment is active.
type SequenceContact struct {
	ID          int64                 `db:"id"`
	SequenceID  int64                 `db:"sequence_id"`
	ContactID   int64                 `db:"contact_id"`
	Status      SequenceContactStatus `db:"status"`
	CurrentStep int                   `db:"current_step"`
	NextSendAt  *time.Time            `db:"next_send_at"`
	EnteredAt   time.Time             `db:"entered_at"`
	ExitedAt    *time.Time            `db:"exited_at"`
	ExitReason  *ExitReason           `db:"exit_reason"`
	CreatedAt   time.Time             `db:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at"`
}

// SequenceEmail is one attempted send of one step to one enrollment. Its
// status reuses the campaign-contact scale minus the statuses that make no
// sense per step.
type SequenceEmail struct {
	ID                int64         `db:"id"`
	SequenceID        int64         `db:"sequence_id"`
	SequenceStepID    int64         `db:"sequence_step_id"`
	SequenceContactID int64         `db:"sequence_contact_id"`
	ContactID         int64         `db:"contact_id"`
	Status            ContactStatus `db:"status"`
	MessageID         *string       `db:"message_id"`
	FailureReason     *string       `db:"failure_reason"`
	SentAt            *time.Time    `db:"sent_at"`
	DeliveredAt       *time.Time    `db:"delivered_at"`
	OpenedAt          *time.Time    `db:"opened_at"`
	ClickedAt         *time.Time    `db:"clicked_at"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}
