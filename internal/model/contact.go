package model

import (
	"strings"
	"time"
)

// DealStatus tracks where a contact sits in the pipeline, independent of any
// one campaign. It has its own upgrade-only ordering.
type DealStatus string

const (
	DealNone       DealStatus = "none"
	DealContacted  DealStatus = "contacted"
	DealResponded  DealStatus = "responded"
	DealInProgress DealStatus = "in_progress"
	DealClosedWon  DealStatus = "closed_won"
	DealClosedLost DealStatus = "closed_lost"
)

func (s DealStatus) String() string { return string(s) }

// Rank returns the position of s on the deal progression scale. Closed
// states share the top rank and are terminal.
func (s DealStatus) Rank() int {
	switch s {
	case DealNone, "":
		return 0
	case DealContacted:
		return 1
	case DealResponded:
		return 2
	case DealInProgress:
		return 3
	case DealClosedWon, DealClosedLost:
		return 4
	default:
		return 0
	}
}

func (s DealStatus) Terminal() bool {
	return s == DealClosedWon || s == DealClosedLost
}

// Upgrade returns the higher-ranked of s and to. A closed deal never moves.
func (s DealStatus) Upgrade(to DealStatus) DealStatus {
	if s.Terminal() || to.Rank() <= s.Rank() {
		return s
	}
	return to
}

type Company struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Website   string    `db:"website"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Contact struct {
	ID               int64      `db:"id"`
	CompanyID        *int64     `db:"company_id"`
	FirstName        string     `db:"first_name"`
	LastName         string     `db:"last_name"`
	Email            string     `db:"email"`
	JobTitle         string     `db:"job_title"`
	CompanyName      string     `db:"company_name"`
	HasBeenContacted bool       `db:"has_been_contacted"`
	DealStatus       DealStatus `db:"deal_status"`
	Unsubscribed     bool       `db:"unsubscribed"`
	UnsubscribedAt   *time.Time `db:"unsubscribed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// FullName joins first and last name, tolerating either being empty.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}
