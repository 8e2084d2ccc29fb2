package model

import "time"

type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignScheduled  CampaignStatus = "scheduled"
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignPaused     CampaignStatus = "paused"
	CampaignStopped    CampaignStatus = "stopped"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

func (s CampaignStatus) String() string { return string(s) }

// Actionable reports whether the dispatcher may do work on a campaign in
// this status.
func (s CampaignStatus) Actionable() bool {
	return s == CampaignInProgress
}

// Startable reports whether a start request can move the campaign to
// in_progress.
func (s CampaignStatus) Startable() bool {
	return s == CampaignDraft || s == CampaignScheduled || s == CampaignPaused || s == CampaignStopped
}

type CampaignType string

const (
	// CampaignTypeContact sends one email per contact.
	CampaignTypeContact CampaignType = "contact"
	// CampaignTypeCompany sends company-wide emails; the render context
	// carries all co-recipients at the contact's company.
	CampaignTypeCompany CampaignType = "company"
)

type Campaign struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Type        CampaignType   `db:"type"`
	Status      CampaignStatus `db:"status"`
	Subject     string         `db:"subject"`
	Content     string         `db:"content"`
	FromEmail   string         `db:"from_email"`
	FromName    string         `db:"from_name"`
	ReplyTo     string         `db:"reply_to"`
	CompletedAt *time.Time     `db:"completed_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type SegmentStatus string

const (
	SegmentDraft      SegmentStatus = "draft"
	SegmentInProgress SegmentStatus = "in_progress"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentFailed     SegmentStatus = "failed"
)

func (s SegmentStatus) String() string { return string(s) }

// CampaignSegment is a named subdivision of a campaign's recipients with an
// optional subject/content override, driven to completion independently.
type CampaignSegment struct {
	ID          int64         `db:"id"`
	CampaignID  int64         `db:"campaign_id"`
	Name        string        `db:"name"`
	Position    int           `db:"position"`
	Subject     *string       `db:"subject"`
	Content     *string       `db:"content"`
	Status      SegmentStatus `db:"status"`
	CompletedAt *time.Time    `db:"completed_at"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}
