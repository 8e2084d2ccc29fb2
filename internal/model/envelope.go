package model

type SendLane string

const (
	LaneCampaign SendLane = "campaign"
	LaneSequence SendLane = "sequence"
)

func (l SendLane) Valid() bool { return l == LaneCampaign || l == LaneSequence }

// Envelope is the send-job payload published to Kafka (via the Debezium
// outbox SMT). CampaignID/SegmentID are set on the campaign lane,
// SequenceEmailID on the sequence lane.
type Envelope struct {
	ID   string   `json:"id"` // send ULID
	Lane SendLane `json:"lane"`

	CampaignID int64  `json:"campaign_id,omitempty"`
	SegmentID  *int64 `json:"segment_id,omitempty"`

	SequenceEmailID int64 `json:"sequence_email_id,omitempty"`

	ContactID int64 `json:"contact_id"`
}
