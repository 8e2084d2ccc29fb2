package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/util"
)

const (
	CampaignSendTopic = "email.campaign"
	SequenceSendTopic = "email.sequence"
)

// Service turns selected recipients into send jobs: one outbox row per
// recipient, written atomically, relayed to Kafka by the outbox pipeline.
type Service struct {
	db     *sqlx.DB
	outbox repository.OutboxRepository
}

func New(db *sqlx.DB, outboxRepo repository.OutboxRepository) *Service {
	return &Service{db: db, outbox: outboxRepo}
}

// EnqueueCampaignSends writes one campaign-lane send job per contact.
func (s *Service) EnqueueCampaignSends(ctx context.Context, campaignID int64, segmentID *int64, contactIDs []int64) error {
	rows := make([]repository.OutboxRow, 0, len(contactIDs))
	for _, contactID := range contactIDs {
		env := model.Envelope{
			ID:         util.NewID(),
			Lane:       model.LaneCampaign,
			CampaignID: campaignID,
			SegmentID:  segmentID,
			ContactID:  contactID,
		}
		payload, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		rows = append(rows, repository.OutboxRow{AggregateID: env.ID, Payload: payload})
	}

	if err := s.outbox.InsertBatch(ctx, nil, "campaign_contact", CampaignSendTopic, rows); err != nil {
		return fmt.Errorf("insert outbox batch: %w", err)
	}
	return nil
}

// EnqueueSequenceSend writes one sequence-lane send job.
func (s *Service) EnqueueSequenceSend(ctx context.Context, sequenceEmailID, contactID int64) error {
	env := model.Envelope{
		ID:              util.NewID(),
		Lane:            model.LaneSequence,
		SequenceEmailID: sequenceEmailID,
		ContactID:       contactID,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.outbox.Insert(ctx, nil, "sequence_email", env.ID, SequenceSendTopic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
