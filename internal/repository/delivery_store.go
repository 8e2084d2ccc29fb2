package repository

import (
	"context"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// DeliveryStore adapts the sqlx repositories to the state machine's
// persistence ports.
type DeliveryStore struct {
	campaignContacts CampaignContactsRepository
	contacts         ContactsRepository
	events           EmailEventsRepository
	sequences        SequencesRepository
}

func NewDeliveryStore(
	campaignContacts CampaignContactsRepository,
	contacts ContactsRepository,
	events EmailEventsRepository,
	sequences SequencesRepository,
) *DeliveryStore {
	return &DeliveryStore{
		campaignContacts: campaignContacts,
		contacts:         contacts,
		events:           events,
		sequences:        sequences,
	}
}

var (
	_ delivery.Store              = (*DeliveryStore)(nil)
	_ delivery.SequenceEmailStore = (*DeliveryStore)(nil)
)

func (s *DeliveryStore) GetCampaignContact(ctx context.Context, campaignID, contactID int64) (*model.CampaignContact, error) {
	return s.campaignContacts.GetByPair(ctx, campaignID, contactID)
}

func (s *DeliveryStore) SaveCampaignContact(ctx context.Context, cc *model.CampaignContact) error {
	return s.campaignContacts.Save(ctx, cc)
}

func (s *DeliveryStore) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	return s.contacts.GetByID(ctx, id)
}

func (s *DeliveryStore) SaveContact(ctx context.Context, c *model.Contact) error {
	return s.contacts.Save(ctx, c)
}

func (s *DeliveryStore) AppendEvent(ctx context.Context, ev model.EmailEvent) error {
	return s.events.Append(ctx, ev)
}

func (s *DeliveryStore) GetSequenceEmail(ctx context.Context, id int64) (*model.SequenceEmail, error) {
	return s.sequences.GetSequenceEmail(ctx, id)
}

func (s *DeliveryStore) SaveSequenceEmail(ctx context.Context, se *model.SequenceEmail) error {
	return s.sequences.SaveSequenceEmail(ctx, se)
}
