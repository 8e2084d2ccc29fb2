package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

const testKey = "webhook-test-key"

// memStore backs a real state machine with in-memory rows so tests exercise
// the full ingest path, not a stubbed machine.
type memStore struct {
	campaignContacts map[[2]int64]*model.CampaignContact
	contacts         map[int64]*model.Contact
	sequenceEmails   map[int64]*model.SequenceEmail
	byMessageID      map[string][2]int64
	seqByMessageID   map[string]int64
	events           []model.EmailEvent
}

func newMemStore() *memStore {
	return &memStore{
		campaignContacts: map[[2]int64]*model.CampaignContact{},
		contacts:         map[int64]*model.Contact{},
		sequenceEmails:   map[int64]*model.SequenceEmail{},
		byMessageID:      map[string][2]int64{},
		seqByMessageID:   map[string]int64{},
	}
}

func (s *memStore) GetCampaignContact(_ context.Context, campaignID, contactID int64) (*model.CampaignContact, error) {
	cc, ok := s.campaignContacts[[2]int64{campaignID, contactID}]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *cc
	return &cp, nil
}

func (s *memStore) SaveCampaignContact(_ context.Context, cc *model.CampaignContact) error {
	cp := *cc
	s.campaignContacts[[2]int64{cc.CampaignID, cc.ContactID}] = &cp
	return nil
}

func (s *memStore) GetContact(_ context.Context, id int64) (*model.Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) SaveContact(_ context.Context, c *model.Contact) error {
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *memStore) AppendEvent(_ context.Context, ev model.EmailEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) GetSequenceEmail(_ context.Context, id int64) (*model.SequenceEmail, error) {
	se, ok := s.sequenceEmails[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *se
	return &cp, nil
}

func (s *memStore) SaveSequenceEmail(_ context.Context, se *model.SequenceEmail) error {
	cp := *se
	s.sequenceEmails[se.ID] = &cp
	return nil
}

// campaignContactLookup adapts memStore to the message-id fallback lookups.
type campaignContactLookup struct{ s *memStore }

func (l campaignContactLookup) GetByPair(ctx context.Context, campaignID, contactID int64) (*model.CampaignContact, error) {
	return l.s.GetCampaignContact(ctx, campaignID, contactID)
}

func (l campaignContactLookup) GetByMessageID(_ context.Context, messageID string) (*model.CampaignContact, error) {
	pair, ok := l.s.byMessageID[messageID]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return l.s.campaignContacts[pair], nil
}

func (l campaignContactLookup) Save(ctx context.Context, cc *model.CampaignContact) error {
	return l.s.SaveCampaignContact(ctx, cc)
}

func (l campaignContactLookup) SelectPendingBatch(_ context.Context, _ int64, _ *int64, _ int) ([]model.CampaignContact, error) {
	return nil, nil
}

func (l campaignContactLookup) CountByStatus(_ context.Context, _ int64, _ *int64) (map[model.ContactStatus]int, error) {
	return nil, nil
}

func (l campaignContactLookup) ResetForResume(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

type sequenceLookup struct{ s *memStore }

func (l sequenceLookup) GetSequence(_ context.Context, _ int64) (*model.Sequence, error) {
	return nil, delivery.ErrNotFound
}

func (l sequenceLookup) ListSteps(_ context.Context, _ int64) ([]model.SequenceStep, error) {
	return nil, nil
}

func (l sequenceLookup) DueContacts(_ context.Context, _ time.Time, _ int) ([]model.SequenceContact, error) {
	return nil, nil
}

func (l sequenceLookup) AdvanceContact(_ context.Context, _ *model.SequenceContact) error { return nil }

func (l sequenceLookup) ExitContact(_ context.Context, _ int64, _ model.ExitReason, _ time.Time) error {
	return nil
}

func (l sequenceLookup) CompleteContact(_ context.Context, _ int64) error { return nil }

func (l sequenceLookup) CreateSequenceEmail(ctx context.Context, se *model.SequenceEmail) error {
	return l.s.SaveSequenceEmail(ctx, se)
}

func (l sequenceLookup) GetSequenceEmail(ctx context.Context, id int64) (*model.SequenceEmail, error) {
	return l.s.GetSequenceEmail(ctx, id)
}

func (l sequenceLookup) GetSequenceEmailByMessageID(_ context.Context, messageID string) (*model.SequenceEmail, error) {
	id, ok := l.s.seqByMessageID[messageID]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return l.s.GetSequenceEmail(context.Background(), id)
}

func (l sequenceLookup) SaveSequenceEmail(ctx context.Context, se *model.SequenceEmail) error {
	return l.s.SaveSequenceEmail(ctx, se)
}

func fixture() (*Reconciler, *memStore) {
	store := newMemStore()
	store.contacts[10] = &model.Contact{ID: 10, Email: "angela@acme.test"}
	msgID := "msg-abc"
	store.campaignContacts[[2]int64{1, 10}] = &model.CampaignContact{
		ID: 100, CampaignID: 1, ContactID: 10, Status: model.StatusSent, MessageID: &msgID,
	}
	store.byMessageID[msgID] = [2]int64{1, 10}

	seqMsg := "seq-msg-1"
	store.sequenceEmails[200] = &model.SequenceEmail{
		ID: 200, SequenceID: 1, ContactID: 10, Status: model.StatusSent, MessageID: &seqMsg,
	}
	store.seqByMessageID[seqMsg] = 200

	machine := delivery.NewMachine(store, store, zap.NewNop())
	rec := NewReconciler(machine, campaignContactLookup{store}, sequenceLookup{store}, testKey, zap.NewNop())
	return rec, store
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	rec, _ := fixture()
	body := []byte(`{"event":"delivered"}`)

	if !rec.VerifySignature(body, sign(body)) {
		t.Error("valid signature rejected")
	}
	if rec.VerifySignature(body, sign([]byte("other body"))) {
		t.Error("signature for different body accepted")
	}
	if rec.VerifySignature(body, "deadbeef") {
		t.Error("garbage signature accepted")
	}
}

func TestIngestMalformed(t *testing.T) {
	rec, _ := fixture()
	for _, body := range []string{
		`not json`,
		`{"event":"exploded","message_id":"msg-abc"}`,
		`{"event":"delivered"}`, // no identifiers at all
	} {
		if _, _, err := rec.Ingest(context.Background(), []byte(body)); err == nil {
			t.Errorf("Ingest(%q) accepted, want ErrMalformed", body)
		}
	}
}

func TestIngestHeaderRouted(t *testing.T) {
	rec, store := fixture()
	body := []byte(`{
		"event": "delivered",
		"message_id": "msg-abc",
		"timestamp": 1712000000,
		"headers": {"X-Campaign-ID": "1", "X-Contact-ID": "10"}
	}`)

	evType, out, err := rec.Ingest(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if evType != model.EventDelivered {
		t.Errorf("event type = %v, want delivered", evType)
	}
	if out != delivery.OutcomeApplied {
		t.Errorf("outcome = %v, want applied", out)
	}
	cc := store.campaignContacts[[2]int64{1, 10}]
	if cc.Status != model.StatusDelivered {
		t.Errorf("status = %v, want delivered", cc.Status)
	}
	if cc.DeliveredAt == nil || cc.DeliveredAt.Unix() != 1712000000 {
		t.Errorf("delivered_at = %v, want provider timestamp", cc.DeliveredAt)
	}
}

func TestIngestSequenceEmailHeader(t *testing.T) {
	rec, store := fixture()
	body := []byte(`{
		"event": "opened",
		"headers": {"X-Sequence-Email-ID": "200"}
	}`)

	_, out, err := rec.Ingest(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if out != delivery.OutcomeApplied {
		t.Errorf("outcome = %v, want applied", out)
	}
	if got := store.sequenceEmails[200].Status; got != model.StatusOpened {
		t.Errorf("sequence email status = %v, want opened", got)
	}
}

func TestIngestMessageIDFallback(t *testing.T) {
	rec, store := fixture()

	_, out, err := rec.Ingest(context.Background(),
		[]byte(`{"event":"opened","message_id":"msg-abc"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != delivery.OutcomeApplied {
		t.Errorf("campaign fallback outcome = %v, want applied", out)
	}
	if got := store.campaignContacts[[2]int64{1, 10}].Status; got != model.StatusOpened {
		t.Errorf("status = %v, want opened", got)
	}

	_, out, err = rec.Ingest(context.Background(),
		[]byte(`{"event":"clicked","message_id":"seq-msg-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != delivery.OutcomeApplied {
		t.Errorf("sequence fallback outcome = %v, want applied", out)
	}
	if got := store.sequenceEmails[200].Status; got != model.StatusClicked {
		t.Errorf("sequence email status = %v, want clicked", got)
	}
}

func TestIngestUnknownMessage(t *testing.T) {
	rec, _ := fixture()
	_, out, err := rec.Ingest(context.Background(),
		[]byte(`{"event":"delivered","message_id":"never-sent"}`))
	if err != nil {
		t.Errorf("unknown message should not error, got %v", err)
	}
	if out != delivery.OutcomeUnknownTarget {
		t.Errorf("outcome = %v, want unknown_target", out)
	}
}

func TestIngestDuplicateIsStale(t *testing.T) {
	rec, store := fixture()
	body := []byte(`{"event":"delivered","message_id":"msg-abc"}`)

	if _, out, _ := rec.Ingest(context.Background(), body); out != delivery.OutcomeApplied {
		t.Fatalf("first delivery outcome = %v, want applied", out)
	}
	_, out, err := rec.Ingest(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if out != delivery.OutcomeStale {
		t.Errorf("replay outcome = %v, want stale", out)
	}
	// both arrivals still audited
	if len(store.events) != 2 {
		t.Errorf("audit events = %d, want 2", len(store.events))
	}
}

func TestIngestComplaintIsUnsubscribe(t *testing.T) {
	rec, store := fixture()
	body := []byte(fmt.Sprintf(`{"event":"complained","message_id":%q}`, "msg-abc"))

	evType, out, err := rec.Ingest(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if evType != model.EventUnsubscribed {
		t.Errorf("event type = %v, want unsubscribed", evType)
	}
	if out != delivery.OutcomeApplied {
		t.Errorf("outcome = %v, want applied", out)
	}
	if !store.contacts[10].Unsubscribed {
		t.Error("complaint did not flag the contact unsubscribed")
	}
}

func TestIngestBouncePreservedOverLateDelivery(t *testing.T) {
	rec, store := fixture()

	if _, out, _ := rec.Ingest(context.Background(),
		[]byte(`{"event":"bounced","message_id":"msg-abc"}`)); out != delivery.OutcomeApplied {
		t.Fatalf("bounce outcome = %v, want applied", out)
	}
	_, out, err := rec.Ingest(context.Background(),
		[]byte(`{"event":"delivered","message_id":"msg-abc"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != delivery.OutcomeStale {
		t.Errorf("late delivery outcome = %v, want stale", out)
	}
	if got := store.campaignContacts[[2]int64{1, 10}].Status; got != model.StatusBounced {
		t.Errorf("status = %v, want bounced preserved", got)
	}
}
