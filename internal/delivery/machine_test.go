package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

type pair struct{ campaignID, contactID int64 }

type fakeStore struct {
	mu        sync.Mutex
	ccs       map[pair]*model.CampaignContact
	contacts  map[int64]*model.Contact
	seqEmails map[int64]*model.SequenceEmail
	events    []model.EmailEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ccs:       map[pair]*model.CampaignContact{},
		contacts:  map[int64]*model.Contact{},
		seqEmails: map[int64]*model.SequenceEmail{},
	}
}

func (s *fakeStore) GetCampaignContact(_ context.Context, campaignID, contactID int64) (*model.CampaignContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc, ok := s.ccs[pair{campaignID, contactID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cc
	return &cp, nil
}

func (s *fakeStore) SaveCampaignContact(_ context.Context, cc *model.CampaignContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cc
	s.ccs[pair{cc.CampaignID, cc.ContactID}] = &cp
	return nil
}

func (s *fakeStore) GetContact(_ context.Context, id int64) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) SaveContact(_ context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *fakeStore) AppendEvent(_ context.Context, ev model.EmailEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) GetSequenceEmail(_ context.Context, id int64) (*model.SequenceEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.seqEmails[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *se
	return &cp, nil
}

func (s *fakeStore) SaveSequenceEmail(_ context.Context, se *model.SequenceEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *se
	s.seqEmails[se.ID] = &cp
	return nil
}

func (s *fakeStore) cc(t *testing.T, campaignID, contactID int64) *model.CampaignContact {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	cc, ok := s.ccs[pair{campaignID, contactID}]
	if !ok {
		t.Fatalf("campaign contact %d/%d missing", campaignID, contactID)
	}
	cp := *cc
	return &cp
}

func newTestMachine(store *fakeStore) *Machine {
	return NewMachine(store, store, zap.NewNop())
}

func seedMember(store *fakeStore, status model.ContactStatus) {
	store.ccs[pair{1, 10}] = &model.CampaignContact{
		ID: 100, CampaignID: 1, ContactID: 10, Status: status,
	}
	store.contacts[10] = &model.Contact{ID: 10, Email: "x@y.test", DealStatus: model.DealNone}
}

func TestApplyUpgrades(t *testing.T) {
	cases := []struct {
		name    string
		from    model.ContactStatus
		ev      model.EmailEventType
		want    Outcome
		wantSt  model.ContactStatus
	}{
		{"pending to sent", model.StatusPending, model.EventSent, OutcomeApplied, model.StatusSent},
		{"sent to delivered", model.StatusSent, model.EventDelivered, OutcomeApplied, model.StatusDelivered},
		{"sent skips to clicked", model.StatusSent, model.EventClicked, OutcomeApplied, model.StatusClicked},
		{"clicked ignores opened", model.StatusClicked, model.EventOpened, OutcomeStale, model.StatusClicked},
		{"delivered duplicate", model.StatusDelivered, model.EventDelivered, OutcomeStale, model.StatusDelivered},
		{"responded terminal", model.StatusResponded, model.EventClicked, OutcomeStale, model.StatusResponded},
		{"sent to bounced", model.StatusSent, model.EventBounced, OutcomeApplied, model.StatusBounced},
		{"bounced ignores delivered", model.StatusBounced, model.EventDelivered, OutcomeStale, model.StatusBounced},
		{"unsubscribed ignores bounce", model.StatusUnsubscribed, model.EventBounced, OutcomeStale, model.StatusUnsubscribed},
		{"pending cancelled", model.StatusPending, model.EventCancelled, OutcomeApplied, model.StatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			seedMember(store, tc.from)
			m := newTestMachine(store)

			out, err := m.Apply(context.Background(), 1, 10, Event{Type: tc.ev})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if out != tc.want {
				t.Errorf("outcome = %v, want %v", out, tc.want)
			}
			if got := store.cc(t, 1, 10).Status; got != tc.wantSt {
				t.Errorf("status = %v, want %v", got, tc.wantSt)
			}
			if len(store.events) != 1 {
				t.Errorf("audit events = %d, want 1 (logged regardless of outcome)", len(store.events))
			}
		})
	}
}

func TestApplyStaleBackfillsTimestamp(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusPending)
	m := newTestMachine(store)
	ctx := context.Background()

	clickAt := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	openAt := clickAt.Add(-2 * time.Minute)

	if out, _ := m.Apply(ctx, 1, 10, Event{Type: model.EventClicked, OccurredAt: clickAt}); out != OutcomeApplied {
		t.Fatalf("click outcome = %v", out)
	}
	out, err := m.Apply(ctx, 1, 10, Event{Type: model.EventOpened, OccurredAt: openAt})
	if err != nil {
		t.Fatalf("Apply opened: %v", err)
	}
	if out != OutcomeStale {
		t.Errorf("late open outcome = %v, want stale", out)
	}

	cc := store.cc(t, 1, 10)
	if cc.Status != model.StatusClicked {
		t.Errorf("status regressed to %v", cc.Status)
	}
	if cc.OpenedAt == nil || !cc.OpenedAt.Equal(openAt) {
		t.Error("opened_at not backfilled by stale event")
	}
	if cc.ClickedAt == nil || !cc.ClickedAt.Equal(clickAt) {
		t.Error("clicked_at lost")
	}
	if len(store.events) != 2 {
		t.Errorf("audit events = %d, want 2", len(store.events))
	}
}

func TestApplyDuplicateKeepsFirstTimestamp(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusSent)
	m := newTestMachine(store)
	ctx := context.Background()

	first := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	if _, err := m.Apply(ctx, 1, 10, Event{Type: model.EventDelivered, OccurredAt: first}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Apply(ctx, 1, 10, Event{Type: model.EventDelivered, OccurredAt: first.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	cc := store.cc(t, 1, 10)
	if cc.DeliveredAt == nil || !cc.DeliveredAt.Equal(first) {
		t.Error("duplicate event overwrote delivered_at")
	}
}

func TestApplyUnknownTarget(t *testing.T) {
	store := newFakeStore()
	m := newTestMachine(store)

	out, err := m.Apply(context.Background(), 9, 9, Event{Type: model.EventOpened})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != OutcomeUnknownTarget {
		t.Errorf("outcome = %v, want unknown target", out)
	}
	if len(store.events) != 0 {
		t.Error("unknown target produced an audit event")
	}
}

func TestApplyFailedRequiresReason(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusProcessing)
	m := newTestMachine(store)
	ctx := context.Background()

	if _, err := m.Apply(ctx, 1, 10, Event{Type: model.EventFailed}); err == nil {
		t.Error("failed without reason accepted")
	}

	out, err := m.Apply(ctx, 1, 10, Event{Type: model.EventFailed, Reason: "smtp 550"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != OutcomeApplied {
		t.Errorf("outcome = %v", out)
	}
	cc := store.cc(t, 1, 10)
	if cc.FailureReason == nil || *cc.FailureReason != "smtp 550" {
		t.Error("failure reason not recorded")
	}
	if cc.FailedAt == nil {
		t.Error("failed_at not stamped")
	}
}

func TestApplyFirstOpenMarksContacted(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusDelivered)
	m := newTestMachine(store)

	if _, err := m.Apply(context.Background(), 1, 10, Event{Type: model.EventOpened}); err != nil {
		t.Fatal(err)
	}

	c := store.contacts[10]
	if !c.HasBeenContacted {
		t.Error("has_been_contacted not set on first open")
	}
	if c.DealStatus != model.DealContacted {
		t.Errorf("deal_status = %v, want contacted", c.DealStatus)
	}
}

func TestApplyOpenDoesNotDowngradeDeal(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusDelivered)
	store.contacts[10].DealStatus = model.DealInProgress
	m := newTestMachine(store)

	if _, err := m.Apply(context.Background(), 1, 10, Event{Type: model.EventOpened}); err != nil {
		t.Fatal(err)
	}
	if got := store.contacts[10].DealStatus; got != model.DealInProgress {
		t.Errorf("deal_status downgraded to %v", got)
	}
}

func TestApplyUnsubscribeFlagsContact(t *testing.T) {
	store := newFakeStore()
	seedMember(store, model.StatusSent)
	m := newTestMachine(store)

	at := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	out, err := m.Apply(context.Background(), 1, 10, Event{Type: model.EventUnsubscribed, OccurredAt: at})
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeApplied {
		t.Fatalf("outcome = %v", out)
	}

	c := store.contacts[10]
	if !c.Unsubscribed {
		t.Error("contact not flagged unsubscribed")
	}
	if c.UnsubscribedAt == nil || !c.UnsubscribedAt.Equal(at) {
		t.Error("unsubscribed_at not stamped")
	}
}

func TestApplySequence(t *testing.T) {
	store := newFakeStore()
	store.seqEmails[5] = &model.SequenceEmail{ID: 5, Status: model.StatusSent}
	m := newTestMachine(store)
	ctx := context.Background()

	out, err := m.ApplySequence(ctx, 5, Event{Type: model.EventOpened})
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeApplied {
		t.Errorf("outcome = %v", out)
	}
	if store.seqEmails[5].Status != model.StatusOpened {
		t.Errorf("status = %v", store.seqEmails[5].Status)
	}

	// duplicate is stale
	if out, _ = m.ApplySequence(ctx, 5, Event{Type: model.EventOpened}); out != OutcomeStale {
		t.Errorf("duplicate outcome = %v", out)
	}

	// unknown id
	if out, _ = m.ApplySequence(ctx, 6, Event{Type: model.EventOpened}); out != OutcomeUnknownTarget {
		t.Errorf("unknown outcome = %v", out)
	}
}
