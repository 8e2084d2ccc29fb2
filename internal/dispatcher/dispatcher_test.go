package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
)

// immediateScheduler runs continuations synchronously so a whole dispatch
// chain finishes inside one test call.
type immediateScheduler struct{ runs int }

func (s *immediateScheduler) Schedule(_ time.Duration, fn func()) {
	s.runs++
	fn()
}

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[int64]*model.Campaign
	segments  map[int64]*model.CampaignSegment
}

func (f *fakeCampaigns) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) ListByStatus(_ context.Context, status model.CampaignStatus) ([]model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Campaign
	for _, c := range f.campaigns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) UpdateStatus(_ context.Context, id int64, status model.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[id].Status = status
	return nil
}

func (f *fakeCampaigns) MarkFinished(_ context.Context, id int64, status model.CampaignStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[id]
	c.Status = status
	c.CompletedAt = &at
	return nil
}

func (f *fakeCampaigns) GetSegment(_ context.Context, id int64) (*model.CampaignSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.segments[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCampaigns) UpdateSegmentStatus(_ context.Context, id int64, status model.SegmentStatus, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.segments[id]
	s.Status = status
	s.CompletedAt = completedAt
	return nil
}

// fakeMembers tracks membership rows and flips enqueued contacts to a
// scripted outcome, standing in for the asynchronous send path.
type fakeMembers struct {
	mu       sync.Mutex
	rows     map[int64]*model.CampaignContact // by contact id, single campaign
	outcomes map[int64]model.ContactStatus
	batches  [][]int64
}

func (f *fakeMembers) GetByPair(_ context.Context, _, contactID int64) (*model.CampaignContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cc, ok := f.rows[contactID]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *cc
	return &cp, nil
}

func (f *fakeMembers) GetByMessageID(_ context.Context, _ string) (*model.CampaignContact, error) {
	return nil, delivery.ErrNotFound
}

func (f *fakeMembers) Save(_ context.Context, cc *model.CampaignContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *cc
	f.rows[cc.ContactID] = &cp
	return nil
}

func (f *fakeMembers) SelectPendingBatch(_ context.Context, _ int64, _ *int64, limit int) ([]model.CampaignContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CampaignContact
	for id := int64(1); len(out) < limit && id <= int64(len(f.rows)); id++ {
		if cc, ok := f.rows[id]; ok && cc.Status == model.StatusPending {
			out = append(out, *cc)
		}
	}
	return out, nil
}

func (f *fakeMembers) CountByStatus(_ context.Context, _ int64, _ *int64) (map[model.ContactStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[model.ContactStatus]int{}
	for _, cc := range f.rows {
		counts[cc.Status]++
	}
	return counts, nil
}

func (f *fakeMembers) ResetForResume(_ context.Context, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, cc := range f.rows {
		switch cc.Status {
		case model.StatusPending, model.StatusProcessing, model.StatusFailed:
			if cc.Status != model.StatusPending {
				cc.Status = model.StatusPending
				n++
			}
		}
	}
	return n, nil
}

// EnqueueCampaignSends applies each contact's scripted outcome right away.
func (f *fakeMembers) EnqueueCampaignSends(_ context.Context, _ int64, _ *int64, contactIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, contactIDs)
	for _, id := range contactIDs {
		out, ok := f.outcomes[id]
		if !ok {
			out = model.StatusSent
		}
		f.rows[id].Status = out
	}
	return nil
}

func setup(n int, outcomes map[int64]model.ContactStatus, batchSize int) (*BatchDispatcher, *fakeCampaigns, *fakeMembers, *immediateScheduler) {
	fc := &fakeCampaigns{
		campaigns: map[int64]*model.Campaign{
			1: {ID: 1, Status: model.CampaignInProgress},
		},
		segments: map[int64]*model.CampaignSegment{},
	}
	fm := &fakeMembers{rows: map[int64]*model.CampaignContact{}, outcomes: outcomes}
	for i := int64(1); i <= int64(n); i++ {
		fm.rows[i] = &model.CampaignContact{ID: i, CampaignID: 1, ContactID: i, Status: model.StatusPending}
	}
	sched := &immediateScheduler{}
	d := NewBatchDispatcher(fc, fm, fm, sched, batchSize, time.Minute, zap.NewNop())
	return d, fc, fm, sched
}

func TestDispatchCampaignDrainsInBatches(t *testing.T) {
	d, fc, fm, sched := setup(120, nil, 50)

	if err := d.DispatchCampaign(context.Background(), 1); err != nil {
		t.Fatalf("DispatchCampaign: %v", err)
	}

	if len(fm.batches) != 3 {
		t.Fatalf("batches = %d, want 3 (120 contacts / 50)", len(fm.batches))
	}
	for i, sz := range []int{50, 50, 20} {
		if len(fm.batches[i]) != sz {
			t.Errorf("batch %d size = %d, want %d", i, len(fm.batches[i]), sz)
		}
	}
	// one continuation per enqueued batch; the last observes zero pending
	if sched.runs != 3 {
		t.Errorf("scheduled continuations = %d, want 3", sched.runs)
	}

	c := fc.campaigns[1]
	if c.Status != model.CampaignCompleted {
		t.Errorf("campaign status = %v, want completed", c.Status)
	}
	if c.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
}

func TestDispatchCampaignMixedOutcomesComplete(t *testing.T) {
	d, fc, _, _ := setup(3, map[int64]model.ContactStatus{
		1: model.StatusSent,
		2: model.StatusSent,
		3: model.StatusFailed,
	}, 50)

	if err := d.DispatchCampaign(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := fc.campaigns[1].Status; got != model.CampaignCompleted {
		t.Errorf("status = %v, want completed when any contact was sent", got)
	}
}

func TestDispatchCampaignAllFailed(t *testing.T) {
	d, fc, _, _ := setup(2, map[int64]model.ContactStatus{
		1: model.StatusFailed,
		2: model.StatusFailed,
	}, 50)

	if err := d.DispatchCampaign(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := fc.campaigns[1].Status; got != model.CampaignFailed {
		t.Errorf("status = %v, want failed when every attempt failed", got)
	}
}

func TestDispatchCampaignAllCancelledCompletes(t *testing.T) {
	// cancelled contacts were never attempted; an all-cancelled population
	// still finishes as completed, not failed
	d, fc, _, _ := setup(2, map[int64]model.ContactStatus{
		1: model.StatusCancelled,
		2: model.StatusCancelled,
	}, 50)

	if err := d.DispatchCampaign(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := fc.campaigns[1].Status; got != model.CampaignCompleted {
		t.Errorf("status = %v, want completed", got)
	}
}

func TestDispatchCampaignNotActionable(t *testing.T) {
	d, fc, fm, sched := setup(5, nil, 50)
	fc.campaigns[1].Status = model.CampaignPaused

	if err := d.DispatchCampaign(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(fm.batches) != 0 {
		t.Error("paused campaign had work enqueued")
	}
	if sched.runs != 0 {
		t.Error("paused campaign scheduled a continuation")
	}
}

func TestDispatchCampaignUnknownIsNoop(t *testing.T) {
	d, _, _, _ := setup(0, nil, 50)
	if err := d.DispatchCampaign(context.Background(), 99); err != nil {
		t.Errorf("unknown campaign should be a no-op, got %v", err)
	}
}

func TestDispatchSegment(t *testing.T) {
	d, fc, fm, _ := setup(4, nil, 50)
	segID := int64(7)
	fc.segments[segID] = &model.CampaignSegment{ID: segID, CampaignID: 1, Status: model.SegmentDraft}

	if err := d.DispatchSegment(context.Background(), segID); err != nil {
		t.Fatal(err)
	}

	seg := fc.segments[segID]
	if seg.Status != model.SegmentCompleted {
		t.Errorf("segment status = %v, want completed", seg.Status)
	}
	if seg.CompletedAt == nil {
		t.Error("segment completed_at not stamped")
	}
	if len(fm.batches) != 1 {
		t.Errorf("batches = %d, want 1", len(fm.batches))
	}
}
