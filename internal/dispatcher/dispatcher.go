package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
)

const (
	DefaultBatchSize       = 50
	DefaultRedispatchDelay = time.Minute
)

// Enqueuer turns a selected batch into send jobs.
type Enqueuer interface {
	EnqueueCampaignSends(ctx context.Context, campaignID int64, segmentID *int64, contactIDs []int64) error
}

// BatchDispatcher drives a campaign (or one segment) to completion in
// bounded batches. Every invocation is idempotent: it only ever picks up
// contacts still pending, so a cron or watchdog may re-trigger it freely.
type BatchDispatcher struct {
	campaigns repository.CampaignsRepository
	contacts  repository.CampaignContactsRepository
	enqueuer  Enqueuer
	scheduler Scheduler
	batchSize int
	delay     time.Duration
	log       *zap.Logger
}

func NewBatchDispatcher(
	campaigns repository.CampaignsRepository,
	contacts repository.CampaignContactsRepository,
	enqueuer Enqueuer,
	scheduler Scheduler,
	batchSize int,
	delay time.Duration,
	log *zap.Logger,
) *BatchDispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay <= 0 {
		delay = DefaultRedispatchDelay
	}
	return &BatchDispatcher{
		campaigns: campaigns,
		contacts:  contacts,
		enqueuer:  enqueuer,
		scheduler: scheduler,
		batchSize: batchSize,
		delay:     delay,
		log:       log,
	}
}

// DispatchCampaign runs one bounded unit of work for a campaign. When
// contacts remain pending afterwards it schedules its own continuation;
// the final pass observes zero pending and records the terminal outcome.
func (d *BatchDispatcher) DispatchCampaign(ctx context.Context, campaignID int64) error {
	c, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			d.log.Warn("dispatch for unknown campaign", zap.Int64("campaign_id", campaignID))
			return nil
		}
		return err
	}
	if !c.Status.Actionable() {
		d.log.Debug("campaign not actionable, skipping",
			zap.Int64("campaign_id", campaignID),
			zap.String("status", c.Status.String()))
		return nil
	}

	counts, err := d.contacts.CountByStatus(ctx, campaignID, nil)
	if err != nil {
		return err
	}
	pending := counts[model.StatusPending] + counts[model.StatusProcessing]

	if pending == 0 {
		final := terminalStatus(counts)
		if err := d.campaigns.MarkFinished(ctx, campaignID, final, time.Now()); err != nil {
			return err
		}
		d.log.Info("campaign finished",
			zap.Int64("campaign_id", campaignID),
			zap.String("status", final.String()))
		return nil
	}

	batch, err := d.contacts.SelectPendingBatch(ctx, campaignID, nil, d.batchSize)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(batch))
	for _, cc := range batch {
		ids = append(ids, cc.ContactID)
	}
	if err := d.enqueuer.EnqueueCampaignSends(ctx, campaignID, nil, ids); err != nil {
		return err
	}
	d.log.Info("batch enqueued",
		zap.Int64("campaign_id", campaignID),
		zap.Int("batch", len(ids)),
		zap.Int("pending_before", pending))

	d.scheduler.Schedule(d.delay, func() {
		if err := d.DispatchCampaign(context.Background(), campaignID); err != nil {
			d.log.Error("redispatch failed", zap.Int64("campaign_id", campaignID), zap.Error(err))
		}
	})
	return nil
}

// DispatchSegment is the campaign algorithm scoped to one segment, with
// the segment status advanced independently of the parent campaign.
func (d *BatchDispatcher) DispatchSegment(ctx context.Context, segmentID int64) error {
	seg, err := d.campaigns.GetSegment(ctx, segmentID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			d.log.Warn("dispatch for unknown segment", zap.Int64("segment_id", segmentID))
			return nil
		}
		return err
	}
	if seg.Status == model.SegmentCompleted || seg.Status == model.SegmentFailed {
		return nil
	}

	c, err := d.campaigns.GetByID(ctx, seg.CampaignID)
	if err != nil {
		return err
	}
	if !c.Status.Actionable() {
		d.log.Debug("parent campaign not actionable, skipping segment",
			zap.Int64("segment_id", segmentID),
			zap.String("campaign_status", c.Status.String()))
		return nil
	}

	if seg.Status == model.SegmentDraft {
		if err := d.campaigns.UpdateSegmentStatus(ctx, segmentID, model.SegmentInProgress, nil); err != nil {
			return err
		}
	}

	counts, err := d.contacts.CountByStatus(ctx, seg.CampaignID, &segmentID)
	if err != nil {
		return err
	}
	pending := counts[model.StatusPending] + counts[model.StatusProcessing]

	if pending == 0 {
		final := model.SegmentCompleted
		if terminalStatus(counts) == model.CampaignFailed {
			final = model.SegmentFailed
		}
		now := time.Now()
		if err := d.campaigns.UpdateSegmentStatus(ctx, segmentID, final, &now); err != nil {
			return err
		}
		d.log.Info("segment finished",
			zap.Int64("segment_id", segmentID),
			zap.String("status", final.String()))
		return nil
	}

	batch, err := d.contacts.SelectPendingBatch(ctx, seg.CampaignID, &segmentID, d.batchSize)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(batch))
	for _, cc := range batch {
		ids = append(ids, cc.ContactID)
	}
	if err := d.enqueuer.EnqueueCampaignSends(ctx, seg.CampaignID, &segmentID, ids); err != nil {
		return err
	}

	d.scheduler.Schedule(d.delay, func() {
		if err := d.DispatchSegment(context.Background(), segmentID); err != nil {
			d.log.Error("segment redispatch failed", zap.Int64("segment_id", segmentID), zap.Error(err))
		}
	})
	return nil
}

// terminalStatus tallies a finished population: failed only when every
// attempted contact failed, completed as soon as anything got out the door.
func terminalStatus(counts map[model.ContactStatus]int) model.CampaignStatus {
	attempted, failed := 0, 0
	for status, n := range counts {
		switch status {
		case model.StatusPending, model.StatusProcessing, model.StatusCancelled:
			continue
		case model.StatusFailed:
			failed += n
		}
		attempted += n
	}
	if attempted > 0 && failed == attempted {
		return model.CampaignFailed
	}
	return model.CampaignCompleted
}
