package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/config"
	"github.com/doug7410/samplepal-leads-sub001/internal/db"
	"github.com/doug7410/samplepal-leads-sub001/internal/dispatcher"
	"github.com/doug7410/samplepal-leads-sub001/internal/logger"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/service/queue"
)

// The dispatcher normally chains itself through in-process timers off a
// start request. This worker is the watchdog behind that chain: it
// periodically re-dispatches every in_progress campaign, so a process
// restart never strands a half-sent campaign. Re-dispatching is idempotent.
var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Re-dispatch in-progress campaigns on an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init("info")

		dbx, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		campaignsRepo := repository.NewCampaignsRepository(dbx)
		campaignContactsRepo := repository.NewCampaignContactsRepository(dbx)
		outboxRepo := repository.NewOutboxRepository(dbx)
		queueSvc := queue.New(dbx, outboxRepo)

		disp := dispatcher.NewBatchDispatcher(
			campaignsRepo,
			campaignContactsRepo,
			queueSvc,
			dispatcher.TimerScheduler{},
			cfg.Dispatcher.BatchSize,
			cfg.Dispatcher.RedispatchDelay,
			logger.Log,
		)

		interval := cfg.Dispatcher.PollInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> dispatcher watchdog started interval=%s batch=%d", interval, cfg.Dispatcher.BatchSize)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				running, err := campaignsRepo.ListByStatus(ctx, model.CampaignInProgress)
				if err != nil {
					logger.Log.Error("list running campaigns failed", zap.Error(err))
					continue
				}
				for _, c := range running {
					if err := disp.DispatchCampaign(ctx, c.ID); err != nil {
						logger.Log.Error("dispatch failed", zap.Error(err), zap.Int64("campaign_id", c.ID))
					}
				}
			}
		}
	},
}
