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
	"github.com/doug7410/samplepal-leads-sub001/internal/logger"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/sequence"
	"github.com/doug7410/samplepal-leads-sub001/internal/service/queue"
)

var sequencesCmd = &cobra.Command{
	Use:   "sequences",
	Short: "Process due sequence enrollments on an interval",
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

		sequencesRepo := repository.NewSequencesRepository(dbx)
		contactsRepo := repository.NewContactsRepository(dbx)
		outboxRepo := repository.NewOutboxRepository(dbx)
		queueSvc := queue.New(dbx, outboxRepo)

		engine := &sequence.Engine{
			Sequences: sequencesRepo,
			Contacts:  contactsRepo,
			Enqueuer:  queueSvc,
			Log:       logger.Log,
		}

		interval := cfg.Sequences.PollInterval
		if interval <= 0 {
			interval = time.Minute
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> sequence engine started interval=%s", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := engine.Run(ctx, time.Now().UTC()); err != nil {
					logger.Log.Error("sequence pass failed", zap.Error(err))
				}
			}
		}
	},
}
