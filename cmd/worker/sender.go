package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/doug7410/samplepal-leads-sub001/internal/config"
	"github.com/doug7410/samplepal-leads-sub001/internal/content"
	"github.com/doug7410/samplepal-leads-sub001/internal/db"
	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/kafka"
	"github.com/doug7410/samplepal-leads-sub001/internal/logger"
	"github.com/doug7410/samplepal-leads-sub001/internal/mailer"
	"github.com/doug7410/samplepal-leads-sub001/internal/metrics"
	"github.com/doug7410/samplepal-leads-sub001/internal/model"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/service/queue"
	"github.com/doug7410/samplepal-leads-sub001/internal/throttle"
	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
	"github.com/doug7410/samplepal-leads-sub001/internal/worker"
)

var senderCmd = &cobra.Command{
	Use:   "sender",
	Short: "Start sender worker (campaign | sequence)",
}

var senderCampaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Run sender worker for campaign emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSender(cmd, model.LaneCampaign)
	},
}

var senderSequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Run sender worker for sequence emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSender(cmd, model.LaneSequence)
	},
}

func init() {
	senderCmd.AddCommand(senderCampaignCmd)
	senderCmd.AddCommand(senderSequenceCmd)
}

func runSender(cmd *cobra.Command, lane model.SendLane) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init("info")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.OpenMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// repositories
	campaignsRepo := repository.NewCampaignsRepository(dbx)
	campaignContactsRepo := repository.NewCampaignContactsRepository(dbx)
	contactsRepo := repository.NewContactsRepository(dbx)
	sequencesRepo := repository.NewSequencesRepository(dbx)
	eventsRepo := repository.NewEmailEventsRepository(dbx)

	store := repository.NewDeliveryStore(campaignContactsRepo, contactsRepo, eventsRepo, sequencesRepo)
	machine := delivery.NewMachine(store, store, logger.Log)

	// providers -> router
	var provs []mailer.Transport
	for _, pc := range cfg.Providers {
		if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
			continue
		}
		provs = append(provs,
			mailer.NewHTTPProvider(
				pc.Name,
				strings.TrimRight(pc.BaseURL, "/"),
				pc.SendPath,
				pc.APIKey,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			),
		)
	}
	if len(provs) == 0 {
		return fmt.Errorf("no providers enabled in config")
	}
	router := mailer.NewRouter(provs, cfg.Router.MaxAttempts)

	// shared send throttle, one slot per interval across all workers
	var limiter throttle.Limiter
	if cfg.Throttle.UseRedis {
		rds, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rds.Close() }()
		limiter = throttle.NewRedis(rds, cfg.Throttle.RedisKey, cfg.Throttle.MinInterval)
	} else {
		limiter = throttle.NewLocal(cfg.Throttle.MinInterval)
	}

	// content pipelines
	codec := tracking.NewCodec(cfg.Tracking.Secret, cfg.Tracking.BaseURL)
	pipeline := content.Default(codec, cfg.Tracking.AppName)
	seqPipeline := content.New(content.Sanitize, content.Substitute)

	topic := queue.CampaignSendTopic
	if lane == model.LaneSequence {
		topic = queue.SequenceSendTopic
	}
	consumer := kafka.NewLaneConsumer(cfg.Kafka, topic)
	defer consumer.Close()

	w := &worker.Sender{
		Consumer:         consumer,
		Campaigns:        campaignsRepo,
		CampaignContacts: campaignContactsRepo,
		Contacts:         contactsRepo,
		Sequences:        sequencesRepo,
		Machine:          machine,
		Pipeline:         pipeline,
		SequencePipeline: seqPipeline,
		Router:           router,
		Throttle:         limiter,
		Lane:             lane,
		Workers:          cfg.Worker.SenderCount,
		Log:              logger.Log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> sender started lane=%s topic=%s workers=%d", lane, topic, w.Workers)

	return w.Run(ctx)
}
