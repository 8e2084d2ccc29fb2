package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/doug7410/samplepal-leads-sub001/internal/config"
	"github.com/doug7410/samplepal-leads-sub001/internal/delivery"
	"github.com/doug7410/samplepal-leads-sub001/internal/dispatcher"
	"github.com/doug7410/samplepal-leads-sub001/internal/http/middleware"
	"github.com/doug7410/samplepal-leads-sub001/internal/metrics"
	"github.com/doug7410/samplepal-leads-sub001/internal/reconcile"
	"github.com/doug7410/samplepal-leads-sub001/internal/repository"
	"github.com/doug7410/samplepal-leads-sub001/internal/service/queue"
	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, logger *zap.Logger) *Server {
	// repos (MySQL)
	usersRepo := repository.NewUsersRepository(mysqlDB)
	campaignsRepo := repository.NewCampaignsRepository(mysqlDB)
	campaignContactsRepo := repository.NewCampaignContactsRepository(mysqlDB)
	contactsRepo := repository.NewContactsRepository(mysqlDB)
	sequencesRepo := repository.NewSequencesRepository(mysqlDB)
	eventsRepo := repository.NewEmailEventsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chEventsRepo := repository.NewCHEventsRepository(clickhouseDB)

	// core services
	store := repository.NewDeliveryStore(campaignContactsRepo, contactsRepo, eventsRepo, sequencesRepo)
	machine := delivery.NewMachine(store, store, logger)
	codec := tracking.NewCodec(cfg.Tracking.Secret, cfg.Tracking.BaseURL)
	rec := reconcile.NewReconciler(machine, campaignContactsRepo, sequencesRepo, cfg.Webhook.SigningKey, logger)

	queueSvc := queue.New(mysqlDB, outboxRepo)
	disp := dispatcher.NewBatchDispatcher(
		campaignsRepo,
		campaignContactsRepo,
		queueSvc,
		dispatcher.TimerScheduler{},
		cfg.Dispatcher.BatchSize,
		cfg.Dispatcher.RedispatchDelay,
		logger,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// recipient-facing, token-authenticated
	e.GET("/track/open", openPixelHandler(codec, machine))
	e.GET("/track/click", clickRedirectHandler(codec, machine))
	e.GET("/unsubscribe", unsubscribeHandler(codec, machine, contactsRepo))

	// provider-facing, signature-authenticated
	e.POST("/webhooks/mail", mailWebhookHandler(rec))

	// middlewares
	authMW := middleware.APIKeyMiddleware(usersRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:user:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// management API
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/campaigns/:id/start", startCampaignHandler(campaignsRepo, disp))
	v1.POST("/campaigns/:id/stop", stopCampaignHandler(campaignsRepo, campaignContactsRepo))
	v1.GET("/campaigns/:id", getCampaignHandler(campaignsRepo, campaignContactsRepo))
	v1.GET("/reports/events", listEventsHandler(chEventsRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
