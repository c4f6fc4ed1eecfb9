package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// 容器镜像里可能没有系统时区库
	_ "time/tzdata"

	mqcontracts "secondbrain/contracts/mq"
	"secondbrain/internal/config"
	"secondbrain/internal/handler"
	"secondbrain/internal/httpserver"
	"secondbrain/internal/mqhandler"
	"secondbrain/internal/repository"
	"secondbrain/internal/service/digest"
	"secondbrain/internal/service/intent"
	"secondbrain/internal/service/lifecycle"
	"secondbrain/internal/service/oracle"
	"secondbrain/internal/service/router"
	"secondbrain/internal/service/settings"
	"secondbrain/internal/service/undo"
	"secondbrain/internal/session"
	"secondbrain/pkg/access"
	pkgconfig "secondbrain/pkg/config"
	"secondbrain/pkg/db"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/mq"
	"secondbrain/pkg/otel"
	"secondbrain/pkg/outbox"
	"secondbrain/pkg/redis"
	"secondbrain/pkg/util"
)

const maxRetries = 3

func main() {
	cfg, err := config.Load(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting secondbrain...",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Bool("mq_enabled", cfg.MQ.URL != ""),
	)

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Enabled:     cfg.Telemetry.Enabled,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		store  repository.Store
		dbConn *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("Using in-memory storage, data will not survive a restart")
		store = repository.NewMemory()
	default:
		log.Info("Initializing database connection...")
		dbConn, err = db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("Failed to init DB", zap.Error(err))
		}
		defer dbConn.Close()
		store = repository.NewPostgres(dbConn, log)
		log.Info("Database connection established successfully")
	}

	// Redis（可选）：会话、去重、重试计数
	var (
		rdb      *goredis.Client
		sessions session.Store
		deduper  *util.Deduper
		counter  *util.RetryCounter
	)
	if cfg.Redis.Addr != "" {
		log.Info("Initializing Redis client...", zap.String("addr", cfg.Redis.Addr))
		rdb, err = redis.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("Redis not reachable at startup, continuing", zap.Error(err))
		}
	}
	if rdb != nil {
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb, log)
		deduper = util.NewDeduper(rdb, cfg.DedupTTL(), log)
		counter = util.NewRetryCounter(rdb, time.Hour)
	} else {
		log.Warn("Redis disabled, falling back to in-process sessions without dedup")
		sessions = session.NewMemoryStore(nil)
	}

	// 业务服务
	owners := access.NewAllowList(cfg.Owners.Allowed)
	cal := settings.NewService(store, settings.Defaults{
		Timezone:     cfg.Defaults.Timezone,
		DigestHour:   cfg.Defaults.DigestHour,
		RecapHour:    cfg.Defaults.RecapHour,
		ReminderHour: cfg.Defaults.ReminderHour,
	}, nil, log)

	var classifier oracle.Client
	if cfg.Oracle.BaseURL != "" {
		classifier = oracle.NewHTTPClient(oracle.Config{
			BaseURL: cfg.Oracle.BaseURL,
			APIKey:  cfg.Oracle.APIKey,
			Model:   cfg.Oracle.Model,
			Timeout: cfg.Oracle.Timeout(),
		}, log)
	} else {
		log.Warn("Oracle not configured, every capture goes to needs_review")
	}
	gateway := intent.NewGateway(classifier, cal, log)

	life := lifecycle.NewService(store, cal, log)
	ledger := undo.NewLedger(store, store, cfg.Undo.Limit, log)
	life.SetRecorder(ledger)

	dispatcher := router.NewDispatcher(store, store, life, ledger, gateway, sessions, log)
	dispatcher.SetSessionTTL(cfg.SessionTTL())
	reports := digest.NewService(store, store, cal, log)

	// MQ（可选）：schedule.trigger -> notify.report
	var (
		publisher *mq.Publisher
		consumer  *mq.Consumer
	)
	if cfg.MQ.URL != "" {
		log.Info("Initializing MQ publisher...")
		publisher, err = mq.NewPublisher(cfg.MQ.URL, "secondbrain")
		if err != nil {
			log.Fatal("Failed to init publisher", zap.Error(err))
		}
		defer publisher.Close()

		log.Info("Initializing MQ consumer for schedule.trigger...",
			zap.String("queue", cfg.MQ.Queue),
			zap.String("routing_key", mqcontracts.RoutingScheduleTrigger),
		)
		consumer, err = mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Queue, mqcontracts.RoutingScheduleTrigger, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.Error(err))
		}
		defer consumer.Close()

		// 有数据库时报告经 outbox 投递
		var reportSink mqhandler.Publisher = publisher
		if dbConn != nil {
			events := outbox.NewRepository(dbConn, log)
			reportSink = events
			relay := outbox.NewDispatcher(events, publisher, log).WithInterval(2 * time.Second)
			go relay.Start(ctx)
		}

		triggerHandler := mqhandler.NewScheduleTriggerHandler(reports, cal, reportSink, owners, nil, log)
		consumer.SetHandler(triggerHandler.Handle)
		consumer.SetRetryPolicy(mq.RetryPolicy{Counter: counter, MaxRetries: maxRetries, DLQ: publisher})

		go func() {
			log.Info("Starting schedule.trigger consumer...")
			if err := consumer.StartConsuming(ctx); err != nil {
				log.Error("Schedule consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Warn("MQ not configured, scheduled reports disabled")
	}

	// HTTP Server
	var cronPublisher handler.Publisher
	if publisher != nil {
		cronPublisher = publisher
	}
	deps := httpserver.Deps{
		Capture:    handler.NewCaptureHandler(dispatcher, deduper, log),
		Settings:   handler.NewSettingsHandler(cal, log),
		Cron:       handler.NewCronHandler(cronPublisher, owners, nil, log),
		JWTSecret:  cfg.JWT.Secret,
		CronSecret: cfg.Cron.Secret,
		Owners:     owners,
		Logger:     log,
	}
	if dbConn != nil {
		deps.DB = dbConn
	}
	if consumer != nil {
		deps.Consumer = consumer
	}

	addr := cfg.Server.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("secondbrain is fully initialized and running",
		zap.String("http_addr", addr),
		zap.Int("allowed_owners", len(owners.Owners())),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down secondbrain gracefully...")

	// 停止 MQ 消费者
	cancel()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("secondbrain shutdown complete")
}
