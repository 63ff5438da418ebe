package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "metering-dashboard/internal/api/http"
	"metering-dashboard/internal/audit"
	"metering-dashboard/internal/auth"
	billing "metering-dashboard/internal/billing/domain"
	"metering-dashboard/internal/config"
	"metering-dashboard/internal/delivery"
	exportsapp "metering-dashboard/internal/exports/application"
	exports "metering-dashboard/internal/exports/domain"
	exmemory "metering-dashboard/internal/exports/infrastructure/memory"
	expostgres "metering-dashboard/internal/exports/infrastructure/postgres"
	"metering-dashboard/internal/logging"
	mdapp "metering-dashboard/internal/masterdata/application"
	masterdata "metering-dashboard/internal/masterdata/domain"
	mdmemory "metering-dashboard/internal/masterdata/infrastructure/memory"
	mdpostgres "metering-dashboard/internal/masterdata/infrastructure/postgres"
	"metering-dashboard/internal/observability/metrics"
	"metering-dashboard/internal/reports/archive"
	"metering-dashboard/internal/reports/render"
	telemetryapp "metering-dashboard/internal/telemetry/application"
	telemetry "metering-dashboard/internal/telemetry/domain"
	telemetrymemory "metering-dashboard/internal/telemetry/infrastructure/memory"
	telemetrypostgres "metering-dashboard/internal/telemetry/infrastructure/postgres"
	"metering-dashboard/internal/telemetry/interfaces/ingest"
)

const shutdownTimeout = 30 * time.Second

// stores groups the persistence backends selected by configuration.
type stores struct {
	db          *sql.DB
	schedules   exports.ScheduleRepository
	runs        exports.RunRepository
	meters      masterdata.MeterDirectory
	recipients  masterdata.RecipientDirectory
	readings    telemetry.Store
	readingSink telemetry.Writer
	audit       audit.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(logging.Config{ServiceName: cfg.ServiceName, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatal("store setup failed", zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}
	metrics.Init(st.db, logger)

	loc := cfg.Location()

	resolver, err := mdapp.NewMeterResolver(st.meters)
	if err != nil {
		logger.Fatal("meter resolver error", zap.Error(err))
	}
	fetcher, err := telemetryapp.NewFetcher(st.readings,
		telemetryapp.WithConcurrency(cfg.Engine.FetchConcurrency),
		telemetryapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("fetcher error", zap.Error(err))
	}
	dispatcher, err := delivery.NewDispatcher(st.recipients,
		delivery.WithConcurrency(cfg.Engine.DispatchConcurrency),
		delivery.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("dispatcher error", zap.Error(err))
	}
	template, err := delivery.NewTemplate(cfg.Engine.SubjectTemplate, cfg.Engine.BodyTemplate)
	if err != nil {
		logger.Fatal("notification template error", zap.Error(err))
	}
	calculator, err := billing.NewCalculator(cfg.Rates)
	if err != nil {
		logger.Fatal("billing calculator error", zap.Error(err))
	}

	runnerOpts := []exportsapp.RunnerOption{
		exportsapp.WithCalculator(calculator),
		exportsapp.WithTemplate(template),
		exportsapp.WithRunnerLocation(loc),
		exportsapp.WithRunnerLogger(logger),
	}
	channels, err := buildChannels(ctx, cfg)
	if err != nil {
		logger.Fatal("delivery channel error", zap.Error(err))
	}
	for _, channel := range channels {
		runnerOpts = append(runnerOpts, exportsapp.WithChannel(channel))
		logger.Info("delivery channel enabled", zap.String("channel", string(channel.Kind())))
	}
	store, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive error", zap.Error(err))
	}
	if store != nil {
		runnerOpts = append(runnerOpts, exportsapp.WithArchive(store))
	}

	runner, err := exportsapp.NewRunner(resolver, fetcher, render.NewRenderer(), dispatcher, runnerOpts...)
	if err != nil {
		logger.Fatal("runner error", zap.Error(err))
	}
	poller, err := exportsapp.NewDuePoller(st.schedules, nil)
	if err != nil {
		logger.Fatal("poller error", zap.Error(err))
	}
	bookkeeper, err := exportsapp.NewBookkeeper(st.schedules, st.runs, nil, loc, logger)
	if err != nil {
		logger.Fatal("bookkeeper error", zap.Error(err))
	}
	scheduler, err := exportsapp.NewScheduler(poller, runner, bookkeeper, exportsapp.SchedulerConfig{
		Tick:          cfg.Engine.Tick,
		MaxConcurrent: cfg.Engine.MaxConcurrentRuns,
		RunTimeout:    cfg.Engine.RunTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("scheduler error", zap.Error(err))
	}

	service, err := exportsapp.NewScheduleService(st.schedules, st.runs,
		exportsapp.WithServiceLocation(loc),
		exportsapp.WithServiceLogger(logger),
	)
	if err != nil {
		logger.Fatal("schedule service error", zap.Error(err))
	}
	scheduleHandler, err := apihttp.NewScheduleHandler(service, st.audit, logger)
	if err != nil {
		logger.Fatal("schedule handler error", zap.Error(err))
	}
	ingestHandler, err := ingest.NewHandler(st.readingSink, logger)
	if err != nil {
		logger.Fatal("ingest handler error", zap.Error(err))
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger)

	mux := http.NewServeMux()
	scheduleHandler.Register(mux)
	mux.Handle("/api/v1/readings", ingestHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go scheduler.Start(ctx)
	logger.Info("export scheduler started",
		zap.Duration("tick", cfg.Engine.Tick),
		zap.Int("max_concurrent_runs", cfg.Engine.MaxConcurrentRuns),
		zap.String("timezone", loc.String()),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	if err := scheduler.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight executions did not finish", zap.Error(err))
	}
}

func openStores(cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		directory := mdmemory.NewDirectory()
		if cfg.SeedFile != "" {
			if err := directory.LoadSeedFile(cfg.SeedFile); err != nil {
				return stores{}, err
			}
		}
		readings := telemetrymemory.NewStore()
		logger.Warn("using in-memory stores; schedules and history are lost on restart")
		return stores{
			schedules:   exmemory.NewScheduleRepository(),
			runs:        exmemory.NewRunRepository(),
			meters:      directory,
			recipients:  directory,
			readings:    readings,
			readingSink: readings,
			audit:       audit.NewZapLogger(logger),
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	readings := telemetrypostgres.NewReadingQuery(db)
	return stores{
		db:          db,
		schedules:   expostgres.NewScheduleRepository(db),
		runs:        expostgres.NewRunRepository(db),
		meters:      mdpostgres.NewMeterDirectory(db),
		recipients:  mdpostgres.NewRecipientDirectory(db),
		readings:    readings,
		readingSink: readings,
		audit:       audit.NewRepository(db),
	}, nil
}

func buildChannels(ctx context.Context, cfg config.Config) ([]delivery.Channel, error) {
	var channels []delivery.Channel
	if cfg.SMTP.Enabled() {
		transport, err := delivery.NewSMTPTransport(delivery.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, err
		}
		email, err := delivery.NewEmailChannel(transport)
		if err != nil {
			return nil, err
		}
		channels = append(channels, email)
	}

	var transport delivery.MessagingTransport
	switch {
	case cfg.Messaging.WebhookURL != "":
		webhook, err := delivery.NewWebhookTransport(cfg.Messaging.WebhookURL)
		if err != nil {
			return nil, err
		}
		transport = webhook
	case cfg.Messaging.SNSRegion != "":
		sns, err := delivery.NewSNSTransport(ctx, cfg.Messaging.SNSRegion, cfg.Messaging.SNSTopicARN)
		if err != nil {
			return nil, err
		}
		transport = sns
	}
	if transport != nil {
		messaging, err := delivery.NewMessagingChannel(transport)
		if err != nil {
			return nil, err
		}
		channels = append(channels, messaging)
	}
	return channels, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (archive.Store, error) {
	switch {
	case cfg.Archive.S3Bucket != "":
		return archive.NewS3Store(ctx, cfg.Archive.S3Region, cfg.Archive.S3Bucket, archive.WithKeyPrefix(cfg.Archive.S3Prefix))
	case cfg.Archive.Root != "":
		return archive.NewFileStore(cfg.Archive.Root, archive.WithPublicBaseURL(cfg.Archive.PublicBaseURL))
	}
	return nil, nil
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
