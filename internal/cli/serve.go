package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	natsclient "github.com/telhawk-systems/telhawk-sensor/common/messaging/nats"
	"github.com/telhawk-systems/telhawk-sensor/internal/eve"
	"github.com/telhawk-systems/telhawk-sensor/internal/forwarder"
	"github.com/telhawk-systems/telhawk-sensor/internal/handlers"
	"github.com/telhawk-systems/telhawk-sensor/internal/ratelimit"
	"github.com/telhawk-systems/telhawk-sensor/internal/server"
	"github.com/telhawk-systems/telhawk-sensor/internal/service"
	"github.com/telhawk-systems/telhawk-sensor/internal/suricata"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sensor agent",
		Long:  "Supervise Suricata, forward EVE events and serve the control API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := a.cfg

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).With(logging.Service("sensor"))
	logging.SetDefault(logger)
	log := logger.Logger
	a.logger = log

	log.Info("starting sensor",
		slog.Int("port", cfg.Server.Port),
		slog.String("central_api", cfg.CentralAPI.URL),
		logging.File(cfg.Eve.ActiveLogFile),
		slog.String("rules_file", cfg.RulesFilePath()),
		slog.Bool("skip_suricata", cfg.Suricata.Skip),
	)
	if a.configPath != "" {
		log.Info("loaded configuration", slog.String("config_path", a.configPath))
	}

	rotator := eve.NewRotator(cfg.Eve.ActiveLogFile, cfg.Eve.LogDir, cfg.Eve.MaxLogSizeBytes(), log)
	if err := rotator.EnsureActive(); err != nil {
		return fmt.Errorf("prepare EVE log: %w", err)
	}

	limiter, err := ratelimit.New(cfg.RateLimit.Enabled, cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if err != nil {
		log.Warn("failed to initialize Redis rate limiter, continuing without rate limiting", logging.Error(err))
		limiter = &ratelimit.NoOpRateLimiter{}
	} else if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled",
			slog.Int("requests", cfg.RateLimit.Requests),
			slog.Duration("window", cfg.RateLimit.Window),
		)
	}
	defer limiter.Close()

	logURL := cfg.CentralLogURL()
	if logURL == "" {
		log.Warn("central API URL not set, events will not be forwarded")
	}
	watcherClient := forwarder.New(logURL, "eve_watcher", cfg.CentralAPI.Timeout)
	var ingestForwarder service.Forwarder
	if logURL != "" {
		ingestForwarder = forwarder.New(logURL, "http_ingest", cfg.CentralAPI.Timeout)
	}

	controller := a.controller()
	var reloader service.Reloader
	if a.reloadsOnChange() {
		reloader = controller
	}

	watermark := &eve.Watermark{}
	h := handlers.NewHandler(handlers.Options{
		Rules:        service.NewRuleService(a.store(), reloader, log),
		Ingest:       service.NewIngestService(ingestForwarder, log),
		Control:      controller,
		Limiter:      limiter,
		Watermark:    watermark,
		RulesPath:    cfg.RulesFilePath(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
	})
	router := server.NewRouter(h, server.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MetricsEnabled: cfg.Server.MetricsEnabled,
		Logger:         log,
	})

	srv, err := server.New(server.Config{
		Port:            cfg.Server.Port,
		PortAttempts:    cfg.Server.PortAttempts,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.WriteTimeout,
	}, router, log)
	if err != nil {
		return err
	}

	supervisor := suricata.NewSupervisor(suricata.SupervisorConfig{
		Binary:     cfg.Suricata.Binary,
		ConfigPath: cfg.Suricata.ConfigPath,
		Interface:  cfg.Suricata.Interface,
		Skip:       cfg.Suricata.Skip,
	}, log)
	if err := supervisor.Start(); err != nil {
		log.Error("suricata not supervised, continuing with forwarding only", logging.Error(err))
	}

	eve.SetPollInterval(cfg.Eve.WatchInterval())
	watcher := eve.NewWatcher(eve.WatcherConfig{
		Path:                  cfg.Eve.ActiveLogFile,
		PollInterval:          cfg.Eve.WatchInterval(),
		RotationCheckInterval: cfg.Eve.RotationCheckInterval(),
		ReadFromStart:         cfg.Eve.ReadFromStart,
		MirrorSubjectPrefix:   cfg.Mirror.SubjectPrefix,
	}, rotator, watcherClient, watermark, log)

	if cfg.Mirror.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.Mirror.NatsURL
		natsCfg.Logger = log
		publisher, err := natsclient.NewClient(natsCfg)
		if err != nil {
			log.Warn("failed to connect to NATS, event mirror disabled", logging.Error(err))
		} else {
			log.Info("mirroring EVE events to NATS",
				slog.String("url", cfg.Mirror.NatsURL),
				slog.String("subject_prefix", cfg.Mirror.SubjectPrefix),
			)
			watcher.WithPublisher(publisher)
			defer publisher.Close()
		}
	}

	retainer := eve.NewRetainer(cfg.Eve.LogDir, cfg.Eve.ActiveLogFile, watermark, log).
		WithRotatedArchives(cfg.Eve.RetainRotatedArchives)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			log.Error("EVE watcher stopped", logging.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := retainer.Run(ctx, cfg.Eve.CleanupInterval()); err != nil {
			log.Error("log retention stopped", logging.Error(err))
		}
	}()

	err = srv.Run(ctx)
	stop()
	wg.Wait()

	log.Info("sensor stopped")
	return err
}
