package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/backend/adapters"
	"github.com/jmylchreest/mediabridge/internal/config"
	"github.com/jmylchreest/mediabridge/internal/database"
	"github.com/jmylchreest/mediabridge/internal/database/migrations"
	internalhttp "github.com/jmylchreest/mediabridge/internal/http"
	"github.com/jmylchreest/mediabridge/internal/http/handlers"
	"github.com/jmylchreest/mediabridge/internal/http/middleware"
	"github.com/jmylchreest/mediabridge/internal/images"
	"github.com/jmylchreest/mediabridge/internal/livetv"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/internal/playback"
	"github.com/jmylchreest/mediabridge/internal/proxy"
	"github.com/jmylchreest/mediabridge/internal/repository"
	"github.com/jmylchreest/mediabridge/internal/scheduler"
	"github.com/jmylchreest/mediabridge/internal/service"
	"github.com/jmylchreest/mediabridge/internal/session"
	"github.com/jmylchreest/mediabridge/internal/version"
	"github.com/jmylchreest/mediabridge/pkg/httpclient"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mediabridge server",
	Long: `Start the mediabridge HTTP server and API.

The server provides:
- REST API for connections, libraries, playback and live TV
- Byte-range stream and image proxies
- Health check endpoint and Prometheus metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8096, "Port to listen on")
	serveCmd.Flags().String("database", "mediabridge.db", "Database DSN (file path for sqlite)")
	serveCmd.Flags().StringSlice("preferred-languages", nil, "Preferred audio languages, most preferred first")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("playback.preferred_languages", serveCmd.Flags().Lookup("preferred-languages"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	connRepo := repository.NewConnectionRepository(db.DB)
	positionRepo := repository.NewPlaybackPositionRepository(db.DB)
	sessionRepo := repository.NewActiveSessionRepository(db.DB)
	settingRepo := repository.NewSettingRepository(db.DB)

	deviceID, err := resolveDeviceID(ctx, cfg.Backend, settingRepo)
	if err != nil {
		return err
	}

	breakers := httpclient.NewCircuitBreakerManager(httpclient.BreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
		HalfOpenMax:      cfg.CircuitBreaker.HalfOpenMax,
	}).WithLogger(logger)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Logger = logger
	httpCfg.UserAgent = version.UserAgent()
	factory := adapters.NewDefaultFactory(backend.Deps{
		Logger:   logger,
		Breakers: breakers,
		HTTP:     httpCfg,
		Timeout:  cfg.Backend.Timeout,
		Identity: mediabrowser.Identity{
			Client:   cfg.Backend.ClientName,
			Device:   cfg.Backend.DeviceName,
			DeviceID: deviceID,
			Version:  version.Version,
		},
	})

	registry := session.NewRegistry(logger)
	records := session.NewRecords(sessionRepo, cfg.Sessions.TTL, logger)

	connectionService := service.NewConnectionService(connRepo, positionRepo, factory, registry).WithLogger(logger)
	authService := service.NewAuthService(connectionService, records).WithLogger(logger)
	playbackService := service.NewPlaybackService(positionRepo).WithLogger(logger)

	if state, err := connectionService.Restore(ctx); err != nil {
		logger.Warn("restoring active connection failed", slog.String("error", err.Error()))
	} else if state.Connected() {
		logger.Info("restored active connection",
			slog.String("connection", state.Connection.Label()),
			slog.Bool("authenticated", state.Authenticated()))
	}

	sched := scheduler.NewScheduler().WithLogger(logger)
	if err := sched.AddTask("session-sweep", cfg.Sessions.SweepSchedule, func(ctx context.Context) error {
		_, err := records.Sweep(ctx, time.Now())
		return err
	}); err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	planner := playback.NewPlanner(playback.Config{
		PreferredLanguages: cfg.Playback.PreferredLanguages,
		Containers:         cfg.Playback.Containers,
		VideoCodecs:        cfg.Playback.VideoCodecs,
		AudioCodecs:        cfg.Playback.AudioCodecs,
		MaxBitrate:         int64(cfg.Playback.MaxBitrate),
		PositionalFallback: cfg.Playback.PositionalFallback,
	}, logger)
	rangeProxy := proxy.New(proxy.Config{
		BufferSize:      cfg.Proxy.BufferSize,
		ConnectTimeout:  cfg.Proxy.ConnectTimeout,
		MaxPlaylistSize: cfg.Proxy.MaxPlaylistSize,
		UserAgent:       version.UserAgent(),
	}, nil, logger)
	resolver := images.NewResolver(cfg.Images.SiblingScanLimit, logger)
	placeholders := images.NewPlaceholders(cfg.Images.PlaceholderWidth, cfg.Images.PlaceholderHeight)

	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverConfig.CORSOrigins = cfg.Server.CORSOrigins
	if cfg.Telemetry.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observability.RegisterMetrics(reg)
		serverConfig.Metrics = reg
	}

	server := internalhttp.NewServer(serverConfig, logger, version.Version,
		session.Middleware(registry, cfg.Sessions.CookieName),
		middleware.ClientInfo,
	)
	api := server.API()
	router := server.Router()

	handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithCircuitBreakerManager(breakers).
		Register(api)

	handlers.NewAuthHandler(authService,
		middleware.NewOriginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		handlers.CookieConfig{Name: cfg.Sessions.CookieName, Secure: cfg.Sessions.CookieSecure},
	).WithLogger(logger).Register(api)

	handlers.NewConnectionHandler(connectionService).Register(api)
	handlers.NewSessionHandler(authService).Register(api)
	handlers.NewLibraryHandler(resolver).Register(api)
	handlers.NewMediaHandler(planner).Register(api)
	handlers.NewPlaybackHandler(playbackService).Register(api)
	handlers.NewCircuitBreakerHandler(breakers).Register(api)

	liveTVHandler := handlers.NewLiveTVHandler(livetv.NewExporter(logger)).WithLogger(logger)
	liveTVHandler.Register(api)
	liveTVHandler.RegisterFileServer(router)

	handlers.NewStreamHandler(planner, rangeProxy).WithLogger(logger).RegisterRoutes(router)
	handlers.NewImageHandler(resolver, placeholders, rangeProxy).WithLogger(logger).RegisterRoutes(router)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs", http.StatusFound)
	})

	logger.Info("starting mediabridge server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// resolveDeviceID returns the configured device id, or the one persisted on
// first start. Media servers key their device lists on it.
func resolveDeviceID(ctx context.Context, cfg config.BackendConfig, settings repository.SettingRepository) (string, error) {
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	id, ok, err := settings.Get(ctx, models.SettingDeviceID)
	if err != nil {
		return "", fmt.Errorf("loading device id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := settings.Set(ctx, models.SettingDeviceID, id); err != nil {
		return "", fmt.Errorf("storing device id: %w", err)
	}
	return id, nil
}
