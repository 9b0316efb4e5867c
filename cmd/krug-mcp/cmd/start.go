package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/krug-dev/krug-mcp/internal/adapter/inbound/http"
	"github.com/krug-dev/krug-mcp/internal/adapter/outbound/memory"
	"github.com/krug-dev/krug-mcp/internal/adapter/outbound/redis"
	"github.com/krug-dev/krug-mcp/internal/adapter/outbound/sqlite"
	"github.com/krug-dev/krug-mcp/internal/adapter/outbound/tools"
	"github.com/krug-dev/krug-mcp/internal/config"
	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/session"
	"github.com/krug-dev/krug-mcp/internal/domain/task"
	"github.com/krug-dev/krug-mcp/internal/service"
	"github.com/krug-dev/krug-mcp/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	Long: `Start the krug-mcp server.

Examples:
  # Start with config file settings
  krug-mcp start

  # Development mode: debug logging, token "dev-token" if none configured
  krug-mcp start --dev

  # Start with a specific config file
  krug-mcp --config /path/to/krug-mcp.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, default token)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled; do not use in production")
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer func() { _ = os.Remove(pidPath) }()
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("krug-mcp stopped")
	return nil
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bootTime := time.Now().UTC()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:     "krug-mcp",
		ServiceVersion:  Version,
		Tracing:         cfg.Telemetry.Tracing,
		Metrics:         cfg.Telemetry.Metrics,
		MetricsInterval: cfg.TelemetryMetricsInterval(),
	})
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("session store close failed", "error", err)
		}
	}()

	sessions := session.NewManager(store, session.Config{
		TTL:      cfg.SessionTTL(),
		GraceTTL: cfg.SessionGraceTTL(),
	})

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(verifier)

	tasks := task.NewRegistry(
		task.WithRetention(cfg.TaskRetention()),
		task.WithLogger(logger),
	)
	defer func() { _ = tasks.Close() }()

	toolRegistry, resources, err := tools.NewCatalog(tools.Deps{
		Status: tools.StatusConfig{
			BootTime:    bootTime,
			Version:     Version,
			Environment: cfg.Server.Environment,
			Store:       sessions,
			Probe:       tools.NewHostProbe(),
			Logger:      logger,
		},
		Tasks:     tasks,
		ItemDelay: cfg.TaskItemDelay(),
	})
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}

	reg := prometheus.NewRegistry()
	http.RegisterRuntimeCollectors(reg)
	metrics := http.NewMetrics(reg)

	engine := service.NewEngine(toolRegistry,
		service.WithResources(resources),
		service.WithToolObserver(metrics),
		service.WithInstruments(provider.Instruments()),
		service.WithEngineLogger(logger),
	)
	requests := service.NewRequestHandler(engine, logger)

	opts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		http.WithLogger(logger),
		http.WithMetrics(reg, metrics),
		http.WithHealthChecker(http.NewHealthChecker(sessions, Version)),
		http.WithBaseURL(cfg.Server.BaseURL),
		http.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		opts = append(opts, http.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
	}
	transport := http.NewHTTPTransport(requests, authn, sessions, opts...)

	logger.Info("krug-mcp ready",
		"addr", cfg.Server.HTTPAddr,
		"session_store", cfg.Session.Store,
		"session_ttl", cfg.SessionTTL(),
		"tools", len(engine.Tools(ctx, nil)),
		"tracing", cfg.Telemetry.Tracing,
	)

	return transport.Start(ctx)
}

// openSessionStore builds the configured session backend.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		store := redis.NewSessionStore(client,
			redis.WithPrefix(cfg.Session.Redis.KeyPrefix),
			redis.WithOwnedClient(),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Session.Redis.Addr, err)
		}
		logger.Info("using redis session store", "addr", cfg.Session.Redis.Addr)
		return store, nil

	case config.StoreSQLite:
		store, err := sqlite.NewSessionStore(ctx, cfg.Session.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store: %w", err)
		}
		logger.Info("using sqlite session store", "path", cfg.Session.SQLite.Path)
		return store, nil

	case config.StoreMemory, "":
		store := memory.NewSessionStore()
		store.StartCleanup(ctx)
		logger.Info("using in-memory session store")
		return store, nil
	}
	return nil, errors.New("unknown session store: " + cfg.Session.Store)
}

// newVerifier picks the token verifier for the configured secret form.
func newVerifier(cfg *config.Config) (auth.TokenVerifier, error) {
	if cfg.Auth.TokenHash != "" {
		v, err := auth.NewHashedTokenVerifier(cfg.Auth.TokenHash, cfg.Auth.Subject)
		if err != nil {
			return nil, fmt.Errorf("invalid auth.token_hash: %w", err)
		}
		return v, nil
	}
	return auth.NewStaticTokenVerifier(cfg.Auth.Token, cfg.Auth.Subject), nil
}

// parseLogLevel maps a config level name to a slog.Level. Unknown values
// fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
