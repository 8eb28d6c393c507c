// Command scribe is the main entrypoint for the guide channel curation
// service. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Opens the platform gateway socket and fans events out to the reply
//     waiters and the trigger listener.
//   - Starts the catalog and Drive token refreshers.
//   - Exposes the admin HTTP API with /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/marovik/scribe/archive"
	"github.com/marovik/scribe/catalog"
	"github.com/marovik/scribe/chanops"
	"github.com/marovik/scribe/config"
	"github.com/marovik/scribe/crypto"
	"github.com/marovik/scribe/db"
	"github.com/marovik/scribe/emoji"
	"github.com/marovik/scribe/enrich"
	"github.com/marovik/scribe/oauth"
	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/server"
	"github.com/marovik/scribe/telemetry"
	"github.com/marovik/scribe/trigger"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidatePlatformReady(); err != nil {
		slog.Error("platform config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("scribe", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; deployments predating the
	// schema_migrations table fall back to the embedded idempotent SQL.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to legacy embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform REST client and gateway socket
	client := platform.New(cfg.PlatformAPIBase, cfg.PlatformPublicURL, cfg.PlatformBotToken)
	waiters := platform.NewWaiters()
	if cfg.PlatformGatewayURL != "" {
		gateway := platform.NewGateway(cfg.PlatformGatewayURL, cfg.PlatformBotToken)
		gateway.OnMessage(waiters.Handle)
		gateway.OnMessage(trigger.NewListener(database, client).Handler(ctx))
		go func() {
			if err := gateway.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("gateway exited", slog.Any("err", err))
			}
		}()
	} else {
		slog.Warn("PLATFORM_GATEWAY_URL not set; trigger replies and interactive edits are disabled")
	}

	// Emoji codec, with optional map override for other guilds
	codec, err := emoji.Load(cfg.EmojiMapPath)
	if err != nil {
		slog.Error("emoji map load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Item catalog client; enrichment stays off without credentials
	var enricher *enrich.Rewriter
	if err := cfg.ValidateCatalogReady(); err != nil {
		slog.Warn("catalog creds missing, link enrichment disabled", slog.Any("err", err))
	} else {
		tokens := &catalog.TokenSource{
			ClientID:     cfg.CatalogClientID,
			ClientSecret: cfg.CatalogClientSecret,
			TokenURL:     cfg.CatalogTokenURL,
			DB:           database,
		}
		tokens.StartRefresher(ctx, 30*time.Minute)
		enricher = &enrich.Rewriter{
			Source: &catalog.Client{
				Tokens:    tokens,
				BaseURL:   cfg.CatalogAPIBase,
				Namespace: cfg.CatalogNamespace,
				Locale:    cfg.CatalogLocale,
			},
			Workers: cfg.EnrichWorkers,
		}
	}

	// Bundle encryption at rest
	var bundleKey *crypto.AESEncryptor
	if cfg.BundleEncryptionKey != "" {
		bundleKey, err = crypto.NewAESEncryptor(cfg.BundleEncryptionKey)
		if err != nil {
			slog.Error("invalid BUNDLE_ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
	}

	engine := &chanops.Engine{
		Log:          chanops.PlatformLog{Client: client},
		BotID:        cfg.PlatformBotUserID,
		Emoji:        codec,
		Enricher:     enricher,
		DataDir:      cfg.DataDir,
		SummaryTitle: cfg.SummaryTitle,
		BundleKey:    bundleKey,
		Waiters:      waiters,
		ReplyTimeout: cfg.EditReplyTimeout,
	}

	// Drive archive, plus the centralized token refresher when connected
	drive := archive.New(cfg, &db.TokenStoreAdapter{DB: database})
	if drive.Enabled() {
		oauth.StartRefresher(ctx, database, archive.Provider, 10*time.Minute, 20*time.Minute, drive.RefreshFunc())
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// Admin HTTP API
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handlers := server.NewHandlers(ctx, database, cfg, engine, client, drive)
	go func() {
		if err := server.Start(ctx, handlers, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
