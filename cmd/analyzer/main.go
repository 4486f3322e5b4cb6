package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"presence/internal/bot"
	"presence/internal/cache"
	"presence/internal/config"
	"presence/internal/events"
	"presence/internal/google"
	"presence/internal/loader"
	"presence/internal/metrics"
	"presence/internal/report"
	"presence/internal/repository"
	"presence/internal/service"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadEnv(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("PRESENCE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	subscribeLogging(bus, &logger)

	memo := cache.New(cfg.CacheTTL(), cache.WithReloadHook(bus.ReloadHook()))

	var rdb *redis.Client
	var reports repository.ReportCache = repository.NewMemoryReportCache(0, nil)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		reports = repository.NewFailoverReportCache(repository.NewRedisReportCache(rdb), reports, &logger)
	}

	presence := service.NewPresenceService(
		memo,
		loader.NewCSVLoader(cfg.Data.CSVPath, &logger),
		loader.NewXMLLoader(cfg.Data.XMLPath, &logger),
		reports,
		&logger,
	)
	if err := presence.Ready(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial data load failed")
	}

	exporter := report.NewExporter(presence, report.NewExcelizeWriter, cfg.Export.Dir, cfg.Export.TopN)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, presence, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var b *bot.Bot
	if cfg.TelegramEnabled() {
		b, err = bot.New(cfg.Telegram.BotToken, presence, exporter, bot.Options{
			Debug:         cfg.Telegram.Debug,
			AllowedUsers:  cfg.Telegram.AllowedUsers,
			RatePerSecond: cfg.Telegram.RatePerSecond,
			Burst:         cfg.Telegram.Burst,
			TopN:          cfg.Export.TopN,
		}, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create bot error")
		}
	} else {
		logger.Warn().Msg("telegram.bot_token not set, bot disabled")
	}

	if cfg.Export.Enabled {
		var publishers []report.Publisher
		if b != nil && len(cfg.Telegram.ReportChats) > 0 {
			publishers = append(publishers, bot.NewDocumentNotifier(b, cfg.Telegram.ReportChats))
		}
		if cfg.Google.Enabled {
			sheets, err := google.NewSheetsPublisher(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.Sheet, &logger)
			if err != nil {
				logger.Error().Err(err).Msg("google sheets publisher disabled")
			} else {
				publishers = append(publishers, sheets)
			}
		}
		scheduler := report.NewScheduler(exporter, publishers, bus, cfg.Export.OnStart, &logger)
		scheduler.Start()
		defer scheduler.Stop()
	}

	logger.Info().
		Str("csv", cfg.Data.CSVPath).
		Str("xml", cfg.Data.XMLPath).
		Dur("ttl", cfg.CacheTTL()).
		Msg("presence analyzer started")

	if b != nil {
		b.Start(ctx)
		return
	}
	<-ctx.Done()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func subscribeLogging(bus *events.EventBus, logger *zerolog.Logger) {
	l := logger.With().Str("component", "events").Logger()
	logEvent := func(e events.Event) error {
		l.Debug().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("event")
		return nil
	}
	bus.Subscribe(events.TypeCacheReloaded, logEvent)
	bus.Subscribe(events.TypeReportExported, logEvent)
	bus.Subscribe(events.TypeCacheReloadFailed, func(e events.Event) error {
		l.Warn().RawJSON("payload", e.Payload).Msg("cache reload failed")
		return nil
	})
}

type readiness interface {
	Ready(ctx context.Context) error
}

func newHealthMux(ctx context.Context, presence readiness, rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := presence.Ready(ctxPing); err != nil {
			http.Error(w, "data not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

func startHealthServer(ctx context.Context, port int, presence readiness, rdb *redis.Client, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newHealthMux(ctx, presence, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
