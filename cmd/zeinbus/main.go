package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"zeinbus/internal/api"
	"zeinbus/internal/backend"
	"zeinbus/internal/bot"
	"zeinbus/internal/config"
	"zeinbus/internal/db"
	"zeinbus/internal/events"
	"zeinbus/internal/metrics"
	"zeinbus/internal/service"
	"zeinbus/internal/session"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("ZEINBUS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	client := backend.NewClient(cfg.Backend.GraphQLURL, cfg.Backend.APIToken, cfg.BackendTimeout())
	client.UseRateLimit(cfg.Backend.RatePerSecond, cfg.Backend.Burst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	bus := events.NewEventBus()
	subscribeEventLog(bus, &logger)

	snapshots := service.NewSnapshots(client, bus, &logger)
	if _, err := snapshots.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial booking configuration load failed")
	}
	if err := snapshots.StartRefresh(ctx, cfg.Booking.SnapshotRefreshCron); err != nil {
		logger.Fatal().Err(err).Msg("schedule snapshot refresh")
	}

	svc := service.NewBookingService(client, snapshots, database, bus, service.Options{
		Location:           cfg.Location(),
		DefaultDestination: cfg.Booking.DefaultDestination,
	}, &logger)

	err = config.WatchFares(ctx, cfg.Booking.FaresPath, 30*time.Second, func(f *config.FaresConfig) {
		svc.SetPricing(f.Pricing())
		logger.Info().
			Int64("one_way", int64(f.Defaults.OneWay)).
			Int64("return", int64(f.Defaults.Return)).
			Int64("round_trip", int64(f.Defaults.RoundTrip)).
			Msg("fares loaded")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("load fares")
	}

	sessions := session.NewManager(database, client)

	backup := db.NewBackupService(database, cfg.Backup, &logger)
	go backup.Start(ctx)
	go purgeExpiredSessions(ctx, database, &logger)

	ready := func(ctx context.Context) error {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			return fmt.Errorf("db not ready: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				return fmt.Errorf("redis not ready: %w", err)
			}
		}
		return nil
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, ready, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.API.Enabled {
		srv := api.NewHTTPServer(cfg.API.Port, cfg.API.AllowedOrigins, svc, sessions, ready, &logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("HTTP API error")
				stop()
			}
		}()
		go func() {
			<-ctx.Done()
			ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctxShutdown)
		}()
	}

	if cfg.Telegram.Enabled {
		b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, svc, sessions, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create bot error")
		}
		b.StartNotifier(ctx, database, cfg.NotifyInterval())
		go b.Start(ctx)
	}

	logger.Info().
		Bool("api", cfg.API.Enabled).
		Bool("telegram", cfg.Telegram.Enabled).
		Str("timezone", cfg.Booking.Timezone).
		Msg("zeinbus started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

// subscribeEventLog writes every booking event to the log.
func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	for _, t := range []string{
		events.BookingCreated,
		events.BookingRejected,
		events.BookingFailed,
		events.BookingCancelled,
		events.SnapshotRefreshed,
	} {
		bus.Subscribe(t, func(ev events.Event) error {
			logger.Info().
				Str("event", ev.Type).
				Str("user_id", ev.UserID).
				RawJSON("payload", nonEmptyJSON(ev.Payload)).
				Msg("event")
			return nil
		})
	}
}

func nonEmptyJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

func purgeExpiredSessions(ctx context.Context, database *db.DB, logger *zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.PurgeExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.Error().Err(err).Msg("purge expired sessions")
				continue
			}
			if n > 0 {
				logger.Info().Int64("removed", n).Msg("expired sessions purged")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, ready api.ReadyFunc, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, port, mux, "metrics", logger)
}

func serve(ctx context.Context, port int, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
