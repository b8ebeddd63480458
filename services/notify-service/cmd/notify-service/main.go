package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intonus/salon-backend/libs/auth"
	"github.com/intonus/salon-backend/libs/config"
	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/libs/httpx"
	"github.com/intonus/salon-backend/libs/inbox"
	"github.com/intonus/salon-backend/libs/kafkax"
	otelx "github.com/intonus/salon-backend/libs/otel"
	"github.com/intonus/salon-backend/libs/runtime"
	"github.com/intonus/salon-backend/services/notify-service/internal/alerts"
	"github.com/intonus/salon-backend/services/notify-service/internal/dispatch"
	"github.com/intonus/salon-backend/services/notify-service/internal/gateway"
	"github.com/intonus/salon-backend/services/notify-service/internal/handlers"
	"github.com/intonus/salon-backend/services/notify-service/internal/queue"
	"github.com/intonus/salon-backend/services/notify-service/internal/telegram"
)

func main() {
	service := config.String("SERVICE_NAME", "notify-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("SALON_TZ", "Europe/Moscow"))
	if err != nil {
		logger.Error("invalid SALON_TZ; falling back to UTC", "err", err)
		loc = time.UTC
	}

	queueRepo := queue.NewRepository(pool)

	// Gateway credentials and dispatch pacing live in the gateway_settings
	// table; env vars override for local runs.
	settings, err := queueRepo.Settings(ctx)
	if err != nil {
		logger.Error("gateway settings load failed; using defaults", "err", err)
		settings = queue.Settings{DefaultRoute: "wp-sms", DefaultPriority: 2, QueueCheckInterval: 60 * time.Second, BatchSize: 50}
	}
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:         config.String("GATEWAY_BASE_URL", settings.BaseURL),
		APIKey:          config.String("GATEWAY_API_KEY", settings.APIKey),
		SenderName:      config.String("GATEWAY_SENDER_NAME", settings.SenderName),
		DefaultRoute:    settings.DefaultRoute,
		DefaultPriority: settings.DefaultPriority,
		TestMode:        config.Bool("GATEWAY_TEST_MODE", settings.TestMode),
	}, logger)
	telegramClient := telegram.NewClient()

	dispatcher := dispatch.New(queueRepo, gatewayClient, telegramClient, logger, loc, dispatch.Config{
		Interval:  config.Duration("DISPATCH_INTERVAL", settings.QueueCheckInterval),
		BatchSize: config.Int("DISPATCH_BATCH_SIZE", settings.BatchSize),
		Location:  settings.Location,
		SiteURL:   config.String("SITE_URL", settings.SiteURL),
	})
	go dispatcher.Run(ctx)

	alertHandler := alerts.NewHandler(alerts.NewRepository(pool), telegramClient, logger, loc)
	consumer := kafkax.NewConsumer(logger, inbox.NewRepository(pool), kafkax.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notify-service"),
		Topics:  alerts.Topics,
	}, alertHandler.Handle)
	go consumer.Run(ctx)

	adminHandler := handlers.NewAdminHandler(queueRepo, gatewayClient, logger)
	requireAdmin := auth.RequireAdmin(adminVerifier(logger))

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("GET /admin/balance", requireAdmin(http.HandlerFunc(adminHandler.Balance)))
	mux.Handle("GET /admin/notifications", requireAdmin(http.HandlerFunc(adminHandler.List)))
	mux.Handle("POST /admin/notifications/{id}/requeue", requireAdmin(http.HandlerFunc(adminHandler.Requeue)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notify")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func adminVerifier(logger *slog.Logger) auth.Verifier {
	if url := config.String("AUTH_JWKS_URL", ""); url != "" {
		return auth.RS256Verifier{Keys: auth.NewJWKSClient(url, 5*time.Minute)}
	}
	secret := config.String("AUTH_JWT_SECRET", "")
	if secret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; admin endpoints will reject all tokens")
	}
	return auth.HS256Verifier{Secret: secret}
}
