package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intonus/salon-backend/libs/auth"
	"github.com/intonus/salon-backend/libs/config"
	"github.com/intonus/salon-backend/libs/db"
	"github.com/intonus/salon-backend/libs/httpx"
	"github.com/intonus/salon-backend/libs/kafkax"
	otelx "github.com/intonus/salon-backend/libs/otel"
	"github.com/intonus/salon-backend/libs/outbox"
	"github.com/intonus/salon-backend/libs/runtime"
	"github.com/intonus/salon-backend/services/booking-service/internal/booking"
	"github.com/intonus/salon-backend/services/booking-service/internal/handlers"
	"github.com/intonus/salon-backend/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	bookingRepo := storage.NewBookingRepository(pool)
	clientRepo := storage.NewClientRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	queueRepo := storage.NewQueueRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	bookingSvc := booking.NewService(bookingRepo, scheduleRepo, clientRepo, queueRepo, outboxRepo, logger, loc)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, bookingRepo, logger, loc)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	limit := publicRateLimit(logger)
	requireAdmin := auth.RequireAdmin(adminVerifier(logger))

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("GET /slots", limit(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("POST /bookings", limit(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("POST /bookings/{id}/cancel", limit(http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("GET /admin/appointments", requireAdmin(http.HandlerFunc(bookingHandler.AdminList)))
	mux.Handle("PUT /admin/appointments/{id}", requireAdmin(http.HandlerFunc(bookingHandler.AdminPatch)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(corsPolicy()),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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

func corsPolicy() httpx.CORSPolicy {
	origins := config.String("CORS_ORIGINS", "")
	if origins == "" {
		return httpx.CORSPolicy{}
	}
	return httpx.CORSPolicy{
		AllowedOrigins: strings.Split(origins, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         10 * time.Minute,
	}
}

func publicRateLimit(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT", 60)
	window := config.Duration("RATE_LIMIT_WINDOW", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, logger, limit, window, "booking").Middleware()
	}
	return httpx.NewRateLimiter(limit, window).Middleware()
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
