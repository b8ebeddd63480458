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
	"github.com/intonus/salon-backend/services/salon-service/internal/handlers"
	"github.com/intonus/salon-backend/services/salon-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "salon-service")
	port, err := config.Port("PORT", "8082")
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

	staffRepo := storage.NewStaffRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	staffHandler := handlers.NewStaffHandler(staffRepo, outboxRepo, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, staffRepo, outboxRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)

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

	mux.Handle("GET /staff", limit(http.HandlerFunc(staffHandler.PublicList)))
	mux.Handle("GET /services", limit(http.HandlerFunc(catalogHandler.PublicListServices)))

	mux.Handle("GET /admin/staff", requireAdmin(http.HandlerFunc(staffHandler.AdminList)))
	mux.Handle("POST /admin/staff", requireAdmin(http.HandlerFunc(staffHandler.Create)))
	mux.Handle("GET /admin/staff/{id}", requireAdmin(http.HandlerFunc(staffHandler.Get)))
	mux.Handle("PUT /admin/staff/{id}", requireAdmin(http.HandlerFunc(staffHandler.Update)))
	mux.Handle("DELETE /admin/staff/{id}", requireAdmin(http.HandlerFunc(staffHandler.Delete)))

	mux.Handle("GET /admin/staff/{id}/working-hours", requireAdmin(http.HandlerFunc(scheduleHandler.ListWorkingHours)))
	mux.Handle("POST /admin/staff/{id}/working-hours", requireAdmin(http.HandlerFunc(scheduleHandler.CreateWorkingHours)))
	mux.Handle("PUT /admin/working-hours/{id}", requireAdmin(http.HandlerFunc(scheduleHandler.UpdateWorkingHours)))
	mux.Handle("DELETE /admin/working-hours/{id}", requireAdmin(http.HandlerFunc(scheduleHandler.DeleteWorkingHours)))

	mux.Handle("GET /admin/staff/{id}/time-off", requireAdmin(http.HandlerFunc(scheduleHandler.ListTimeOff)))
	mux.Handle("POST /admin/staff/{id}/time-off", requireAdmin(http.HandlerFunc(scheduleHandler.CreateTimeOff)))
	mux.Handle("DELETE /admin/time-off/{id}", requireAdmin(http.HandlerFunc(scheduleHandler.DeleteTimeOff)))

	mux.Handle("GET /admin/services", requireAdmin(http.HandlerFunc(catalogHandler.AdminListServices)))
	mux.Handle("POST /admin/services", requireAdmin(http.HandlerFunc(catalogHandler.CreateService)))
	mux.Handle("PUT /admin/services/{id}", requireAdmin(http.HandlerFunc(catalogHandler.UpdateService)))
	mux.Handle("DELETE /admin/services/{id}", requireAdmin(http.HandlerFunc(catalogHandler.DeleteService)))

	mux.Handle("GET /admin/notification-templates", requireAdmin(http.HandlerFunc(catalogHandler.ListTemplates)))
	mux.Handle("PUT /admin/notification-templates/{id}", requireAdmin(http.HandlerFunc(catalogHandler.UpdateTemplate)))

	mux.Handle("GET /admin/gateway-settings", requireAdmin(http.HandlerFunc(catalogHandler.GetSettings)))
	mux.Handle("PUT /admin/gateway-settings", requireAdmin(http.HandlerFunc(catalogHandler.UpdateSettings)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(corsPolicy()),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "salon")
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
	limit := config.Int("RATE_LIMIT", 120)
	window := config.Duration("RATE_LIMIT_WINDOW", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, logger, limit, window, "salon").Middleware()
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
