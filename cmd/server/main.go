package main

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/auth"
	"github.com/automlhq/auth-service/internal/cache"
	"github.com/automlhq/auth-service/internal/config"
	"github.com/automlhq/auth-service/internal/database"
	"github.com/automlhq/auth-service/internal/handler"
	"github.com/automlhq/auth-service/internal/logger"
	"github.com/automlhq/auth-service/internal/metrics"
	"github.com/automlhq/auth-service/internal/middleware"
	"github.com/automlhq/auth-service/internal/queue"
	"github.com/automlhq/auth-service/internal/ratelimit"
	"github.com/automlhq/auth-service/internal/repository"
	"github.com/automlhq/auth-service/internal/router"
	"github.com/automlhq/auth-service/internal/store"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(err)
	}
	log := logger.L()
	defer func() { _ = log.Sync() }()

	db, err := database.Open(database.Config{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.ApplySchema(ctx, db); err != nil {
		cancel()
		log.Fatal("schema bootstrap failed", zap.Error(err))
	}
	cancel()

	st := store.New(db)
	users := repository.NewUserRepo(st)
	creds := repository.NewCredentialRepo(st)
	limits := repository.NewRateLimitRepo(st)

	// Optional collaborators: a missing Redis or RabbitMQ deployment
	// disables the session cache / event trail, never the service.
	var sessCache auth.SessionCache
	if sc := cache.New(config.NewRedisClient()); sc != nil {
		sessCache = sc
	} else {
		log.Warn("redis unavailable, session cache disabled")
	}
	events := queue.NewPublisher(cfg.AMQPURL, log)
	if events != nil {
		go queue.StartAuditConsumer(cfg.AMQPURL, log)
	}

	svc := auth.NewService(users, creds, sessCache, log,
		cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, cfg.BcryptCost)
	limiter := ratelimit.NewLimiter(limits, config.LoadRateLimitConfig(), log)
	authHandler := handler.NewAuthHandler(svc, eventSink(events), log)

	metrics.Register()

	e := echo.New()
	e.HideBanner = true
	e.Use(metrics.Middleware())
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, svc)
	router.RegisterTools(e, authHandler, svc, limiter, eventSink(events), log)

	addr := ":" + cfg.Port
	log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// eventSink converts a possibly-nil *queue.Publisher into the interface
// consumers check, avoiding a non-nil interface wrapping a nil pointer.
func eventSink(p *queue.Publisher) middleware.EventSink {
	if p == nil {
		return nil
	}
	return p
}
