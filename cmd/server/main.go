package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/config"
	"github.com/iliyamo/golf-intranet/internal/database"
	"github.com/iliyamo/golf-intranet/internal/handler"
	"github.com/iliyamo/golf-intranet/internal/lock"
	"github.com/iliyamo/golf-intranet/internal/logger"
	"github.com/iliyamo/golf-intranet/internal/middleware"
	"github.com/iliyamo/golf-intranet/internal/occupancy"
	"github.com/iliyamo/golf-intranet/internal/performance"
	"github.com/iliyamo/golf-intranet/internal/queue"
	"github.com/iliyamo/golf-intranet/internal/repository"
	"github.com/iliyamo/golf-intranet/internal/router"
	"github.com/iliyamo/golf-intranet/internal/session"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	log := logger.Must(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Env == "dev",
	})
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("mysql: connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	clubs := repository.NewGolfClubRepo(db)
	courses := repository.NewCourseRepo(db, clubs)
	siteIDs := repository.NewSiteIDRepo(db)
	blackList := repository.NewBlackListRepo(db)
	times := repository.NewCourseTimeRepo(db)
	joins := repository.NewJoinPersonRepo(db)

	opts := []occupancy.Option{
		occupancy.WithLogger(log.Named("occupancy")),
		occupancy.WithUpdateAttempts(cfg.Occupancy.UpdateAttempts),
	}
	if rdb != nil {
		opts = append(opts, occupancy.WithLocker(lock.NewRedisLocker(rdb, lock.Config{
			TTL:  cfg.Occupancy.LockTTL,
			Wait: cfg.Occupancy.LockWait,
		}, log.Named("lock"))))
	}
	if cfg.RabbitURL != "" {
		opts = append(opts, occupancy.WithNotifier(queue.NewPublisher(cfg.RabbitURL, log.Named("queue"))))
	}
	tracker := occupancy.NewTracker(joins, times, opts...)

	if cfg.RabbitURL != "" && cfg.Occupancy.ReconcileQueue {
		consumer := queue.NewReconcileConsumer(cfg.RabbitURL, func(ctx context.Context, timeID uint64) error {
			_, err := tracker.RecomputeOccupancy(ctx, timeID)
			return err
		}, log.Named("reconcile"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reconcile consumer stopped", zap.Error(err))
			}
		}()
	}

	sessions := session.New(users.GetByID, cfg.Session.TTL)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger.NewEchoLogger(log)
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(logger.RequestLogger(log.Named("http")))

	ready := map[string]func(context.Context) error{"mysql": db.PingContext, "redis": nil}
	if rdb != nil {
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, tokens, sessions, log),
		CourseTimes: handler.NewCourseTimeHandler(times, tracker, log),
		JoinPersons: handler.NewJoinPersonHandler(joins, tracker, blackList, sessions, log),
		Admin: &handler.AdminHandler{
			Users:      users,
			Clubs:      clubs,
			Courses:    courses,
			SiteIDs:    siteIDs,
			Sessions:   sessions,
			BcryptCost: cfg.BcryptCost,
			Log:        log,
		},
		BlackList:   &handler.BlackListHandler{Store: blackList, Log: log},
		Performance: handler.NewPerformanceHandler(performance.NewService(joins), log),
		Ready:       handler.Ready(ready),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")),
		Cache:     middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log.Named("cache")),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
