package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/config"
	"github.com/iliyamo/hostel-booking/internal/database"
	"github.com/iliyamo/hostel-booking/internal/handler"
	"github.com/iliyamo/hostel-booking/internal/logger"
	"github.com/iliyamo/hostel-booking/internal/middleware"
	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/router"
	"github.com/iliyamo/hostel-booking/internal/service"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db, log); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
	}

	xdb := sqlx.NewDb(db, "mysql")
	users := repository.NewUserRepo(xdb)
	tokens := repository.NewTokenRepo(db)
	hostels := repository.NewHostelRepo(xdb)
	rooms := repository.NewRoomRepo(xdb)
	bookings := repository.NewBookingRepo(xdb)
	payments := repository.NewPaymentRepo(xdb)

	pub := service.NewPublisher(cfg.AMQPURL, log.Named("publisher"))
	svc := settlement.NewService(repository.NewSettlementStore(db), pub, log.Named("settlement"),
		settlement.WithAllocationDays(cfg.AllocationDays))

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, cfg.JWTSecret, log.Named("ratelimit")))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log.Named("cache"))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, log.Named("auth")), cfg.JWTSecret)
	router.RegisterStudent(e, handler.NewStudentHandler(svc, rooms, bookings, payments, users, log.Named("student")),
		cfg.JWTSecret, cache)
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, hostels, rooms, bookings, payments, users,
		cfg.BcryptCost, log.Named("admin")), cfg.JWTSecret)

	sweeper := &service.Sweeper{Bookings: svc, Tokens: tokens, Interval: cfg.SweepInterval, Log: log.Named("sweeper")}
	go sweeper.Run(ctx)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
