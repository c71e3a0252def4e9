package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saxenaaman628/pollbox/config"
	"github.com/saxenaaman628/pollbox/internal/api"
	"github.com/saxenaaman628/pollbox/internal/controller"
	"github.com/saxenaaman628/pollbox/internal/logger"
	"github.com/saxenaaman628/pollbox/internal/middleware"
	"github.com/saxenaaman628/pollbox/internal/reconciler"
	"github.com/saxenaaman628/pollbox/internal/redis"
	redishandler "github.com/saxenaaman628/pollbox/internal/redisHandler"
	"github.com/saxenaaman628/pollbox/internal/sqlstore"
	"github.com/saxenaaman628/pollbox/internal/stats"
	"github.com/saxenaaman628/pollbox/internal/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	loc, err := stats.ParseOffset(cfg.Stats.UTCOffset)
	if err != nil {
		return err
	}

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	polls := controller.NewPollService(store, store, cfg.Poll, log, nil)
	svc := api.Services{
		Polls: polls,
		Votes: controller.NewVoteService(reconciler.New(store, log, nil), polls),
		Users: controller.NewUserService(store, tokens, cfg.Auth.BcryptCost, log, nil),
		Stats: controller.NewStatsService(store, stats.NewAggregator(loc, cfg.Stats.WindowDays), nil),
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))
	api.RegisterRoutes(r,
		api.NewHandler(svc, store, cfg, log),
		middleware.JWTAuthMiddleware(tokens, store, cfg.Auth.CookieName, log),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (controller.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redishandler.New(rdb), rdb, nil
	}
}
