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
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/jobs"
	"github.com/tableside/api/internal/logger"
	"github.com/tableside/api/internal/media"
	"github.com/tableside/api/internal/notify"
	"github.com/tableside/api/internal/router"
	"github.com/tableside/api/internal/service"
	"github.com/tableside/api/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run() error {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		return fmt.Errorf("load report timezone %q: %w", cfg.ReportTimezone, err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info("connected to database")

	hub := ws.NewHub()
	go hub.Run(ctx)

	// A single instance fans out in-process; with Redis every instance
	// receives every change.
	var broker notify.Broker = notify.NewLocal(hub)
	if cfg.RedisURL != "" {
		rb, err := notify.NewRedis(cfg.RedisURL, hub)
		if err != nil {
			return err
		}
		defer rb.Close() //nolint:errcheck
		if err := rb.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		go rb.Run(ctx)
		broker = rb
		log.Info("change feed via redis")
	}

	var images service.ImageStore
	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			return err
		}
		images = cld
	} else {
		log.Warn("CLOUDINARY_URL not set, menu images are stored as given")
	}

	svc := router.NewServices(pool, database.New(pool), broker, images, loc)

	if cfg.ReconcileInterval > 0 {
		sched, err := jobs.NewReconcileScheduler(ctx, svc.Tables, cfg.ReconcileInterval, log.StandardLogger())
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Shutdown() //nolint:errcheck
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, svc, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
