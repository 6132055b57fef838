package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/writestack/noteflow/config"
	"github.com/writestack/noteflow/internal/backend"
	"github.com/writestack/noteflow/internal/browser"
	"github.com/writestack/noteflow/internal/email"
	"github.com/writestack/noteflow/internal/health"
	"github.com/writestack/noteflow/internal/infrastructure/postgres"
	ctxlog "github.com/writestack/noteflow/internal/log"
	"github.com/writestack/noteflow/internal/metrics"
	"github.com/writestack/noteflow/internal/publisher"
	"github.com/writestack/noteflow/internal/substack"
	"github.com/writestack/noteflow/internal/timer"
	httptransport "github.com/writestack/noteflow/internal/transport/http"
	"github.com/writestack/noteflow/internal/transport/http/handler"
	"github.com/writestack/noteflow/internal/trigger"
	"github.com/writestack/noteflow/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	repo := postgres.NewScheduleRepository(pool, logger)
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendCookie, logger)
	substackClient := substack.NewClient(cfg.SubstackBaseURL, cfg.SubstackCookie)
	preparer := substack.NewPreparer(substackClient, logger, cfg.MaxAttachments)
	alerts := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	var pub publisher.Publisher
	if cfg.PublishMode == "dom" {
		bridge := browser.NewBridge(cfg.BridgeURL, logger)
		pub = publisher.NewDOMPublisher(bridge, cfg.SubstackBaseURL,
			time.Duration(cfg.SettleDelayMS)*time.Millisecond, cfg.KeepTabOpen, logger)
	} else {
		pub = publisher.NewAPIPublisher(substackClient, logger)
	}
	logger.Info("publish adapter selected", "mode", cfg.PublishMode)

	// The timer fires on its own goroutine; each trigger runs detached so a
	// slow publish cannot delay sibling schedules.
	var orch *trigger.Orchestrator
	timers := timer.New(func(scheduleID string) {
		go orch.Trigger(ctx, scheduleID, trigger.Options{})
	}, logger)
	orch = trigger.New(repo, backendClient, preparer, pub, timers, alerts, cfg.AlertEmail, logger)

	go timers.Start(ctx)

	reconciler := timer.NewReconciler(repo, timers, logger, time.Duration(cfg.MissedGraceSec)*time.Second)
	if err := reconciler.Start(ctx, cfg.ReconcileSpec); err != nil {
		stop()
		log.Fatalf("reconciler: %v", err)
	}

	uc := usecase.NewScheduleUsecase(repo, timers, orch, backendClient)
	scheduleHandler := handler.NewScheduleHandler(uc, logger)

	metrics.Register()
	checker := health.NewChecker(pool, backendClient, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, scheduleHandler, []byte(cfg.JWTSecret)),
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
