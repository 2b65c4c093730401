package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labcaja/internal/config"
	"labcaja/internal/infra"
	"labcaja/internal/repository"
	"labcaja/internal/router"
	"labcaja/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title labcaja API
// @version 1.0
// @description Sesiones de caja, movimientos y vaciado de registradoras.
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in development, JSON in production
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var events infra.EventPublisher = infra.NopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := infra.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer nats.Close()
		events = nats
	}

	metrics := infra.NewMetrics()

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	handlers := map[string]worker.Handler{
		worker.JobClosingReport: worker.NewClosingReportWorker(
			repository.NewCajaRepository(db), dispatcher, cfg.ReportStoragePath, cfg.ReportRecipient, metrics,
		),
	}
	if mailer.Enabled() {
		handlers[worker.JobEmail] = worker.NewEmailWorker(mailer)
	} else {
		log.Warn().Msg("SMTP_HOST not set: closing reports will not be emailed")
	}
	worker.NewPool(rdb, handlers, metrics).Start(ctx, cfg.WorkerPoolSize)

	r, err := router.New(router.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Metrics:    metrics,
		Events:     events,
		Dispatcher: dispatcher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("labcaja backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
