package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/api"
	"github.com/classifyhub/subject-queue/internal/db"
	"github.com/classifyhub/subject-queue/internal/worker"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		migrateFirst bool
		noWorkers    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, refill workers and the below-minimum sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger

			if migrateFirst {
				if err := db.Migrate(cfg.Database.URL); err != nil {
					return err
				}
				logger.Info("database migrations applied")
			}

			base := cmd.Context()
			a, err := buildApp(base, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			// Context for all background goroutines; cancelled on shutdown signal.
			workerCtx, cancelWorkers := context.WithCancel(base)
			defer cancelWorkers()

			var consumer refillConsumer
			if !noWorkers {
				consumer = a.newConsumer()
				consumer.Start(workerCtx)

				sweeper := worker.NewSweeper(a.queues, a.dispatcher, cfg.Refill.SweepInterval.Std(), logger)
				go sweeper.Run(workerCtx)
			}

			router := api.NewRouter(api.Services{
				Selector:   a.selector,
				Maintainer: a.maintainer,
				Queues:     a.queues,
				Depths:     a.depths,
				Ping:       a.db.Ping,
			}, a.reg, logger)
			srv := &http.Server{
				Addr:         ":" + cfg.Server.HTTPPort,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout.Std(),
				WriteTimeout: cfg.Server.WriteTimeout.Std(),
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("server starting",
					zap.String("addr", srv.Addr),
					zap.String("dispatcher", cfg.Dispatch.Backend),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			// ---- graceful shutdown ----
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			var runErr error
			select {
			case <-quit:
				logger.Info("shutdown signal received")
			case runErr = <-serveErr:
				logger.Error("server error", zap.Error(runErr))
			}

			// 1. Stop accepting new HTTP requests.
			shutdownCtx, shutdownCancel := context.WithTimeout(base, cfg.Server.ShutdownTimeout.Std())
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", zap.Error(err))
			}

			// 2. Stop refill workers and the sweeper, then wait for in-flight refills.
			cancelWorkers()
			if consumer != nil {
				consumer.Wait()
			}

			logger.Info("server stopped cleanly")
			return runErr
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", true, "Apply pending migrations before serving")
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "Serve HTTP only; refills are executed by other processes")
	return cmd
}
