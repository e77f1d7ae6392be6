package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classifyhub/subject-queue/internal/config"
	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/worker"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Dispatch one refill for every queue below the minimum threshold",
		Long: "With the redis dispatcher the refills are pushed for running workers to execute.\n" +
			"With the local dispatcher they are executed in this process before it exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.close()

			var d dispatch.Dispatcher = a.dispatcher
			if cfg.Dispatch.Backend == config.DispatcherLocal {
				d = worker.NewInline(a.executor)
			}

			n, err := worker.NewSweeper(a.queues, d, cfg.Refill.SweepInterval.Std(), ctx.logger).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dispatched %d refill(s)\n", n)
			return nil
		},
	}
}
