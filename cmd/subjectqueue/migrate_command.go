package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classifyhub/subject-queue/internal/db"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert every applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(cfg.Database.URL); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, databaseURL string) error {
	v, dirty, err := db.Version(databaseURL)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", v, suffix)
	return nil
}
