package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wallyrebel/sportshorts/internal/app"
	"github.com/wallyrebel/sportshorts/internal/config"
	"github.com/wallyrebel/sportshorts/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var dryRunFlag bool
	var maxItemsFlag int

	rootCmd := &cobra.Command{
		Use:           "sportshorts",
		Short:         "Generate short videos from RSS feed items",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional .env for local runs; missing file is fine.
			_ = godotenv.Load()

			var cfg config.Config
			if configFlag != "" {
				loaded, err := config.LoadFile(configFlag)
				if err != nil {
					return err
				}
				cfg = loaded
			} else {
				cfg = config.Load()
			}

			if err := cfg.Validate(dryRunFlag); err != nil {
				return err
			}

			logger := logging.New(cfg.Logging.Level)
			application := app.New(cfg, dryRunFlag, logger)

			summary, err := application.Run(cmd.Context(), app.Options{
				DryRun:   dryRunFlag,
				MaxItems: maxItemsFlag,
			})
			if err != nil {
				return err
			}

			logger.Info("run finished",
				"run_id", summary.RunID,
				"dry_run", summary.DryRun,
				"processed", summary.Stats.Processed,
				"errors", summary.Stats.Errors,
				"created", summary.CreatedCount,
			)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "No rendering, upload, or email side effects")
	rootCmd.Flags().IntVar(&maxItemsFlag, "max-items", 0, "Maximum number of new items to process this run (0 means unlimited)")

	return rootCmd
}
