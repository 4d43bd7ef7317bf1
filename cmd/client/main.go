package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/habitsync/internal/client/cli"
	"github.com/dmitrijs2005/habitsync/internal/client/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		dataDir  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "habitsync",
		Short: "Habit affirmations that stay in sync across devices",
		// -a, -i, -c and friends are read by the config package
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(os.Args[1:])
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			app, err := cli.NewApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			app.Run(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the database, audio files and logs")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return cmd
}
