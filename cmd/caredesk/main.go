package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/caredesk/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "caredesk",
		Short:        "Care dashboard data service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(snapshotCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API and snapshot stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg, newLogger(cfg, os.Stdout))
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the reference care API with seeded data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runGateway(cfg, newLogger(cfg, os.Stdout))
		},
	}
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load patients once and print the resulting snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := snapshotOptions{}
			opts.Select, _ = cmd.Flags().GetString("select")
			opts.Search, _ = cmd.Flags().GetString("search")
			opts.Timeout, _ = cmd.Flags().GetDuration("timeout")

			// Logs go to stderr so stdout stays parseable.
			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runSnapshot(cmd.Context(), cfg, logger, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().String("select", "", "Patient id to select instead of the first one")
	cmd.Flags().String("search", "", "Search text to record in the snapshot filters")
	cmd.Flags().Duration("timeout", 0, "Overall deadline (default: twice REQUEST_TIMEOUT)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes JSON, or console output in development.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
}
