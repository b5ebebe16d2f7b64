// Command controller runs and inspects decision-gating engines.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
)

// #region root
type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "controller",
		Short:         "Decision-gating engine for trading signals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := logging.Setup(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "engine config file (YAML or JSON)")
	pf.StringVar(&opts.dbPath, "db", envOr("GATEKEEPER_DB", "gatekeeper.db"), "SQLite database for snapshots and the decision journal")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")

	root.AddCommand(
		newServeCmd(opts),
		newReplayCmd(opts),
		newInspectCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// #endregion root

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("controller failed")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
