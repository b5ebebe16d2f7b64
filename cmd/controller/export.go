package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/replay"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/state"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var symbol, out string
	var limit int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export journaled decisions as a replay fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := state.NewStore(root.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			symbol = strings.ToUpper(symbol)
			entries, err := logging.ReadJournal(store.DB(), symbol, limit)
			if err != nil {
				return err
			}
			f := replay.FromJournal(symbol, entries)
			if len(f.Ticks) == 0 {
				return fmt.Errorf("no journaled ticks for %s", symbol)
			}
			if err := replay.WriteFixture(out, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d ticks for %s to %s\n", len(f.Ticks), symbol, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to export (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "fixture.yaml", "output path (.yaml, .yml or .json)")
	cmd.Flags().IntVar(&limit, "limit", 0, "export at most N oldest entries (0 = all)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}
