package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/state"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var symbol string
	var last int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show saved engine snapshots and journaled decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := state.NewStore(root.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			if symbol == "" {
				return runSymbolList(cmd.OutOrStdout(), store)
			}
			return runSymbolDetail(cmd.OutOrStdout(), store, strings.ToUpper(symbol), last, jsonOut)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "show detail for one symbol")
	cmd.Flags().IntVar(&last, "last", 20, "number of snapshots and journal entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #region list-mode
func runSymbolList(w io.Writer, store *state.Store) error {
	symbols, err := store.Symbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Fprintln(w, "No snapshots found.")
		return nil
	}
	fmt.Fprintf(w, "%-12s %-36s %-6s %6s %8s %s\n", "SYMBOL", "VERSION", "LAST", "HOLDS", "EMA", "SAVED")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, sym := range symbols {
		rec, err := store.Current(sym)
		if err != nil {
			return err
		}
		last := string(rec.Snapshot.Flap.LastAction)
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%-12s %-36s %-6s %6d %8.4f %s\n",
			sym, rec.VersionID, last, rec.Snapshot.Flap.HoldCycles,
			rec.Snapshot.EMA.Value, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode
func runSymbolDetail(w io.Writer, store *state.Store, symbol string, last int, jsonOut bool) error {
	snaps, err := store.List(symbol, last)
	if err != nil {
		return err
	}
	entries, err := logging.ReadJournal(store.DB(), symbol, 0)
	if err != nil {
		return err
	}
	if len(entries) > last {
		entries = entries[len(entries)-last:]
	}
	if len(snaps) == 0 && len(entries) == 0 {
		return errors.New("no data for " + symbol)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"symbol":    symbol,
			"snapshots": snaps,
			"journal":   entries,
		})
	}

	fmt.Fprintf(w, "=== %s ===\n\n", symbol)
	fmt.Fprintln(w, "Snapshots (newest first):")
	for _, s := range snaps {
		parent := s.ParentID
		if parent == "" {
			parent = "(root)"
		}
		fmt.Fprintf(w, "  %s  parent=%s  last=%s holds=%d cooldown=%v ema=%.4f\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"), parent,
			s.Snapshot.Flap.LastAction, s.Snapshot.Flap.HoldCycles,
			s.Snapshot.Flap.CooldownActive, s.Snapshot.EMA.Value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Journal (oldest first):")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %-4s %6.2f %-8s %s\n",
			e.DecidedAt.Format("15:04:05.000"), e.Action, e.Confidence, e.Risk, strings.Join(e.Reasons, " | "))
	}
	return nil
}

// #endregion detail-mode
