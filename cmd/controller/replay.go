package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/replay"
)

func newReplayCmd(_ *rootOptions) *cobra.Command {
	var jsonOut, verbose bool
	cmd := &cobra.Command{
		Use:   "replay FIXTURE...",
		Short: "Replay recorded ticks through a fresh engine and check expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := runReplay(cmd.OutOrStdout(), path, jsonOut, verbose)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print reasons for every tick")
	return cmd
}

// #region fixture-mode
func runReplay(w io.Writer, path string, jsonOut, verbose bool) (bool, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return false, err
	}
	results, summary, err := replay.Replay(f, log.Logger)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return summary.OK(), enc.Encode(map[string]interface{}{
			"fixture": path,
			"results": results,
			"summary": summary,
		})
	}

	fmt.Fprintf(w, "Fixture: %s\n", path)
	if f.Description != "" {
		fmt.Fprintf(w, "  %s\n", f.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-5s %9s %-6s %-6s %7s %-8s %s\n", "TICK", "OFFSET", "ACTION", "EXPECT", "CONF", "RISK", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, r := range results {
		status := "ok"
		switch {
		case !r.Match:
			status = "MISMATCH"
		case !r.Eval.Passed:
			status = "EVAL FAIL"
		case r.Flipped:
			status = "flip"
		}
		expect := string(r.Expected)
		if expect == "" {
			expect = "-"
		}
		fmt.Fprintf(w, "%-5d %8dms %-6s %-6s %7.2f %-8s %s\n",
			r.Index, r.OffsetMS, r.Decision.Action, expect, r.Decision.Confidence, r.Decision.Risk, status)
		if verbose || !r.Match || !r.Eval.Passed {
			for _, reason := range r.Decision.Reasons {
				fmt.Fprintf(w, "        %s\n", reason)
			}
			if !r.Eval.Passed {
				fmt.Fprintf(w, "        %s\n", r.Eval.Reason)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Ticks: %d | BUY %d | SELL %d | HOLD %d | WAIT %d | flips %d\n",
		summary.TotalTicks,
		summary.ByAction[decision.ActionBuy], summary.ByAction[decision.ActionSell],
		summary.ByAction[decision.ActionHold], summary.ByAction[decision.ActionWait],
		summary.Flips)
	if summary.OK() {
		fmt.Fprintln(w, "RESULT: PASS")
	} else {
		fmt.Fprintf(w, "RESULT: FAIL (%d mismatches, %d eval failures)\n", summary.Mismatches, summary.EvalFailures)
	}
	return summary.OK(), nil
}

// #endregion fixture-mode
