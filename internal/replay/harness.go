package replay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/clock"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
)

// #region types
// ReplayResult captures the outcome of one tick.
type ReplayResult struct {
	Index    int
	OffsetMS int64
	Decision decision.Decision
	Expected decision.Action // empty when the fixture set no expectation
	Match    bool
	Flipped  bool
	Eval     eval.EvalResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTicks   int
	ByAction     map[decision.Action]int
	Flips        int
	Mismatches   int
	EvalFailures int
	FinalFlap    engine.Snapshot
}

// OK reports whether every expectation and invariant held.
func (s ReplaySummary) OK() bool {
	return s.Mismatches == 0 && s.EvalFailures == 0
}

// #endregion types

// #region replay
// Replay runs the fixture through a fresh engine on a manual clock. It fails
// only on an invalid config or non-monotonic offsets; per-tick problems are
// reported in the results.
func Replay(f *Fixture, log zerolog.Logger) ([]ReplayResult, ReplaySummary, error) {
	patch, err := f.Config.ToPatch()
	if err != nil {
		return nil, ReplaySummary{}, err
	}
	cfg := patch.Apply(engine.DefaultConfig())

	start := f.Start
	if start.IsZero() {
		start = DefaultStart
	}
	clk := clock.NewManual(start)
	e, err := engine.New(cfg, engine.WithClock(clk), engine.WithSymbol(f.Symbol), engine.WithLogger(log))
	if err != nil {
		return nil, ReplaySummary{}, err
	}

	flipped := false
	events.OnFlipSignal(e.Events(), func(events.FlipSignal) { flipped = true })

	evalInst := eval.NewEvalHarness(eval.EvalConfig{Thresholds: cfg.Thresholds})
	summary := ReplaySummary{ByAction: make(map[decision.Action]int)}
	results := make([]ReplayResult, 0, len(f.Ticks))

	var last int64
	for i, tick := range f.Ticks {
		if tick.OffsetMS < last {
			return results, summary, fmt.Errorf("tick %d: offset %dms before previous %dms", i, tick.OffsetMS, last)
		}
		last = tick.OffsetMS
		clk.Set(start.Add(time.Duration(tick.OffsetMS) * time.Millisecond))

		flipped = false
		d := e.Decide(tick.Input)
		r := ReplayResult{
			Index:    i,
			OffsetMS: tick.OffsetMS,
			Decision: d,
			Expected: tick.Expect,
			Match:    tick.Expect == "" || tick.Expect == d.Action,
			Flipped:  flipped,
			Eval:     evalInst.Run(tick.Input, d),
		}

		summary.TotalTicks++
		summary.ByAction[d.Action]++
		if r.Flipped {
			summary.Flips++
		}
		if !r.Match {
			summary.Mismatches++
		}
		if !r.Eval.Passed {
			summary.EvalFailures++
		}
		results = append(results, r)
	}
	summary.FinalFlap = e.Snapshot()
	return results, summary, nil
}

// #endregion replay
