package eval

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region eval-harness
// EvalHarness checks that a decision honors the engine's contract for the
// input that produced it.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates d against in. Every check is recorded; any failure fails the run.
func (h *EvalHarness) Run(in signals.Input, d decision.Decision) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, format string, args ...interface{}) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf(format, args...))
		}
	}

	// 1. Explainability: at least one reason.
	check("reasons", float64(len(d.Reasons)), len(d.Reasons) > 0, "decision has no reasons")

	// 2. Ranges.
	check("confidence_range", d.Confidence, d.Confidence >= 0 && d.Confidence <= 100,
		"confidence %.4f outside [0,100]", d.Confidence)
	check("action_valid", 0, d.Action.Valid(), "unknown action %q", d.Action)

	// 3. Safety dominance.
	if in.RiskState == signals.RiskRed || in.ExecutionWarning {
		check("safety_dominance", d.Confidence,
			d.Action == decision.ActionWait && d.Confidence == 0 && d.Risk == decision.RiskCritical,
			"unsafe input produced %s at %.2f", d.Action, d.Confidence)
	} else if err := in.Validate(); err != nil {
		malformed := d.Action == decision.ActionWait && d.Confidence == 0 &&
			len(d.Reasons) > 0 && strings.HasPrefix(d.Reasons[0], "Malformed input")
		check("malformed_wait", d.Confidence, malformed, "malformed input produced %s", d.Action)
	}

	// 4. Directional actions meet every threshold condition the engine selects on.
	t := h.config.Thresholds
	switch d.Action {
	case decision.ActionBuy:
		check("buy_thresholds", d.Confidence, t.QualifiesBuy(in, d.Confidence),
			"BUY outside thresholds (score %.1f, confidence %.1f, volatility %.2f, %s, trend %s)",
			in.Stabilized(), d.Confidence, in.ClampedVolatility(), in.RiskState, in.Trend)
	case decision.ActionSell:
		check("sell_thresholds", d.Confidence, t.QualifiesSell(in, d.Confidence),
			"SELL outside thresholds (score %.1f, confidence %.1f, %s, trend %s)",
			in.Stabilized(), d.Confidence, in.RiskState, in.Trend)
	}

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return EvalResult{Passed: passed, Metrics: metrics, Reason: reason}
}

// #endregion eval-harness
