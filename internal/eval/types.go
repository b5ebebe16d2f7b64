package eval

import "github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"

// #region eval-config
// EvalConfig holds the thresholds a decision is checked against.
type EvalConfig struct {
	Thresholds engine.Thresholds
}

// DefaultEvalConfig checks against the production thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{Thresholds: engine.DefaultThresholds()}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-decision validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
