package confidence

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// weightTolerance bounds the floating error allowed when weights are summed.
const weightTolerance = 1e-6

// #region weights
// Weights are the linear coefficients of the six factors. They must be
// non-negative and sum to 1.
type Weights struct {
	Fused      float64 `json:"fused" mapstructure:"fused"`
	Trend      float64 `json:"trend" mapstructure:"trend"`
	Shield     float64 `json:"shield" mapstructure:"shield"`
	Volatility float64 `json:"volatility" mapstructure:"volatility"`
	Drift      float64 `json:"drift" mapstructure:"drift"`
	Historical float64 `json:"historical" mapstructure:"historical"`
}

// DefaultWeights returns 0.35/0.20/0.15/0.15/0.10/0.05.
func DefaultWeights() Weights {
	return Weights{
		Fused:      0.35,
		Trend:      0.20,
		Shield:     0.15,
		Volatility: 0.15,
		Drift:      0.10,
		Historical: 0.05,
	}
}

// Sum adds all six weights.
func (w Weights) Sum() float64 {
	return w.Fused + w.Trend + w.Shield + w.Volatility + w.Drift + w.Historical
}

// Validate rejects negative weights and sets that do not sum to 1.
func (w Weights) Validate() error {
	var errs []error
	named := []struct {
		name string
		v    float64
	}{
		{"fused", w.Fused},
		{"trend", w.Trend},
		{"shield", w.Shield},
		{"volatility", w.Volatility},
		{"drift", w.Drift},
		{"historical", w.Historical},
	}
	for _, n := range named {
		if math.IsNaN(n.v) || n.v < 0 {
			errs = append(errs, fmt.Errorf("weight %s must be non-negative, got %v", n.name, n.v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("weights must sum to 1.0, got %.6f", sum))
	}
	return errors.Join(errs...)
}

// #endregion weights

// #region factors
// Factors are the six per-tick inputs to the weighted sum, each in [0,1].
type Factors struct {
	FusedConfidence    float64
	TrendConsistency   float64
	ShieldRisk         float64
	Volatility         float64
	Drift              float64
	HistoricalAccuracy float64
}

// shieldRisk maps each risk state to its penalty. RED is unreachable past the
// safety gate but kept so the table is total.
var shieldRisk = map[signals.RiskState]float64{
	signals.RiskGreen:  0.0,
	signals.RiskYellow: 0.15,
	signals.RiskOrange: 0.40,
	signals.RiskRed:    0.70,
}

// #endregion factors

// #region ema
// EMA is the running smoothed confidence (0-1 scale).
type EMA struct {
	Value  float64 `json:"value"`
	Seeded bool    `json:"seeded"`
}

// #endregion ema

// #region model
// Config parameterizes the model.
type Config struct {
	Weights             Weights
	Alpha               float64 // EMA smoothing factor, (0,1]
	DriftSpikeThreshold float64 // |drift| at which the drift factor saturates
}

// Model turns an input into a smoothed confidence score.
type Model struct {
	config   Config
	accuracy AccuracySource
}

// NewModel creates a model. A nil accuracy source uses the placeholder constant.
func NewModel(config Config, accuracy AccuracySource) *Model {
	if accuracy == nil {
		accuracy = ConstantAccuracy(DefaultHistoricalAccuracy)
	}
	return &Model{config: config, accuracy: accuracy}
}

// Factors derives the six clamped factors for an input.
func (m *Model) Factors(in signals.Input) Factors {
	drift := 1.0
	if m.config.DriftSpikeThreshold > 0 {
		drift = math.Min(1, math.Abs(in.DriftRate)/m.config.DriftSpikeThreshold)
	}
	return Factors{
		FusedConfidence:    signals.Clamp01(in.Confidence() / 100),
		TrendConsistency:   trendConsistency(in.SignalDirection(), in.Trend),
		ShieldRisk:         signals.Clamp01(shieldRisk[in.RiskState]),
		Volatility:         in.ClampedVolatility(),
		Drift:              signals.Clamp01(drift),
		HistoricalAccuracy: signals.Clamp01(m.accuracy.HistoricalAccuracy(in)),
	}
}

// Raw computes the unsmoothed weighted sum (0-1 scale).
func (m *Model) Raw(f Factors) float64 {
	w := m.config.Weights
	return f.FusedConfidence*w.Fused +
		f.TrendConsistency*w.Trend +
		(1-f.ShieldRisk)*w.Shield +
		(1-f.Volatility)*w.Volatility +
		(1-f.Drift)*w.Drift +
		f.HistoricalAccuracy*w.Historical
}

// Compute returns the smoothed confidence on a 0-100 scale and the next EMA state.
// The first observation seeds the EMA without smoothing.
func (m *Model) Compute(in signals.Input, prev EMA) (float64, EMA) {
	raw := m.Raw(m.Factors(in))

	smoothed := raw
	if prev.Seeded {
		smoothed = m.config.Alpha*raw + (1-m.config.Alpha)*prev.Value
	}
	smoothed = signals.Clamp01(smoothed)

	return smoothed * 100, EMA{Value: smoothed, Seeded: true}
}

// #endregion model

// #region helpers
// trendConsistency scores agreement between the raw signal and the trend label.
func trendConsistency(signal, trend signals.Direction) float64 {
	switch {
	case signal == trend:
		return 1.0
	case signal == signals.DirectionFlat || trend == signals.DirectionFlat:
		return 0.5
	default:
		return 0.0
	}
}

// #endregion helpers
