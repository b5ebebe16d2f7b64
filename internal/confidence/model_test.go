package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

func defaultModel() *Model {
	return NewModel(Config{Weights: DefaultWeights(), Alpha: 0.25, DriftSpikeThreshold: 0.10}, nil)
}

func TestWeights_DefaultsSumToOne(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
}

func TestWeights_Validate(t *testing.T) {
	w := DefaultWeights()
	w.Trend = 0.30
	assert.ErrorContains(t, w.Validate(), "sum to 1.0")

	w = DefaultWeights()
	w.Fused = 0.45
	w.Drift = 0
	w.Historical = 0.05
	w.Volatility = 0.15
	w.Shield = 0.15
	w.Trend = 0.20
	assert.NoError(t, w.Validate())

	w.Drift = -0.1
	w.Fused = 0.55
	assert.ErrorContains(t, w.Validate(), "drift must be non-negative")
}

func TestFactors(t *testing.T) {
	m := defaultModel()
	conf := 60.0

	f := m.Factors(signals.Input{
		FusedScore:      75,
		FusedConfidence: &conf,
		Signal:          signals.DirectionFlat,
		Trend:           signals.DirectionUp,
		RiskState:       signals.RiskOrange,
		Volatility:      1.7,
		DriftRate:       -0.05,
	})

	assert.InDelta(t, 0.60, f.FusedConfidence, 1e-9)
	assert.Equal(t, 0.5, f.TrendConsistency)
	assert.Equal(t, 0.40, f.ShieldRisk)
	assert.Equal(t, 1.0, f.Volatility)
	assert.InDelta(t, 0.5, f.Drift, 1e-9)
	assert.Equal(t, DefaultHistoricalAccuracy, f.HistoricalAccuracy)
}

func TestFactors_TrendMismatchAndDriftCap(t *testing.T) {
	m := defaultModel()

	f := m.Factors(signals.Input{
		Signal:    signals.DirectionDown,
		Trend:     signals.DirectionUp,
		RiskState: signals.RiskGreen,
		DriftRate: 0.9,
	})

	assert.Equal(t, 0.0, f.TrendConsistency)
	assert.Equal(t, 1.0, f.Drift)
}

func TestCompute_FirstObservationSeeds(t *testing.T) {
	m := defaultModel()
	in := signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3, DriftRate: 0.02}

	conf, ema := m.Compute(in, EMA{})

	assert.InDelta(t, 82.25, conf, 1e-9)
	assert.True(t, ema.Seeded)
	assert.InDelta(t, 0.8225, ema.Value, 1e-9)
}

func TestCompute_Smoothing(t *testing.T) {
	m := defaultModel()
	in := signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3, DriftRate: 0.02}

	conf, ema := m.Compute(in, EMA{Value: 0.5, Seeded: true})

	want := 0.25*0.8225 + 0.75*0.5
	assert.InDelta(t, want*100, conf, 1e-9)
	assert.InDelta(t, want, ema.Value, 1e-9)
}

func TestCompute_StaysInRangeForHostileInput(t *testing.T) {
	m := NewModel(Config{Weights: DefaultWeights(), Alpha: 1, DriftSpikeThreshold: 0.10}, ConstantAccuracy(7))
	conf := -50.0

	got, _ := m.Compute(signals.Input{
		FusedScore:      500,
		FusedConfidence: &conf,
		Trend:           signals.DirectionUp,
		RiskState:       signals.RiskGreen,
		Volatility:      -4,
	}, EMA{})

	require.GreaterOrEqual(t, got, 0.0)
	require.LessOrEqual(t, got, 100.0)
}

type stubAccuracy float64

func (s stubAccuracy) HistoricalAccuracy(signals.Input) float64 { return float64(s) }

func TestCompute_AccuracySourceIsSwappable(t *testing.T) {
	in := signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3, DriftRate: 0.02}
	cfg := Config{Weights: DefaultWeights(), Alpha: 0.25, DriftSpikeThreshold: 0.10}

	low, _ := NewModel(cfg, stubAccuracy(0)).Compute(in, EMA{})
	high, _ := NewModel(cfg, stubAccuracy(1)).Compute(in, EMA{})

	assert.InDelta(t, 5.0, high-low, 1e-9)
}
