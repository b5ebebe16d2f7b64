package signals

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedInput marks an input that violates the upstream contract
// (an enum outside its known set, or a non-finite number).
var ErrMalformedInput = errors.New("malformed input")

// #region direction
// Direction is a trend or signal direction label.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

func (d Direction) valid() bool {
	return d == DirectionUp || d == DirectionDown || d == DirectionFlat
}

// #endregion direction

// #region risk-state
// RiskState is the upstream shield classification.
type RiskState string

const (
	RiskGreen  RiskState = "GREEN"
	RiskYellow RiskState = "YELLOW"
	RiskOrange RiskState = "ORANGE"
	RiskRed    RiskState = "RED"
)

func (r RiskState) valid() bool {
	switch r {
	case RiskGreen, RiskYellow, RiskOrange, RiskRed:
		return true
	}
	return false
}

// #endregion risk-state

// #region environment
// VolatilityLevel is the coarse volatility bucket reported by the environment snapshot.
type VolatilityLevel string

const (
	VolatilityLow     VolatilityLevel = "LOW"
	VolatilityMedium  VolatilityLevel = "MEDIUM"
	VolatilityHigh    VolatilityLevel = "HIGH"
	VolatilityExtreme VolatilityLevel = "EXTREME"
)

func (v VolatilityLevel) valid() bool {
	switch v {
	case VolatilityLow, VolatilityMedium, VolatilityHigh, VolatilityExtreme:
		return true
	}
	return false
}

// RegimeCompression is the pre-breakout regime label.
const RegimeCompression = "compression"

// Environment is an optional market-environment snapshot attached to an input.
type Environment struct {
	VolatilityLevel VolatilityLevel `json:"volatility_level" yaml:"volatility_level"`
	Regime          string          `json:"regime,omitempty" yaml:"regime,omitempty"`
	Overheated      bool            `json:"overheated,omitempty" yaml:"overheated,omitempty"`
	Noisy           bool            `json:"noisy,omitempty" yaml:"noisy,omitempty"`
}

// Compression reports whether the regime label names a compression setup.
func (e Environment) Compression() bool {
	return strings.EqualFold(strings.TrimSpace(e.Regime), RegimeCompression)
}

// #endregion environment

// #region input
// Input is one evaluation cycle's worth of upstream signals. The engine never mutates it.
type Input struct {
	// Scores are 0-100. A nil StabilizedScore falls back to FusedScore; 0 is a real score.
	FusedScore      float64  `json:"fused_score" yaml:"fused_score"`
	StabilizedScore *float64 `json:"stabilized_score,omitempty" yaml:"stabilized_score,omitempty"`
	// FusedConfidence is the upstream confidence (0-100). nil falls back to FusedScore.
	FusedConfidence *float64 `json:"fused_confidence,omitempty" yaml:"fused_confidence,omitempty"`

	// Signal is the raw upstream signal direction; empty means Trend.
	Signal Direction `json:"signal,omitempty" yaml:"signal,omitempty"`
	Trend  Direction `json:"trend" yaml:"trend"`

	RiskState  RiskState `json:"risk_state" yaml:"risk_state"`
	Volatility float64   `json:"volatility" yaml:"volatility"`
	DriftRate  float64   `json:"drift_rate" yaml:"drift_rate"`

	ExecutionWarning  bool `json:"execution_warning,omitempty" yaml:"execution_warning,omitempty"`
	MemoryInstability bool `json:"memory_instability,omitempty" yaml:"memory_instability,omitempty"`

	EmotionalDegradation float64 `json:"emotional_degradation,omitempty" yaml:"emotional_degradation,omitempty"`

	Environment *Environment `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// Stabilized returns the score the threshold logic compares against.
func (in Input) Stabilized() float64 {
	if in.StabilizedScore == nil {
		return clampRange(in.FusedScore, 0, 100)
	}
	return clampRange(*in.StabilizedScore, 0, 100)
}

// Confidence returns the upstream confidence on a 0-100 scale.
func (in Input) Confidence() float64 {
	if in.FusedConfidence == nil {
		return clampRange(in.FusedScore, 0, 100)
	}
	return clampRange(*in.FusedConfidence, 0, 100)
}

// SignalDirection returns the raw upstream signal direction, defaulting to Trend.
func (in Input) SignalDirection() Direction {
	if in.Signal == "" {
		return in.Trend
	}
	return in.Signal
}

// ClampedVolatility returns Volatility clamped into [0,1].
func (in Input) ClampedVolatility() float64 {
	return Clamp01(in.Volatility)
}

// ClampedDegradation returns EmotionalDegradation clamped into [0,1].
func (in Input) ClampedDegradation() float64 {
	return Clamp01(in.EmotionalDegradation)
}

// #endregion input

// #region validate
// Validate rejects inputs whose enums fall outside their sets or whose numbers are
// not finite. Out-of-range finite numbers are not errors; callers clamp them.
func (in Input) Validate() error {
	var problems []string

	if !in.Trend.valid() {
		problems = append(problems, fmt.Sprintf("unknown trend %q", in.Trend))
	}
	if in.Signal != "" && !in.Signal.valid() {
		problems = append(problems, fmt.Sprintf("unknown signal %q", in.Signal))
	}
	if !in.RiskState.valid() {
		problems = append(problems, fmt.Sprintf("unknown risk state %q", in.RiskState))
	}
	if in.Environment != nil && !in.Environment.VolatilityLevel.valid() {
		problems = append(problems, fmt.Sprintf("unknown volatility level %q", in.Environment.VolatilityLevel))
	}

	numbers := []struct {
		name string
		v    float64
	}{
		{"fused_score", in.FusedScore},
		{"volatility", in.Volatility},
		{"drift_rate", in.DriftRate},
		{"emotional_degradation", in.EmotionalDegradation},
	}
	optional := []struct {
		name string
		v    *float64
	}{
		{"stabilized_score", in.StabilizedScore},
		{"fused_confidence", in.FusedConfidence},
	}
	for _, o := range optional {
		if o.v != nil {
			numbers = append(numbers, struct {
				name string
				v    float64
			}{o.name, *o.v})
		}
	}
	for _, n := range numbers {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			problems = append(problems, fmt.Sprintf("%s is not finite", n.name))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedInput, strings.Join(problems, "; "))
}

// #endregion validate

// #region helpers
// Clamp01 clamps v into [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
