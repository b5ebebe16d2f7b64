package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/confidence"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/flapguard"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

// #region thresholds
// Thresholds drive action selection. Scores and confidences are 0-100,
// volatilities 0-1.
type Thresholds struct {
	BuyMinScore       float64 `json:"buy_min_score" mapstructure:"buy_min_score"`
	BuyMinConfidence  float64 `json:"buy_min_confidence" mapstructure:"buy_min_confidence"`
	BuyMaxVolatility  float64 `json:"buy_max_volatility" mapstructure:"buy_max_volatility"`
	SellMaxScore      float64 `json:"sell_max_score" mapstructure:"sell_max_score"`
	SellMinConfidence float64 `json:"sell_min_confidence" mapstructure:"sell_min_confidence"`
	HoldMinConfidence float64 `json:"hold_min_confidence" mapstructure:"hold_min_confidence"`
	HoldMaxVolatility float64 `json:"hold_max_volatility" mapstructure:"hold_max_volatility"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BuyMinScore:       68,
		BuyMinConfidence:  70,
		BuyMaxVolatility:  0.55,
		SellMaxScore:      32,
		SellMinConfidence: 65,
		HoldMinConfidence: 40,
		HoldMaxVolatility: 0.70,
	}
}

// #endregion thresholds

// #region flap-config
// FlapConfig mirrors flapguard.Config with serializable field names.
type FlapConfig struct {
	MinHoldCycles       int           `json:"min_hold_cycles" mapstructure:"min_hold_cycles"`
	AntiFlipCooldown    time.Duration `json:"anti_flip_cooldown" mapstructure:"anti_flip_cooldown"`
	ReverseDamperFactor float64       `json:"reverse_damper_factor" mapstructure:"reverse_damper_factor"`
}

// #endregion flap-config

// #region config
// Config is the complete, hot-reloadable engine configuration.
type Config struct {
	Weights             confidence.Weights `json:"weights" mapstructure:"weights"`
	EMAAlpha            float64            `json:"ema_alpha" mapstructure:"ema_alpha"`
	DriftSpikeThreshold float64            `json:"drift_spike_threshold" mapstructure:"drift_spike_threshold"`
	HistoricalAccuracy  float64            `json:"historical_accuracy" mapstructure:"historical_accuracy"`
	Thresholds          Thresholds         `json:"thresholds" mapstructure:"thresholds"`
	Flap                FlapConfig         `json:"flap" mapstructure:"flap"`
	HistoryCapacity     int                `json:"history_capacity" mapstructure:"history_capacity"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	fg := flapguard.DefaultConfig()
	return Config{
		Weights:             confidence.DefaultWeights(),
		EMAAlpha:            0.25,
		DriftSpikeThreshold: 0.10,
		HistoricalAccuracy:  confidence.DefaultHistoricalAccuracy,
		Thresholds:          DefaultThresholds(),
		Flap: FlapConfig{
			MinHoldCycles:       fg.MinHoldCycles,
			AntiFlipCooldown:    fg.AntiFlipCooldown,
			ReverseDamperFactor: fg.ReverseDamperFactor,
		},
		HistoryCapacity: 100,
	}
}

// Validate reports every violation at once, wrapped in ErrInvalidConfig.
// Values are never clamped.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(c.EMAAlpha > 0 && c.EMAAlpha <= 1) {
		add("ema_alpha must be in (0,1], got %v", c.EMAAlpha)
	}
	if !(c.DriftSpikeThreshold > 0) || math.IsInf(c.DriftSpikeThreshold, 0) {
		add("drift_spike_threshold must be positive, got %v", c.DriftSpikeThreshold)
	}
	if !inRange(c.HistoricalAccuracy, 0, 1) {
		add("historical_accuracy must be in [0,1], got %v", c.HistoricalAccuracy)
	}

	t := c.Thresholds
	for _, f := range []struct {
		name   string
		v      float64
		lo, hi float64
	}{
		{"buy_min_score", t.BuyMinScore, 0, 100},
		{"buy_min_confidence", t.BuyMinConfidence, 0, 100},
		{"buy_max_volatility", t.BuyMaxVolatility, 0, 1},
		{"sell_max_score", t.SellMaxScore, 0, 100},
		{"sell_min_confidence", t.SellMinConfidence, 0, 100},
		{"hold_min_confidence", t.HoldMinConfidence, 0, 100},
		{"hold_max_volatility", t.HoldMaxVolatility, 0, 1},
	} {
		if !inRange(f.v, f.lo, f.hi) {
			add("thresholds.%s must be in [%v,%v], got %v", f.name, f.lo, f.hi, f.v)
		}
	}
	if t.SellMaxScore >= t.BuyMinScore {
		add("thresholds.sell_max_score (%v) must be below buy_min_score (%v)", t.SellMaxScore, t.BuyMinScore)
	}
	if t.HoldMinConfidence > t.BuyMinConfidence || t.HoldMinConfidence > t.SellMinConfidence {
		add("thresholds.hold_min_confidence (%v) must not exceed buy/sell minimum confidence", t.HoldMinConfidence)
	}

	if c.Flap.MinHoldCycles < 0 {
		add("flap.min_hold_cycles must be non-negative, got %d", c.Flap.MinHoldCycles)
	}
	if c.Flap.AntiFlipCooldown < 0 {
		add("flap.anti_flip_cooldown must be non-negative, got %s", c.Flap.AntiFlipCooldown)
	}
	if !(c.Flap.ReverseDamperFactor >= 0 && c.Flap.ReverseDamperFactor < 1) {
		add("flap.reverse_damper_factor must be in [0,1), got %v", c.Flap.ReverseDamperFactor)
	}
	if c.HistoryCapacity <= 0 {
		add("history_capacity must be positive, got %d", c.HistoryCapacity)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (c Config) confidenceConfig() confidence.Config {
	return confidence.Config{
		Weights:             c.Weights,
		Alpha:               c.EMAAlpha,
		DriftSpikeThreshold: c.DriftSpikeThreshold,
	}
}

func (c Config) flapConfig() flapguard.Config {
	return flapguard.Config{
		MinHoldCycles:       c.Flap.MinHoldCycles,
		AntiFlipCooldown:    c.Flap.AntiFlipCooldown,
		ReverseDamperFactor: c.Flap.ReverseDamperFactor,
		DriftSpikeThreshold: c.DriftSpikeThreshold,
	}
}

// #endregion config

// #region patch
// ConfigPatch is a partial update. Nil fields are left unchanged.
type ConfigPatch struct {
	Weights             *confidence.Weights `json:"weights,omitempty"`
	EMAAlpha            *float64            `json:"ema_alpha,omitempty"`
	DriftSpikeThreshold *float64            `json:"drift_spike_threshold,omitempty"`
	HistoricalAccuracy  *float64            `json:"historical_accuracy,omitempty"`

	BuyMinScore       *float64 `json:"buy_min_score,omitempty"`
	BuyMinConfidence  *float64 `json:"buy_min_confidence,omitempty"`
	BuyMaxVolatility  *float64 `json:"buy_max_volatility,omitempty"`
	SellMaxScore      *float64 `json:"sell_max_score,omitempty"`
	SellMinConfidence *float64 `json:"sell_min_confidence,omitempty"`
	HoldMinConfidence *float64 `json:"hold_min_confidence,omitempty"`
	HoldMaxVolatility *float64 `json:"hold_max_volatility,omitempty"`

	MinHoldCycles       *int           `json:"min_hold_cycles,omitempty"`
	AntiFlipCooldown    *time.Duration `json:"anti_flip_cooldown,omitempty"`
	ReverseDamperFactor *float64       `json:"reverse_damper_factor,omitempty"`

	HistoryCapacity *int `json:"history_capacity,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ConfigPatch) Empty() bool {
	return p == ConfigPatch{}
}

// Apply returns c with the patch's non-nil fields overlaid.
func (p ConfigPatch) Apply(c Config) Config {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	if p.Weights != nil {
		c.Weights = *p.Weights
	}
	setF(&c.EMAAlpha, p.EMAAlpha)
	setF(&c.DriftSpikeThreshold, p.DriftSpikeThreshold)
	setF(&c.HistoricalAccuracy, p.HistoricalAccuracy)

	setF(&c.Thresholds.BuyMinScore, p.BuyMinScore)
	setF(&c.Thresholds.BuyMinConfidence, p.BuyMinConfidence)
	setF(&c.Thresholds.BuyMaxVolatility, p.BuyMaxVolatility)
	setF(&c.Thresholds.SellMaxScore, p.SellMaxScore)
	setF(&c.Thresholds.SellMinConfidence, p.SellMinConfidence)
	setF(&c.Thresholds.HoldMinConfidence, p.HoldMinConfidence)
	setF(&c.Thresholds.HoldMaxVolatility, p.HoldMaxVolatility)

	if p.MinHoldCycles != nil {
		c.Flap.MinHoldCycles = *p.MinHoldCycles
	}
	if p.AntiFlipCooldown != nil {
		c.Flap.AntiFlipCooldown = *p.AntiFlipCooldown
	}
	setF(&c.Flap.ReverseDamperFactor, p.ReverseDamperFactor)

	if p.HistoryCapacity != nil {
		c.HistoryCapacity = *p.HistoryCapacity
	}
	return c
}

// Diff returns the patch that turns c into next. Weights are carried as a set
// when any weight changed.
func (c Config) Diff(next Config) ConfigPatch {
	var p ConfigPatch
	diffF := func(from, to float64) *float64 {
		if from == to {
			return nil
		}
		return &to
	}
	diffI := func(from, to int) *int {
		if from == to {
			return nil
		}
		return &to
	}
	if c.Weights != next.Weights {
		w := next.Weights
		p.Weights = &w
	}
	p.EMAAlpha = diffF(c.EMAAlpha, next.EMAAlpha)
	p.DriftSpikeThreshold = diffF(c.DriftSpikeThreshold, next.DriftSpikeThreshold)
	p.HistoricalAccuracy = diffF(c.HistoricalAccuracy, next.HistoricalAccuracy)

	t, nt := c.Thresholds, next.Thresholds
	p.BuyMinScore = diffF(t.BuyMinScore, nt.BuyMinScore)
	p.BuyMinConfidence = diffF(t.BuyMinConfidence, nt.BuyMinConfidence)
	p.BuyMaxVolatility = diffF(t.BuyMaxVolatility, nt.BuyMaxVolatility)
	p.SellMaxScore = diffF(t.SellMaxScore, nt.SellMaxScore)
	p.SellMinConfidence = diffF(t.SellMinConfidence, nt.SellMinConfidence)
	p.HoldMinConfidence = diffF(t.HoldMinConfidence, nt.HoldMinConfidence)
	p.HoldMaxVolatility = diffF(t.HoldMaxVolatility, nt.HoldMaxVolatility)

	p.MinHoldCycles = diffI(c.Flap.MinHoldCycles, next.Flap.MinHoldCycles)
	if c.Flap.AntiFlipCooldown != next.Flap.AntiFlipCooldown {
		d := next.Flap.AntiFlipCooldown
		p.AntiFlipCooldown = &d
	}
	p.ReverseDamperFactor = diffF(c.Flap.ReverseDamperFactor, next.Flap.ReverseDamperFactor)
	p.HistoryCapacity = diffI(c.HistoryCapacity, next.HistoryCapacity)
	return p
}

// #endregion patch

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
