package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/confidence"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region fixture-types

// Fixture is a recorded tick sequence for one symbol.
type Fixture struct {
	Description string        `json:"description" yaml:"description"`
	Symbol      string        `json:"symbol" yaml:"symbol"`
	Start       time.Time     `json:"start,omitempty" yaml:"start,omitempty"`
	Config      FixtureConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Ticks       []FixtureTick `json:"ticks" yaml:"ticks"`
}

// FixtureTick is one input at an offset from Start. Expect is optional.
type FixtureTick struct {
	OffsetMS int64           `json:"offset_ms" yaml:"offset_ms"`
	Input    signals.Input   `json:"input" yaml:"input"`
	Expect   decision.Action `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// FixtureConfig overrides engine defaults for a replay. Unset fields keep
// the default. AntiFlipCooldown is a duration string such as "15s".
type FixtureConfig struct {
	Weights             *confidence.Weights `json:"weights,omitempty" yaml:"weights,omitempty"`
	EMAAlpha            *float64            `json:"ema_alpha,omitempty" yaml:"ema_alpha,omitempty"`
	DriftSpikeThreshold *float64            `json:"drift_spike_threshold,omitempty" yaml:"drift_spike_threshold,omitempty"`
	BuyMinScore         *float64            `json:"buy_min_score,omitempty" yaml:"buy_min_score,omitempty"`
	BuyMinConfidence    *float64            `json:"buy_min_confidence,omitempty" yaml:"buy_min_confidence,omitempty"`
	SellMaxScore        *float64            `json:"sell_max_score,omitempty" yaml:"sell_max_score,omitempty"`
	SellMinConfidence   *float64            `json:"sell_min_confidence,omitempty" yaml:"sell_min_confidence,omitempty"`
	HoldMinConfidence   *float64            `json:"hold_min_confidence,omitempty" yaml:"hold_min_confidence,omitempty"`
	MinHoldCycles       *int                `json:"min_hold_cycles,omitempty" yaml:"min_hold_cycles,omitempty"`
	AntiFlipCooldown    string              `json:"anti_flip_cooldown,omitempty" yaml:"anti_flip_cooldown,omitempty"`
	ReverseDamperFactor *float64            `json:"reverse_damper_factor,omitempty" yaml:"reverse_damper_factor,omitempty"`
}

// DefaultStart anchors fixtures that do not set Start.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture, choosing YAML or JSON by extension.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if isYAML(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f to path, as YAML or JSON by extension.
func WriteFixture(path string, f *Fixture) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ToPatch converts the overrides into an engine config patch.
func (fc FixtureConfig) ToPatch() (engine.ConfigPatch, error) {
	p := engine.ConfigPatch{
		Weights:             fc.Weights,
		EMAAlpha:            fc.EMAAlpha,
		DriftSpikeThreshold: fc.DriftSpikeThreshold,
		BuyMinScore:         fc.BuyMinScore,
		BuyMinConfidence:    fc.BuyMinConfidence,
		SellMaxScore:        fc.SellMaxScore,
		SellMinConfidence:   fc.SellMinConfidence,
		HoldMinConfidence:   fc.HoldMinConfidence,
		MinHoldCycles:       fc.MinHoldCycles,
		ReverseDamperFactor: fc.ReverseDamperFactor,
	}
	if fc.AntiFlipCooldown != "" {
		d, err := time.ParseDuration(fc.AntiFlipCooldown)
		if err != nil {
			return engine.ConfigPatch{}, fmt.Errorf("anti_flip_cooldown: %w", err)
		}
		p.AntiFlipCooldown = &d
	}
	return p, nil
}

// #endregion fixture-loader
