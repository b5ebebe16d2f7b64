// Package config loads engine configuration from YAML/JSON files and the
// environment, and watches the file for hot reload.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
)

// EnvPrefix scopes environment overrides, e.g. GATEKEEPER_EMA_ALPHA.
const EnvPrefix = "GATEKEEPER"

// #region keys
const (
	keyEMAAlpha            = "ema_alpha"
	keyDriftSpikeThreshold = "drift_spike_threshold"
	keyHistoricalAccuracy  = "historical_accuracy"
	keyHistoryCapacity     = "history_capacity"

	keyBuyMinScore       = "thresholds.buy_min_score"
	keyBuyMinConfidence  = "thresholds.buy_min_confidence"
	keyBuyMaxVolatility  = "thresholds.buy_max_volatility"
	keySellMaxScore      = "thresholds.sell_max_score"
	keySellMinConfidence = "thresholds.sell_min_confidence"
	keyHoldMinConfidence = "thresholds.hold_min_confidence"
	keyHoldMaxVolatility = "thresholds.hold_max_volatility"

	keyMinHoldCycles       = "flap.min_hold_cycles"
	keyAntiFlipCooldown    = "flap.anti_flip_cooldown"
	keyReverseDamperFactor = "flap.reverse_damper_factor"
)

// #endregion keys

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper, c engine.Config) {
	w := c.Weights
	for key, val := range map[string]float64{
		"weights.fused":      w.Fused,
		"weights.trend":      w.Trend,
		"weights.shield":     w.Shield,
		"weights.volatility": w.Volatility,
		"weights.drift":      w.Drift,
		"weights.historical": w.Historical,
	} {
		v.SetDefault(key, val)
	}
	v.SetDefault(keyEMAAlpha, c.EMAAlpha)
	v.SetDefault(keyDriftSpikeThreshold, c.DriftSpikeThreshold)
	v.SetDefault(keyHistoricalAccuracy, c.HistoricalAccuracy)
	v.SetDefault(keyHistoryCapacity, c.HistoryCapacity)

	t := c.Thresholds
	v.SetDefault(keyBuyMinScore, t.BuyMinScore)
	v.SetDefault(keyBuyMinConfidence, t.BuyMinConfidence)
	v.SetDefault(keyBuyMaxVolatility, t.BuyMaxVolatility)
	v.SetDefault(keySellMaxScore, t.SellMaxScore)
	v.SetDefault(keySellMinConfidence, t.SellMinConfidence)
	v.SetDefault(keyHoldMinConfidence, t.HoldMinConfidence)
	v.SetDefault(keyHoldMaxVolatility, t.HoldMaxVolatility)

	v.SetDefault(keyMinHoldCycles, c.Flap.MinHoldCycles)
	v.SetDefault(keyAntiFlipCooldown, c.Flap.AntiFlipCooldown)
	v.SetDefault(keyReverseDamperFactor, c.Flap.ReverseDamperFactor)
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Load reads a complete engine config: defaults, overlaid by the file at path
// (optional), overlaid by GATEKEEPER_* environment variables. The result is
// validated before it is returned.
func Load(path string) (engine.Config, error) {
	v, err := newViper(path)
	if err != nil {
		return engine.Config{}, err
	}
	setDefaults(v, engine.DefaultConfig())

	var cfg engine.Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return engine.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}
