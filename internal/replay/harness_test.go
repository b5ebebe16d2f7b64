package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

const reversalYAML = `
description: buy, reverse to sell, then a risk cascade
symbol: BTC-USD
config:
  min_hold_cycles: 0
ticks:
  - offset_ms: 0
    input: {fused_score: 75, trend: UP, risk_state: GREEN, volatility: 0.3, drift_rate: 0.02}
    expect: BUY
  - offset_ms: 1000
    input: {fused_score: 20, fused_confidence: 100, trend: DOWN, risk_state: GREEN, volatility: 0.1}
    expect: SELL
  - offset_ms: 2000
    input: {fused_score: 75, trend: UP, risk_state: RED}
    expect: WAIT
`

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// #region replay-tests
func TestReplay_YAMLFixture(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, "reversal.yaml", reversalYAML))
	require.NoError(t, err)
	require.Len(t, f.Ticks, 3)
	require.NotNil(t, f.Ticks[1].Input.FusedConfidence)

	results, summary, err := Replay(f, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, summary.OK(), "%+v", summary)
	assert.Equal(t, 3, summary.TotalTicks)
	assert.Equal(t, 1, summary.Flips)
	assert.Equal(t, map[decision.Action]int{
		decision.ActionBuy: 1, decision.ActionSell: 1, decision.ActionWait: 1,
	}, summary.ByAction)

	assert.False(t, results[0].Flipped)
	assert.True(t, results[1].Flipped)
	assert.InDelta(t, 85.6875*0.85, results[1].Decision.Confidence, 1e-9)
	assert.Equal(t, DefaultStart.Add(time.Second), results[1].Decision.Timestamp)

	// The blocked tick leaves flap state on the SELL.
	assert.Equal(t, decision.ActionSell, summary.FinalFlap.Flap.LastAction)
}

func TestReplay_JSONMismatch(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, "hold.json", `{
		"symbol": "ETH",
		"ticks": [
			{"offset_ms": 0, "input": {"fused_score": 75, "trend": "UP", "risk_state": "GREEN", "volatility": 0.3}, "expect": "HOLD"}
		]
	}`))
	require.NoError(t, err)

	results, summary, err := Replay(f, zerolog.Nop())
	require.NoError(t, err)

	assert.False(t, summary.OK())
	assert.Equal(t, 1, summary.Mismatches)
	assert.Equal(t, decision.ActionHold, results[0].Expected)
	assert.Equal(t, decision.ActionBuy, results[0].Decision.Action)
	assert.True(t, results[0].Eval.Passed)
}

func TestReplay_RejectsBackwardsOffsets(t *testing.T) {
	in := signals.Input{FusedScore: 50, Trend: signals.DirectionFlat, RiskState: signals.RiskGreen}
	f := &Fixture{Symbol: "X", Ticks: []FixtureTick{{OffsetMS: 500, Input: in}, {OffsetMS: 100, Input: in}}}

	results, _, err := Replay(f, zerolog.Nop())
	assert.ErrorContains(t, err, "tick 1")
	assert.Len(t, results, 1)
}

func TestReplay_InvalidConfig(t *testing.T) {
	f := &Fixture{Symbol: "X", Config: FixtureConfig{AntiFlipCooldown: "-5s"}}
	_, _, err := Replay(f, zerolog.Nop())
	assert.Error(t, err)

	f.Config.AntiFlipCooldown = "whenever"
	_, _, err = Replay(f, zerolog.Nop())
	assert.ErrorContains(t, err, "anti_flip_cooldown")
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadFixture(writeFixture(t, "bad.json", "{"))
	assert.ErrorContains(t, err, "parse fixture")
}

// #endregion replay-tests

// #region export-tests
func TestFromJournal_RoundTrip(t *testing.T) {
	base := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	buy := signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3, DriftRate: 0.02}
	red := signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskRed}

	f := FromJournal("BTC", []logging.JournalEntry{
		{Action: decision.ActionBuy, Input: &buy, DecidedAt: base},
		{Action: decision.ActionHold, DecidedAt: base.Add(time.Second)},
		{Action: decision.ActionWait, Input: &red, DecidedAt: base.Add(2500 * time.Millisecond)},
	})

	require.Len(t, f.Ticks, 2)
	assert.Equal(t, base, f.Start)
	assert.Equal(t, int64(2500), f.Ticks[1].OffsetMS)
	assert.Equal(t, decision.ActionWait, f.Ticks[1].Expect)

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, WriteFixture(path, f))
	loaded, err := LoadFixture(path)
	require.NoError(t, err)

	_, summary, err := Replay(loaded, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, summary.OK(), "%+v", summary)
}

// #endregion export-tests
