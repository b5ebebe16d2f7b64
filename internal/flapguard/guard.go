package flapguard

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// Rule multipliers. Each applies independently; they compose by product.
const (
	minHoldMultiplier    = 0.75
	cooldownMultiplier   = 0.60
	driftSpikeMultiplier = 0.50
)

// #region config
// Config holds the hysteresis knobs.
type Config struct {
	MinHoldCycles       int
	AntiFlipCooldown    time.Duration
	ReverseDamperFactor float64 // confidence is scaled by (1 - factor)
	DriftSpikeThreshold float64
}

// DefaultConfig returns 3 cycles, 15s cooldown, 0.15 damper, 0.10 drift spike.
func DefaultConfig() Config {
	return Config{
		MinHoldCycles:       3,
		AntiFlipCooldown:    15 * time.Second,
		ReverseDamperFactor: 0.15,
		DriftSpikeThreshold: 0.10,
	}
}

// #endregion config

// #region state
// State survives across ticks. LastAction is empty until the first decision.
type State struct {
	LastAction     decision.Action `json:"last_action,omitempty"`
	LastActionAt   time.Time       `json:"last_action_at"`
	HoldCycles     int             `json:"hold_cycles"`
	CooldownActive bool            `json:"cooldown_active"`
	LastReversalAt time.Time       `json:"last_reversal_at"`
}

// #endregion state

// #region rules
// Rule identifies one of the four penalty rules.
type Rule string

const (
	RuleMinHold    Rule = "min_hold"
	RuleCooldown   Rule = "cooldown"
	RuleReverse    Rule = "reverse_damper"
	RuleDriftSpike Rule = "drift_spike"
)

// Penalty records one applied rule.
type Penalty struct {
	Rule       Rule
	Multiplier float64
	Reason     string
}

// Assessment is the result of applying the rules to a confidence value.
type Assessment struct {
	Confidence float64
	Penalties  []Penalty
}

// Reasons returns the applied rules' reason strings in application order.
func (a Assessment) Reasons() []string {
	out := make([]string, 0, len(a.Penalties))
	for _, p := range a.Penalties {
		out = append(out, p.Reason)
	}
	return out
}

// Applied reports whether rule r fired.
func (a Assessment) Applied(r Rule) bool {
	for _, p := range a.Penalties {
		if p.Rule == r {
			return true
		}
	}
	return false
}

// #endregion rules

// #region guard
// Guard owns the flap state and applies the anti-whipsaw rules.
type Guard struct {
	config Config
	state  State
}

// NewGuard creates a guard with empty state.
func NewGuard(config Config) *Guard {
	return &Guard{config: config}
}

// SetConfig swaps the rule parameters without touching state.
func (g *Guard) SetConfig(config Config) {
	g.config = config
}

// State returns a copy of the current state.
func (g *Guard) State() State {
	return g.state
}

// Restore replaces the state wholesale.
func (g *Guard) Restore(s State) {
	g.state = s
}

// Reset clears all state.
func (g *Guard) Reset() {
	g.state = State{}
}

// #endregion guard

// #region apply
// Apply scales confidence by every rule that fires at now. It does not mutate state.
func (g *Guard) Apply(in signals.Input, confidence float64, now time.Time) Assessment {
	a := Assessment{Confidence: confidence}
	st := g.state

	penalize := func(rule Rule, mult float64, reason string) {
		a.Confidence *= mult
		a.Penalties = append(a.Penalties, Penalty{Rule: rule, Multiplier: mult, Reason: reason})
	}

	if st.LastAction != "" && st.HoldCycles < g.config.MinHoldCycles {
		penalize(RuleMinHold, minHoldMultiplier,
			fmt.Sprintf("Min-hold not met (%d/%d cycles)", st.HoldCycles, g.config.MinHoldCycles))
	}

	if remaining := g.cooldownRemaining(now); remaining > 0 {
		penalize(RuleCooldown, cooldownMultiplier,
			fmt.Sprintf("Anti-flip cooldown active (%ds remaining)", int(math.Ceil(remaining.Seconds()))))
	}

	// Compares the previous decision against the raw upstream signal, not the previous signal.
	if reverses(st.LastAction, in.SignalDirection()) {
		penalize(RuleReverse, 1-g.config.ReverseDamperFactor,
			fmt.Sprintf("Reverse-signal damper: last %s vs signal %s", st.LastAction, in.SignalDirection()))
	}

	if drift := math.Abs(in.DriftRate); drift > g.config.DriftSpikeThreshold {
		penalize(RuleDriftSpike, driftSpikeMultiplier,
			fmt.Sprintf("Drift spike cancellation (|drift| %.3f > %.3f)", drift, g.config.DriftSpikeThreshold))
	}

	return a
}

// cooldownRemaining is the time left in the anti-flip window at now, or 0.
func (g *Guard) cooldownRemaining(now time.Time) time.Duration {
	if g.state.LastReversalAt.IsZero() {
		return 0
	}
	remaining := g.config.AntiFlipCooldown - now.Sub(g.state.LastReversalAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// #endregion apply

// #region advance
// Transition describes what Advance did with the new action.
type Transition struct {
	Reversed bool
	From     decision.Action
	To       decision.Action
}

// Advance records the finally chosen action. This is the only place hold-cycle
// bookkeeping happens: a BUY/SELL reversal resets the count and stamps the
// reversal time; a repeat increments it; any other change leaves it alone.
func (g *Guard) Advance(action decision.Action, now time.Time) Transition {
	prev := g.state.LastAction
	t := Transition{From: prev, To: action}

	switch {
	case prev.Opposes(action):
		g.state.LastReversalAt = now
		g.state.HoldCycles = 0
		t.Reversed = true
	case prev == action:
		g.state.HoldCycles++
	}

	g.state.LastAction = action
	g.state.LastActionAt = now
	g.state.CooldownActive = g.cooldownRemaining(now) > 0
	return t
}

// #endregion advance

// #region helpers
// reverses reports whether the last action points against the signal direction.
func reverses(last decision.Action, signal signals.Direction) bool {
	return (last == decision.ActionBuy && signal == signals.DirectionDown) ||
		(last == decision.ActionSell && signal == signals.DirectionUp)
}

// #endregion helpers
