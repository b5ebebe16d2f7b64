package decision

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region action
// Action is the discrete outcome emitted once per tick.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionWait Action = "WAIT"
)

// Opposes reports whether a and b form a BUY/SELL pair.
func (a Action) Opposes(b Action) bool {
	return (a == ActionBuy && b == ActionSell) || (a == ActionSell && b == ActionBuy)
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionWait:
		return true
	}
	return false
}

// #endregion action

// #region risk
// Risk is the derived risk classification of an input.
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskMedium   Risk = "MEDIUM"
	RiskHigh     Risk = "HIGH"
	RiskCritical Risk = "CRITICAL"
)

// #endregion risk

// #region decision
// Decision is the immutable per-tick output of the engine.
type Decision struct {
	Action          Action            `json:"action"`
	Confidence      float64           `json:"confidence"` // 0-100
	Reasons         []string          `json:"reasons"`
	Risk            Risk              `json:"risk"`
	RiskState       signals.RiskState `json:"risk_state"`
	FusedScore      float64           `json:"fused_score"`
	StabilizedScore float64           `json:"stabilized_score"`
	Trend           signals.Direction `json:"trend"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Clone returns a copy that shares no slices with d.
func (d Decision) Clone() Decision {
	out := d
	out.Reasons = append([]string(nil), d.Reasons...)
	return out
}

// #endregion decision
