package events

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region kind
// Kind names an event variant.
type Kind string

const (
	KindDecisionChange    Kind = "decision_change"
	KindHighConfidence    Kind = "high_confidence"
	KindLowConfidence     Kind = "low_confidence"
	KindFlipSignal        Kind = "flip_signal"
	KindUnsafeEnvironment Kind = "unsafe_environment"
)

// #endregion kind

// #region event
// Event is the closed set of engine events. Only the types in this file implement it.
type Event interface {
	Kind() Kind
	sealed()
}

// DecisionChange fires for every decision. Input is the tick that produced it.
type DecisionChange struct {
	Symbol   string
	Decision decision.Decision
	Input    signals.Input
}

// HighConfidence fires when confidence reaches the high mark.
type HighConfidence struct {
	Symbol   string
	Decision decision.Decision
}

// LowConfidence fires when confidence falls below the low mark.
type LowConfidence struct {
	Symbol   string
	Decision decision.Decision
}

// FlipSignal fires when a decision reverses BUY and SELL.
type FlipSignal struct {
	Symbol string
	From   decision.Action
	To     decision.Action
	At     time.Time
}

// UnsafeEnvironment fires when the risk state is RED or the derived risk is CRITICAL.
type UnsafeEnvironment struct {
	Symbol   string
	Decision decision.Decision
}

func (DecisionChange) Kind() Kind    { return KindDecisionChange }
func (HighConfidence) Kind() Kind    { return KindHighConfidence }
func (LowConfidence) Kind() Kind     { return KindLowConfidence }
func (FlipSignal) Kind() Kind        { return KindFlipSignal }
func (UnsafeEnvironment) Kind() Kind { return KindUnsafeEnvironment }

func (DecisionChange) sealed()    {}
func (HighConfidence) sealed()    {}
func (LowConfidence) sealed()     {}
func (FlipSignal) sealed()        {}
func (UnsafeEnvironment) sealed() {}

// #endregion event
