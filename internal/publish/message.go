package publish

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
)

// Message is the JSON payload published for each engine event.
type Message struct {
	Kind     events.Kind        `json:"kind"`
	Symbol   string             `json:"symbol"`
	Decision *decision.Decision `json:"decision,omitempty"`
	From     decision.Action    `json:"from,omitempty"`
	To       decision.Action    `json:"to,omitempty"`
	At       *time.Time         `json:"at,omitempty"`
}

// MessageFor converts an event into its wire payload.
func MessageFor(ev events.Event) Message {
	m := Message{Kind: ev.Kind()}
	switch e := ev.(type) {
	case events.DecisionChange:
		m.Symbol, m.Decision = e.Symbol, decisionPtr(e.Decision)
	case events.HighConfidence:
		m.Symbol, m.Decision = e.Symbol, decisionPtr(e.Decision)
	case events.LowConfidence:
		m.Symbol, m.Decision = e.Symbol, decisionPtr(e.Decision)
	case events.UnsafeEnvironment:
		m.Symbol, m.Decision = e.Symbol, decisionPtr(e.Decision)
	case events.FlipSignal:
		at := e.At
		m.Symbol, m.From, m.To, m.At = e.Symbol, e.From, e.To, &at
	}
	return m
}

func decisionPtr(d decision.Decision) *decision.Decision {
	c := d.Clone()
	return &c
}
