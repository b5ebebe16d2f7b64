// Package metrics exposes engine activity as Prometheus series:
//
//	gatekeeper_decisions_total{symbol,action}  decisions emitted
//	gatekeeper_confidence{symbol}              confidence of the latest decision
//	gatekeeper_flips_total{symbol}             BUY/SELL reversals
//	gatekeeper_unsafe_total{symbol}            unsafe-environment events
//	gatekeeper_confidence_events_total{symbol,band}  high/low confidence events
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
)

// Collectors groups the engine series. Register them once per registry.
type Collectors struct {
	Decisions        *prometheus.CounterVec
	Confidence       *prometheus.GaugeVec
	Flips            *prometheus.CounterVec
	Unsafe           *prometheus.CounterVec
	ConfidenceEvents *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_decisions_total",
				Help: "Decisions emitted, by symbol and action",
			},
			[]string{"symbol", "action"},
		),
		Confidence: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatekeeper_confidence",
				Help: "Confidence (0-100) of the latest decision",
			},
			[]string{"symbol"},
		),
		Flips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_flips_total",
				Help: "BUY/SELL reversals",
			},
			[]string{"symbol"},
		),
		Unsafe: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_unsafe_total",
				Help: "Decisions taken in an unsafe environment",
			},
			[]string{"symbol"},
		),
		// band: high|low
		ConfidenceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_confidence_events_total",
				Help: "High and low confidence events",
			},
			[]string{"symbol", "band"},
		),
	}
	for _, col := range []prometheus.Collector{c.Decisions, c.Confidence, c.Flips, c.Unsafe, c.ConfidenceEvents} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Listener is an events.Listener that updates the series.
func (c *Collectors) Listener(ev events.Event) {
	switch e := ev.(type) {
	case events.DecisionChange:
		c.Decisions.WithLabelValues(e.Symbol, string(e.Decision.Action)).Inc()
		c.Confidence.WithLabelValues(e.Symbol).Set(e.Decision.Confidence)
	case events.HighConfidence:
		c.ConfidenceEvents.WithLabelValues(e.Symbol, "high").Inc()
	case events.LowConfidence:
		c.ConfidenceEvents.WithLabelValues(e.Symbol, "low").Inc()
	case events.FlipSignal:
		c.Flips.WithLabelValues(e.Symbol).Inc()
	case events.UnsafeEnvironment:
		c.Unsafe.WithLabelValues(e.Symbol).Inc()
	}
}
