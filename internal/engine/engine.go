package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/clock"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/confidence"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/flapguard"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// Confidence marks for the high/low events. They cannot both fire.
const (
	HighConfidenceMark = 80.0
	LowConfidenceMark  = 40.0
)

// #region options
// Option customizes an Engine at construction.
type Option func(*Engine)

// WithClock injects the time source used for cooldowns and timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSymbol labels the engine's events and log lines.
func WithSymbol(symbol string) Option {
	return func(e *Engine) { e.symbol = symbol }
}

// WithAccuracySource replaces the constant historical-accuracy placeholder.
func WithAccuracySource(src confidence.AccuracySource) Option {
	return func(e *Engine) { e.accuracy = src }
}

// #endregion options

// #region engine
// Engine is one independent decision core. Decide calls are serialized; each
// runs to completion, listeners included, before the next starts. Listeners
// may read the engine but must not call Decide.
type Engine struct {
	symbol string

	tickMu sync.Mutex // serializes Decide, including event delivery
	mu     sync.Mutex // guards the fields below

	config   Config
	model    *confidence.Model
	guard    *flapguard.Guard
	ema      confidence.EMA
	history  *history
	accuracy confidence.AccuracySource

	bus   *events.Bus
	clock clock.Clock
	log   zerolog.Logger
}

// New validates cfg and builds an engine. An invalid config is the only
// construction failure.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config: cfg,
		clock:  clock.Real{},
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("component", "engine").Str("symbol", e.symbol).Logger()
	e.bus = events.NewBus(e.log)
	e.model = confidence.NewModel(cfg.confidenceConfig(), e.accuracySource(cfg))
	e.guard = flapguard.NewGuard(cfg.flapConfig())
	e.history = newHistory(cfg.HistoryCapacity)
	return e, nil
}

// Symbol returns the engine label.
func (e *Engine) Symbol() string {
	return e.symbol
}

func (e *Engine) accuracySource(cfg Config) confidence.AccuracySource {
	if e.accuracy != nil {
		return e.accuracy
	}
	return confidence.ConstantAccuracy(cfg.HistoricalAccuracy)
}

// #endregion engine

// #region decide
// Decide evaluates one tick and returns its decision. It never fails: blocked
// and malformed ticks resolve to WAIT.
func (e *Engine) Decide(in signals.Input) decision.Decision {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	e.mu.Lock()
	d, evs := e.decideLocked(in, e.clock.Now())
	e.mu.Unlock()

	e.bus.Publish(evs...)
	return d
}

func (e *Engine) decideLocked(in signals.Input, now time.Time) (decision.Decision, []events.Event) {
	// 1. Safety gate, then contract validation. Both skip all state updates.
	if b := gate.Check(in); b != nil {
		return e.blockedLocked(in, b, now)
	}
	if err := in.Validate(); err != nil {
		return e.blockedLocked(in, gate.Malformed(err), now)
	}

	// 2. Confidence model.
	raw, ema := e.model.Compute(in, e.ema)
	e.ema = ema

	// 3. Flap guard penalties.
	assessment := e.guard.Apply(in, raw, now)
	conf := assessment.Confidence

	// 4. Environment adjustment.
	var envNotes []string
	noisy := false
	if in.Environment != nil {
		conf, envNotes, noisy = adjustForEnvironment(*in.Environment, conf)
	}

	// 5. Threshold selection.
	var action decision.Action
	var primary string
	if noisy {
		action, primary = decision.ActionWait, "WAIT: environment too noisy for a clean signal"
	} else {
		action, primary = selectAction(e.config.Thresholds, in, conf)
	}

	// 6. Record.
	reasons := []string{primary, fmt.Sprintf("Risk state %s", in.RiskState)}
	reasons = append(reasons, e.contextNotes(in)...)
	reasons = append(reasons, assessment.Reasons()...)
	reasons = append(reasons, envNotes...)

	d := decision.Decision{
		Action:          action,
		Confidence:      conf,
		Reasons:         reasons,
		Risk:            ClassifyRisk(in),
		RiskState:       in.RiskState,
		FusedScore:      in.FusedScore,
		StabilizedScore: in.Stabilized(),
		Trend:           in.Trend,
		Timestamp:       now,
	}

	// 7. Flap state.
	transition := e.guard.Advance(action, now)

	// 8. History.
	e.history.push(d.Clone())

	e.log.Debug().
		Str("action", string(d.Action)).
		Float64("raw_confidence", raw).
		Float64("confidence", d.Confidence).
		Str("risk", string(d.Risk)).
		Int("penalties", len(assessment.Penalties)).
		Msg("decision")

	// 9. Events.
	return d, e.eventsFor(in, d.Clone(), transition)
}

// blockedLocked builds the forced WAIT for a vetoed tick.
func (e *Engine) blockedLocked(in signals.Input, b *gate.Block, now time.Time) (decision.Decision, []events.Event) {
	d := decision.Decision{
		Action:          decision.ActionWait,
		Confidence:      0,
		Reasons:         []string{b.Reason},
		Risk:            decision.RiskCritical,
		RiskState:       in.RiskState,
		FusedScore:      in.FusedScore,
		StabilizedScore: in.Stabilized(),
		Trend:           in.Trend,
		Timestamp:       now,
	}
	e.history.push(d.Clone())

	e.log.Warn().
		Str("veto", string(b.Type)).
		Str("reason", b.Reason).
		Msg("tick blocked")

	return d, e.eventsFor(in, d.Clone(), flapguard.Transition{})
}

func (e *Engine) eventsFor(in signals.Input, d decision.Decision, tr flapguard.Transition) []events.Event {
	evs := []events.Event{events.DecisionChange{Symbol: e.symbol, Decision: d, Input: in}}
	switch {
	case d.Confidence >= HighConfidenceMark:
		evs = append(evs, events.HighConfidence{Symbol: e.symbol, Decision: d})
	case d.Confidence < LowConfidenceMark:
		evs = append(evs, events.LowConfidence{Symbol: e.symbol, Decision: d})
	}
	if tr.Reversed {
		evs = append(evs, events.FlipSignal{Symbol: e.symbol, From: tr.From, To: tr.To, At: d.Timestamp})
	}
	if in.RiskState == signals.RiskRed || d.Risk == decision.RiskCritical {
		evs = append(evs, events.UnsafeEnvironment{Symbol: e.symbol, Decision: d})
	}
	return evs
}

// contextNotes returns the optional degradation, volatility and drift notes, in that order.
func (e *Engine) contextNotes(in signals.Input) []string {
	var notes []string
	if deg := in.ClampedDegradation(); deg > 0 {
		notes = append(notes, fmt.Sprintf("Emotional degradation %.2f", deg))
	}
	if vol := in.ClampedVolatility(); vol > highVolatility {
		notes = append(notes, fmt.Sprintf("High volatility %.2f", vol))
	}
	if drift := math.Abs(in.DriftRate); drift > e.config.DriftSpikeThreshold {
		notes = append(notes, fmt.Sprintf("Drift rate %.3f above %.3f", in.DriftRate, e.config.DriftSpikeThreshold))
	}
	return notes
}

// #endregion decide

// #region select
// QualifiesBuy reports whether a tick with adjusted confidence conf meets every BUY condition.
func (t Thresholds) QualifiesBuy(in signals.Input, conf float64) bool {
	return in.Stabilized() >= t.BuyMinScore && conf >= t.BuyMinConfidence &&
		in.RiskState != signals.RiskOrange && in.RiskState != signals.RiskRed &&
		in.Trend == signals.DirectionUp && in.ClampedVolatility() < t.BuyMaxVolatility
}

// QualifiesSell reports whether a tick with adjusted confidence conf meets every SELL condition.
func (t Thresholds) QualifiesSell(in signals.Input, conf float64) bool {
	return in.Stabilized() <= t.SellMaxScore && conf >= t.SellMinConfidence &&
		in.Trend == signals.DirectionDown && in.RiskState != signals.RiskRed
}

// selectAction applies the thresholds in fixed order; the first match wins.
func selectAction(t Thresholds, in signals.Input, conf float64) (decision.Action, string) {
	score := in.Stabilized()
	vol := in.ClampedVolatility()

	if t.QualifiesBuy(in, conf) {
		return decision.ActionBuy, fmt.Sprintf("BUY: score %.1f >= %.0f with %.1f confidence in an UP trend", score, t.BuyMinScore, conf)
	}
	if t.QualifiesSell(in, conf) {
		return decision.ActionSell, fmt.Sprintf("SELL: score %.1f <= %.0f with %.1f confidence in a DOWN trend", score, t.SellMaxScore, conf)
	}
	if conf >= t.HoldMinConfidence && vol < t.HoldMaxVolatility {
		return decision.ActionHold, fmt.Sprintf("HOLD: %.1f confidence without a directional edge", conf)
	}
	return decision.ActionWait, fmt.Sprintf("WAIT: confidence %.1f or volatility %.2f outside action bands", conf, vol)
}

// #endregion select

// #region environment
var volatilityMultiplier = map[signals.VolatilityLevel]float64{
	signals.VolatilityLow:     1.0,
	signals.VolatilityMedium:  0.9,
	signals.VolatilityHigh:    0.7,
	signals.VolatilityExtreme: 0.5,
}

const (
	compressionBonus  = 10.0
	overheatedPenalty = 15.0
)

// adjustForEnvironment applies the environment snapshot to conf. noisy forces WAIT.
func adjustForEnvironment(env signals.Environment, conf float64) (float64, []string, bool) {
	var notes []string
	if mult, ok := volatilityMultiplier[env.VolatilityLevel]; ok && mult != 1.0 {
		conf *= mult
		notes = append(notes, fmt.Sprintf("Environment volatility %s (x%.2f)", env.VolatilityLevel, mult))
	}
	if env.Compression() {
		conf += compressionBonus
		notes = append(notes, "Compression regime bonus (+10)")
	}
	if env.Overheated {
		conf -= overheatedPenalty
		notes = append(notes, "Overheated environment (-15)")
	}
	conf = math.Max(0, math.Min(100, conf))
	if env.Noisy {
		notes = append(notes, "Noisy environment forces WAIT")
	}
	return conf, notes, env.Noisy
}

// #endregion environment

// #region introspection
// Subscribe registers a listener for every event and returns its unsubscribe handle.
func (e *Engine) Subscribe(fn events.Listener) func() {
	return e.bus.Subscribe(fn)
}

// Events exposes the bus for the typed On* helpers.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// History returns up to limit decisions, most recent first. limit <= 0 returns all retained.
func (e *Engine) History(limit int) []decision.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.recent(limit)
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// UpdateConfig applies a partial update. An invalid result is rejected and the
// active configuration is left untouched. Flap state, EMA and history survive.
func (e *Engine) UpdateConfig(p ConfigPatch) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := p.Apply(e.config)
	if err := next.Validate(); err != nil {
		return e.config, err
	}
	e.config = next
	e.model = confidence.NewModel(next.confidenceConfig(), e.accuracySource(next))
	e.guard.SetConfig(next.flapConfig())
	e.history.resize(next.HistoryCapacity)

	e.log.Info().Msg("config updated")
	return next, nil
}

// ClearHistory resets history, EMA and flap state together.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.clear()
	e.ema = confidence.EMA{}
	e.guard.Reset()
}

// FlapState returns a copy of the hysteresis state.
func (e *Engine) FlapState() flapguard.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guard.State()
}

// #endregion introspection

// #region snapshot
// Snapshot is the restorable state of an engine, excluding history.
type Snapshot struct {
	Flap flapguard.State `json:"flap"`
	EMA  confidence.EMA  `json:"ema"`
}

// Snapshot captures flap state and EMA.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Flap: e.guard.State(), EMA: e.ema}
}

// Restore replaces flap state and EMA. History is left as is.
func (e *Engine) Restore(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guard.Restore(s.Flap)
	e.ema = s.EMA
}

// #endregion snapshot
