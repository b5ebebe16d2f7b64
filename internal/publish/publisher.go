// Package publish fans engine events out to Redis pub/sub.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
)

// Client is the subset of a redis client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Options tune a Publisher. Zero values take the defaults.
type Options struct {
	Prefix     string        // channel prefix, default "gatekeeper"
	Timeout    time.Duration // per-publish timeout, default 500ms
	BufferSize int           // queued messages before dropping, default 256
}

// Publisher queues events from engine listeners and publishes them from Run,
// so a slow or unreachable Redis never blocks a decision tick.
type Publisher struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
	opts    Options
	queue   chan Message
	dropped atomic.Uint64
	log     zerolog.Logger
}

// NewPublisher wraps client with a circuit breaker.
func NewPublisher(client Client, opts Options, log zerolog.Logger) *Publisher {
	if opts.Prefix == "" {
		opts.Prefix = "gatekeeper"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	log = log.With().Str("component", "publisher").Logger()

	st := gobreaker.Settings{Name: "redis-publish"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
	}

	return &Publisher{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
		opts:    opts,
		queue:   make(chan Message, opts.BufferSize),
		log:     log,
	}
}

// Channel returns the pub/sub channel for a symbol, e.g. gatekeeper:BTC-USD.
func (p *Publisher) Channel(symbol string) string {
	return p.opts.Prefix + ":" + strings.ToUpper(symbol)
}

// Listener is an events.Listener that queues ev for publication. When the
// queue is full the event is dropped and counted.
func (p *Publisher) Listener(ev events.Event) {
	select {
	case p.queue <- MessageFor(ev):
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.log.Warn().Uint64("dropped", n).Msg("publish queue full")
		}
	}
}

// Dropped reports how many events were discarded on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued messages until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-p.queue:
			if err := p.Send(ctx, m); err != nil {
				p.log.Debug().Err(err).Str("kind", string(m.Kind)).Msg("publish failed")
			}
		}
	}
}

// Send publishes one message through the breaker.
func (p *Publisher) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Kind, err)
	}
	_, err = p.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
		return p.client.Publish(ctx, p.Channel(m.Symbol), body).Result()
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", m.Kind, err)
	}
	return nil
}

// BreakerState exposes the breaker state for health checks.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}
