package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/clock"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
)

func TestRegistry_LazyAndNormalized(t *testing.T) {
	r, err := NewRegistry(DefaultConfig(), WithClock(clock.NewManual(epoch)))
	require.NoError(t, err)

	created := 0
	r.OnCreate(func(*Engine) { created++ })

	a, err := r.Get(" btc-usd ")
	require.NoError(t, err)
	b, err := r.Get("BTC-USD")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "BTC-USD", a.Symbol())
	assert.Equal(t, 1, created)

	_, ok := r.Lookup("eth-usd")
	assert.False(t, ok)

	_, err = r.Get("  ")
	assert.Error(t, err)
}

func TestRegistry_EnginesAreIndependent(t *testing.T) {
	r, err := NewRegistry(DefaultConfig(), WithClock(clock.NewManual(epoch)))
	require.NoError(t, err)

	btc, _ := r.Get("BTC")
	eth, _ := r.Get("ETH")

	btc.Decide(buyInput())

	assert.Len(t, btc.History(0), 1)
	assert.Empty(t, eth.History(0))
	assert.Equal(t, decision.ActionBuy, btc.FlapState().LastAction)
	assert.Equal(t, decision.Action(""), eth.FlapState().LastAction)
	assert.Equal(t, []string{"BTC", "ETH"}, r.Symbols())
}

func TestRegistry_UpdateConfig(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)
	btc, _ := r.Get("BTC")

	capacity := 10
	cfg, err := r.UpdateConfig(ConfigPatch{HistoryCapacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.HistoryCapacity)
	assert.Equal(t, 10, btc.Config().HistoryCapacity)

	eth, _ := r.Get("ETH")
	assert.Equal(t, 10, eth.Config().HistoryCapacity)

	bad := -1
	_, err = r.UpdateConfig(ConfigPatch{HistoryCapacity: &bad})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 10, r.Config().HistoryCapacity)
	assert.Equal(t, 10, btc.Config().HistoryCapacity)
}

func TestNewRegistry_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EMAAlpha = 0
	_, err := NewRegistry(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
