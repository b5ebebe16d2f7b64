package logging

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/clock"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/state"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.DB()
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	in := signals.Input{FusedScore: 70, Trend: signals.DirectionUp, RiskState: signals.RiskGreen}

	err := LogDecision(db, JournalEntry{
		Symbol:     "BTC",
		Action:     decision.ActionBuy,
		Confidence: 82.25,
		Risk:       decision.RiskLow,
		Reasons:    []string{"BUY: score 70.0", "Risk state GREEN"},
		Input:      &in,
		DecidedAt:  t0,
		CreatedAt:  t0,
	})
	require.NoError(t, err)

	got, err := ReadJournal(db, "BTC", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].EntryID)
	assert.Equal(t, decision.ActionBuy, got[0].Action)
	assert.Equal(t, 82.25, got[0].Confidence)
	assert.Equal(t, []string{"BUY: score 70.0", "Risk state GREEN"}, got[0].Reasons)
	require.NotNil(t, got[0].Input)
	assert.Equal(t, signals.DirectionUp, got[0].Input.Trend)
	assert.True(t, t0.Equal(got[0].DecidedAt))
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	before := time.Now().UTC()

	require.NoError(t, LogDecision(db, JournalEntry{Symbol: "BTC", Action: decision.ActionWait, DecidedAt: t0}))

	got, err := ReadJournal(db, "BTC", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].CreatedAt.Before(before))
	assert.Nil(t, got[0].Input)
	assert.Empty(t, got[0].Reasons)
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close()

	assert.Error(t, LogDecision(db, JournalEntry{Symbol: "BTC"}))
}

func TestReadJournal_OrderAndLimit(t *testing.T) {
	db := setupDB(t)
	for i, a := range []decision.Action{decision.ActionBuy, decision.ActionHold, decision.ActionSell} {
		require.NoError(t, LogDecision(db, JournalEntry{Symbol: "ETH", Action: a, DecidedAt: t0.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, LogDecision(db, JournalEntry{Symbol: "BTC", Action: decision.ActionWait, DecidedAt: t0}))

	got, err := ReadJournal(db, "ETH", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, decision.ActionBuy, got[0].Action)
	assert.Equal(t, decision.ActionHold, got[1].Action)
}

func TestReadJournal_CorruptTimestamp(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(
		`INSERT INTO decision_log (entry_id, symbol, action, confidence, risk, reasons_json, input_json, decided_at, created_at)
		 VALUES ('e-1', 'BTC', 'BUY', 80, 'LOW', '["BUY"]', NULL, 'yesterday', '2026-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = ReadJournal(db, "BTC", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse decided_at of e-1")
}

// #endregion log-decision-tests

// #region journal-tests
func TestJournal_RecordsEveryDecision(t *testing.T) {
	db := setupDB(t)
	e, err := engine.New(engine.DefaultConfig(), engine.WithClock(clock.NewManual(t0)), engine.WithSymbol("BTC"))
	require.NoError(t, err)
	e.Subscribe(NewJournal(db, zerolog.Nop()).Listener)

	e.Decide(signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3})
	e.Decide(signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskRed})

	got, err := ReadJournal(db, "BTC", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, decision.ActionBuy, got[0].Action)
	assert.Equal(t, decision.ActionWait, got[1].Action)
	assert.Equal(t, []string{"High-risk cascade detected"}, got[1].Reasons)
	require.NotNil(t, got[1].Input)
	assert.Equal(t, signals.RiskRed, got[1].Input.RiskState)
}

func TestJournal_WriteFailureIsLogged(t *testing.T) {
	db := setupDB(t)
	db.Close()
	var buf bytes.Buffer

	j := NewJournal(db, zerolog.New(&buf))
	e, err := engine.New(engine.DefaultConfig(), engine.WithSymbol("BTC"))
	require.NoError(t, err)
	e.Subscribe(j.Listener)

	assert.NotPanics(t, func() {
		e.Decide(signals.Input{FusedScore: 50, Trend: signals.DirectionFlat, RiskState: signals.RiskGreen})
	})
	assert.Contains(t, buf.String(), "journal write failed")
}

// #endregion journal-tests

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup("warn", "json", &buf)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	_, err = Setup("loud", "json", &buf)
	assert.Error(t, err)
	_, err = Setup("info", "xml", &buf)
	assert.Error(t, err)
}
