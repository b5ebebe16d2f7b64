package state

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/clock"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/confidence"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/flapguard"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

// #region helpers
func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func corruptDB(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(db), db
}

func sampleSnapshot() engine.Snapshot {
	return engine.Snapshot{
		Flap: flapguard.State{
			LastAction:     decision.ActionSell,
			LastActionAt:   t0,
			HoldCycles:     2,
			CooldownActive: true,
			LastReversalAt: t0.Add(-5 * time.Second),
		},
		EMA: confidence.EMA{Value: 0.7125, Seeded: true},
	}
}

func assertSnapshotEqual(t *testing.T, want, got engine.Snapshot) {
	t.Helper()
	assert.Equal(t, want.EMA, got.EMA)
	assert.Equal(t, want.Flap.LastAction, got.Flap.LastAction)
	assert.Equal(t, want.Flap.HoldCycles, got.Flap.HoldCycles)
	assert.Equal(t, want.Flap.CooldownActive, got.Flap.CooldownActive)
	assert.True(t, want.Flap.LastActionAt.Equal(got.Flap.LastActionAt))
	assert.True(t, want.Flap.LastReversalAt.Equal(got.Flap.LastReversalAt))
}

// #endregion helpers

func TestSaveAndCurrent(t *testing.T) {
	s := tempDB(t)

	rec, err := s.Save("BTC-USD", sampleSnapshot(), t0)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.VersionID)
	assert.Empty(t, rec.ParentID)

	got, err := s.Current("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, rec.VersionID, got.VersionID)
	assert.Equal(t, "BTC-USD", got.Symbol)
	assert.True(t, t0.Equal(got.CreatedAt))
	assertSnapshotEqual(t, sampleSnapshot(), got.Snapshot)
}

func TestSave_ChainsParents(t *testing.T) {
	s := tempDB(t)

	first, err := s.Save("BTC-USD", sampleSnapshot(), t0)
	require.NoError(t, err)
	other, err := s.Save("ETH-USD", engine.Snapshot{}, t0)
	require.NoError(t, err)
	second, err := s.Save("BTC-USD", engine.Snapshot{}, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.VersionID, second.ParentID)
	assert.Empty(t, other.ParentID)

	list, err := s.List("BTC-USD", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.VersionID, list[0].VersionID)
	assert.Equal(t, first.VersionID, list[1].VersionID)

	syms, err := s.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, syms)
}

func TestCurrent_NotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.Current("NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Version("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollback(t *testing.T) {
	s := tempDB(t)
	first, _ := s.Save("BTC-USD", sampleSnapshot(), t0)
	s.Save("BTC-USD", engine.Snapshot{}, t0.Add(time.Minute))
	eth, _ := s.Save("ETH-USD", engine.Snapshot{}, t0)

	require.NoError(t, s.Rollback("BTC-USD", first.VersionID))
	cur, err := s.Current("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, first.VersionID, cur.VersionID)

	assert.Error(t, s.Rollback("BTC-USD", eth.VersionID))
	assert.ErrorIs(t, s.Rollback("BTC-USD", "missing"), ErrNotFound)
}

func TestVersion_BadSnapshotJSON(t *testing.T) {
	s, db := corruptDB(t)
	_, err := db.Exec(
		`INSERT INTO engine_snapshots (version_id, symbol, snapshot_json, created_at) VALUES ('v1', 'BTC', '{bad', ?)`,
		t0.Format(time.RFC3339Nano),
	)
	require.NoError(t, err)

	_, err = s.Version("v1")
	assert.ErrorContains(t, err, "unmarshal snapshot")
}

func TestSave_InsertFails(t *testing.T) {
	s, db := corruptDB(t)
	_, err := db.Exec("DROP TABLE engine_snapshots")
	require.NoError(t, err)

	_, err = s.Save("BTC", engine.Snapshot{}, t0)
	assert.Error(t, err)
}

func TestClosedDB(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s.Close()

	_, err = s.Save("BTC", engine.Snapshot{}, t0)
	assert.Error(t, err)
	_, err = s.Current("BTC")
	assert.Error(t, err)
	_, err = s.List("BTC", 1)
	assert.Error(t, err)
}

func TestNewStore_InvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestSaveAllRestoreAll(t *testing.T) {
	s := tempDB(t)
	clk := clock.NewManual(t0)

	reg, err := engine.NewRegistry(engine.DefaultConfig(), engine.WithClock(clk))
	require.NoError(t, err)
	btc, _ := reg.Get("BTC-USD")
	btc.Decide(signals.Input{FusedScore: 75, Trend: signals.DirectionUp, RiskState: signals.RiskGreen, Volatility: 0.3})
	want := btc.Snapshot()

	require.NoError(t, s.SaveAll(reg, t0))

	fresh, err := engine.NewRegistry(engine.DefaultConfig(), engine.WithClock(clk))
	require.NoError(t, err)
	restored, err := s.RestoreAll(fresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, restored)

	e, ok := fresh.Lookup("BTC-USD")
	require.True(t, ok)
	assertSnapshotEqual(t, want, e.Snapshot())
	assert.Empty(t, e.History(0))
}
