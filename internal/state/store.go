package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
)

// ErrNotFound is returned when a symbol has no active snapshot or a version id is unknown.
var ErrNotFound = errors.New("snapshot not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS engine_snapshots (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	symbol        TEXT NOT NULL,
	snapshot_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES engine_snapshots(version_id)
);

CREATE INDEX IF NOT EXISTS idx_engine_snapshots_symbol ON engine_snapshots(symbol, created_at);

CREATE TABLE IF NOT EXISTS active_snapshot (
	symbol        TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES engine_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id      TEXT NOT NULL UNIQUE,
	symbol        TEXT NOT NULL,
	action        TEXT NOT NULL,
	confidence    REAL NOT NULL,
	risk          TEXT NOT NULL,
	reasons_json  TEXT NOT NULL,
	input_json    TEXT,
	decided_at    TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_symbol ON decision_log(symbol, id);
`

// #endregion schema

// #region store-struct
// Store keeps versioned engine snapshots in SQLite. The decision_log table
// in the same database is written by the logging package.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-migrated database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region save
// Save records snap as the new active version for symbol, parented on the
// previous active version if there is one.
func (s *Store) Save(symbol string, snap engine.Snapshot, now time.Time) (SnapshotRecord, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_snapshot WHERE symbol = ?`, symbol).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}

	rec := SnapshotRecord{
		VersionID: uuid.New().String(),
		ParentID:  parent.String,
		Symbol:    symbol,
		Snapshot:  snap,
		CreatedAt: now.UTC(),
	}

	_, err = tx.Exec(
		`INSERT INTO engine_snapshots (version_id, parent_id, symbol, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), symbol, string(body),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (symbol, version_id) VALUES (?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET version_id = excluded.version_id`,
		symbol, rec.VersionID,
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save

// #region get-current
// Current returns the active snapshot for symbol.
func (s *Store) Current(symbol string) (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE symbol = ?`, symbol).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.Version(versionID)
}

// #endregion get-current

// #region get-version
// Version retrieves a specific snapshot by id.
func (s *Store) Version(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, symbol, snapshot_json, created_at
		 FROM engine_snapshots WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region rollback
// Rollback points symbol's active snapshot at an earlier version of the same symbol.
func (s *Store) Rollback(symbol, versionID string) error {
	rec, err := s.Version(versionID)
	if err != nil {
		return err
	}
	if rec.Symbol != symbol {
		return fmt.Errorf("version %s belongs to %s, not %s", versionID, rec.Symbol, symbol)
	}
	_, err = s.db.Exec(`UPDATE active_snapshot SET version_id = ? WHERE symbol = ?`, versionID, symbol)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list
// List returns up to limit snapshots for symbol, newest first.
func (s *Store) List(symbol string, limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, symbol, snapshot_json, created_at
		 FROM engine_snapshots WHERE symbol = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Symbols lists every symbol with an active snapshot.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT symbol FROM active_snapshot ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID sql.NullString
	var body, createdStr string

	if err := sc.Scan(&rec.VersionID, &parentID, &rec.Symbol, &body, &createdStr); err != nil {
		return SnapshotRecord{}, err
	}
	rec.ParentID = parentID.String
	if err := json.Unmarshal([]byte(body), &rec.Snapshot); err != nil {
		return SnapshotRecord{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
