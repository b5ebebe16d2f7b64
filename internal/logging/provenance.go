package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/events"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region log-decision
// LogDecision writes a journal entry to the decision_log table.
func LogDecision(db *sql.DB, entry JournalEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	reasons := entry.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	var inputJSON interface{}
	if entry.Input != nil {
		b, err := json.Marshal(entry.Input)
		if err != nil {
			return fmt.Errorf("marshal input: %w", err)
		}
		inputJSON = string(b)
	}

	_, err = db.Exec(
		`INSERT INTO decision_log (entry_id, symbol, action, confidence, risk, reasons_json, input_json, decided_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID,
		entry.Symbol,
		string(entry.Action),
		entry.Confidence,
		string(entry.Risk),
		string(reasonsJSON),
		inputJSON,
		entry.DecidedAt.UTC().Format(time.RFC3339Nano),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region read-journal
// ReadJournal returns up to limit entries for symbol in the order they were
// written. limit <= 0 returns all.
func ReadJournal(db *sql.DB, symbol string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT entry_id, symbol, action, confidence, risk, reasons_json, input_json, decided_at, created_at
		 FROM decision_log WHERE symbol = ? ORDER BY id ASC LIMIT ?`, symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var action, risk, reasonsJSON, decidedStr, createdStr string
		var inputJSON sql.NullString
		if err := rows.Scan(&e.EntryID, &e.Symbol, &action, &e.Confidence, &risk,
			&reasonsJSON, &inputJSON, &decidedStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Action = decision.Action(action)
		e.Risk = decision.Risk(risk)
		if err := json.Unmarshal([]byte(reasonsJSON), &e.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reasons: %w", err)
		}
		if inputJSON.Valid {
			var in signals.Input
			if err := json.Unmarshal([]byte(inputJSON.String), &in); err != nil {
				return nil, fmt.Errorf("unmarshal input: %w", err)
			}
			e.Input = &in
		}
		if e.DecidedAt, err = time.Parse(time.RFC3339Nano, decidedStr); err != nil {
			return nil, fmt.Errorf("parse decided_at of %s: %w", e.EntryID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", e.EntryID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion read-journal

// #region journal
// Journal records every DecisionChange event to the decision_log table.
// Write failures are logged, never returned to the engine.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJournal returns a journal writing to db.
func NewJournal(db *sql.DB, log zerolog.Logger) *Journal {
	return &Journal{db: db, log: log.With().Str("component", "journal").Logger()}
}

// Listener is an events.Listener for Engine.Subscribe.
func (j *Journal) Listener(ev events.Event) {
	dc, ok := ev.(events.DecisionChange)
	if !ok {
		return
	}
	in := dc.Input
	entry := JournalEntry{
		Symbol:     dc.Symbol,
		Action:     dc.Decision.Action,
		Confidence: dc.Decision.Confidence,
		Risk:       dc.Decision.Risk,
		Reasons:    dc.Decision.Reasons,
		Input:      &in,
		DecidedAt:  dc.Decision.Timestamp,
	}
	if err := LogDecision(j.db, entry); err != nil {
		j.log.Error().Err(err).Str("symbol", dc.Symbol).Msg("journal write failed")
	}
}

// #endregion journal
