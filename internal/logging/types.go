package logging

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region journal-entry
// JournalEntry is a single row in the decision_log table.
type JournalEntry struct {
	EntryID    string
	Symbol     string
	Action     decision.Action
	Confidence float64
	Risk       decision.Risk
	Reasons    []string
	Input      *signals.Input // nil when the tick input was not captured
	DecidedAt  time.Time
	CreatedAt  time.Time
}

// #endregion journal-entry
