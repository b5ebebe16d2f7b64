package state

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
)

// #region snapshot-record
// SnapshotRecord is one saved version of an engine's restorable state.
// Versions of the same symbol form a chain through ParentID.
type SnapshotRecord struct {
	VersionID string
	ParentID  string
	Symbol    string
	Snapshot  engine.Snapshot
	CreatedAt time.Time
}

// #endregion snapshot-record
