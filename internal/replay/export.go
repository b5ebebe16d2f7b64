package replay

import (
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/logging"
)

// FromJournal rebuilds a fixture from journaled decisions. Entries without a
// captured input are skipped. Each tick expects the action that was logged.
func FromJournal(symbol string, entries []logging.JournalEntry) *Fixture {
	f := &Fixture{
		Description: "exported from decision journal",
		Symbol:      symbol,
	}
	for _, e := range entries {
		if e.Input == nil {
			continue
		}
		if f.Start.IsZero() {
			f.Start = e.DecidedAt.UTC()
		}
		f.Ticks = append(f.Ticks, FixtureTick{
			OffsetMS: e.DecidedAt.Sub(f.Start).Milliseconds(),
			Input:    *e.Input,
			Expect:   e.Action,
		})
	}
	return f
}
