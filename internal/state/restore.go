package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
)

// RestoreAll creates an engine in reg for every symbol with an active
// snapshot and restores it. It returns the symbols restored.
func (s *Store) RestoreAll(reg *engine.Registry) ([]string, error) {
	symbols, err := s.Symbols()
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		rec, err := s.Current(sym)
		if err != nil {
			return nil, err
		}
		e, err := reg.Get(sym)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", sym, err)
		}
		e.Restore(rec.Snapshot)
	}
	return symbols, nil
}

// SaveAll snapshots every engine in reg.
func (s *Store) SaveAll(reg *engine.Registry, now time.Time) error {
	var errs []error
	for _, sym := range reg.Symbols() {
		e, ok := reg.Lookup(sym)
		if !ok {
			continue
		}
		if _, err := s.Save(sym, e.Snapshot(), now); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", sym, err))
		}
	}
	return errors.Join(errs...)
}
