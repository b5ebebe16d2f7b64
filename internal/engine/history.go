package engine

import "github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"

// history is a bounded FIFO of decisions; the oldest entry is dropped on overflow.
type history struct {
	buf   []decision.Decision
	start int
	size  int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]decision.Decision, capacity)}
}

func (h *history) push(d decision.Decision) {
	if len(h.buf) == 0 {
		return
	}
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = d
		h.size++
		return
	}
	h.buf[h.start] = d
	h.start = (h.start + 1) % len(h.buf)
}

// recent returns up to limit entries, most recent first. limit <= 0 means all.
func (h *history) recent(limit int) []decision.Decision {
	n := h.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]decision.Decision, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.start + h.size - 1 - i) % len(h.buf)
		out = append(out, h.buf[idx].Clone())
	}
	return out
}

// resize keeps the newest entries that fit the new capacity.
func (h *history) resize(capacity int) {
	if capacity == len(h.buf) {
		return
	}
	kept := h.recent(capacity)
	h.buf = make([]decision.Decision, capacity)
	h.start, h.size = 0, 0
	for i := len(kept) - 1; i >= 0; i-- {
		h.push(kept[i])
	}
}

func (h *history) clear() {
	h.buf = make([]decision.Decision, len(h.buf))
	h.start, h.size = 0, 0
}
