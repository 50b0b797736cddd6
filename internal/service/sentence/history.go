package sentence

import "strings"

// DefaultHistoryLimit is how many recently served sentences are remembered.
const DefaultHistoryLimit = 50

// History is a bounded FIFO set of recently accepted sentences. When full,
// the oldest entry is evicted first. Not safe for concurrent use; the
// queue guards it.
type History struct {
	limit int
	order []string
	set   map[string]struct{}
}

// NewHistory creates a history holding at most limit sentences.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit: limit,
		order: make([]string, 0, limit),
		set:   make(map[string]struct{}, limit),
	}
}

// Key returns the dedup key: lowercased with whitespace runs collapsed.
func Key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Contains reports whether s, or a sentence with the same key, is remembered.
func (h *History) Contains(s string) bool {
	_, ok := h.set[Key(s)]
	return ok
}

// Add remembers s, evicting the oldest entry when full.
func (h *History) Add(s string) {
	k := Key(s)
	if _, ok := h.set[k]; ok {
		return
	}
	if len(h.order) == h.limit {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.set, oldest)
	}
	h.order = append(h.order, k)
	h.set[k] = struct{}{}
}

// Len returns the number of remembered sentences.
func (h *History) Len() int { return len(h.order) }

// Limit returns the capacity.
func (h *History) Limit() int { return h.limit }
