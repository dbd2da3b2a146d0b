package report

import (
	"sort"
	"sync"
)

// OrderedAppender forwards rows to a sink in ordinal order while they arrive
// in completion order.
//
// Each ordinal 0..n-1 must be resolved exactly once, either with Add (a row)
// or Skip (no row). A row is written as soon as every lower ordinal has been
// resolved, so the file only ever holds a gap-free prefix of the run.
type OrderedAppender struct {
	mu      sync.Mutex
	sink    RowSink
	next    int
	pending map[int][]string
}

// NewOrderedAppender creates an appender that starts at ordinal 0.
func NewOrderedAppender(sink RowSink) *OrderedAppender {
	return &OrderedAppender{
		sink:    sink,
		pending: make(map[int][]string),
	}
}

// Add resolves ordinal with a row.
func (a *OrderedAppender) Add(ordinal int, record []string) error {
	return a.resolve(ordinal, record)
}

// Skip resolves ordinal without a row.
func (a *OrderedAppender) Skip(ordinal int) error {
	return a.resolve(ordinal, nil)
}

func (a *OrderedAppender) resolve(ordinal int, record []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ordinal < a.next {
		return nil
	}
	a.pending[ordinal] = record

	for {
		rec, ok := a.pending[a.next]
		if !ok {
			return nil
		}
		delete(a.pending, a.next)
		a.next++
		if rec == nil {
			continue
		}
		if err := a.sink.Append(rec); err != nil {
			return err
		}
	}
}

// Pending returns the number of rows held back by an unresolved ordinal.
func (a *OrderedAppender) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, rec := range a.pending {
		if rec != nil {
			n++
		}
	}
	return n
}

// Drain writes every held row in ordinal order, ignoring gaps.
// Used when a run stops before all ordinals are resolved.
func (a *OrderedAppender) Drain() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ordinals := make([]int, 0, len(a.pending))
	for o := range a.pending {
		ordinals = append(ordinals, o)
	}
	sort.Ints(ordinals)

	for _, o := range ordinals {
		rec := a.pending[o]
		delete(a.pending, o)
		if o >= a.next {
			a.next = o + 1
		}
		if rec == nil {
			continue
		}
		if err := a.sink.Append(rec); err != nil {
			return err
		}
	}
	return nil
}
