// Package discovery holds the swipe queue of fetched recipes and applies
// save/skip decisions to it.
package discovery

import (
	"errors"

	"recipe-swiper/internal/recipe"
)

// ErrUnknownRecipe is returned for decisions on ids that are not in the queue.
var ErrUnknownRecipe = errors.New("recipe is not in the discovery queue")

// Status is the decision state of a queue entry.
type Status int

const (
	Undecided Status = iota
	Saved
	Skipped
)

func (s Status) String() string {
	switch s {
	case Saved:
		return "saved"
	case Skipped:
		return "skipped"
	default:
		return "undecided"
	}
}

// Entry wraps a fetched recipe with its decision status.
type Entry struct {
	Recipe recipe.Recipe
	Status Status
}

// Queue is the ordered set of recipes fetched for one filter combination.
// Each recipe id has exactly one entry.
type Queue struct {
	signature string
	entries   []Entry
	index     map[int64]int
	epoch     int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: map[int64]int{}}
}

// Load replaces the queue contents with a fresh fetch. All decision state is
// discarded and a new epoch starts. Duplicate ids keep their first position.
func (q *Queue) Load(signature string, recipes []recipe.Recipe) {
	q.signature = signature
	q.entries = make([]Entry, 0, len(recipes))
	q.index = make(map[int64]int, len(recipes))
	for _, r := range recipes {
		if _, dup := q.index[r.ID]; dup {
			continue
		}
		q.index[r.ID] = len(q.entries)
		q.entries = append(q.entries, Entry{Recipe: r})
	}
	q.epoch++
}

// Restart makes every recipe undecided again without changing the filter.
func (q *Queue) Restart() {
	for i := range q.entries {
		q.entries[i].Status = Undecided
	}
	q.epoch++
}

// Signature is the filter signature the queue was loaded for.
func (q *Queue) Signature() string { return q.signature }

// Epoch increases on every load and restart.
func (q *Queue) Epoch() int { return q.epoch }

// TotalFound is the number of recipes loaded for the current filter.
func (q *Queue) TotalFound() int { return len(q.entries) }

// Available returns the undecided recipes in fetch order.
func (q *Queue) Available() []recipe.Recipe {
	out := make([]recipe.Recipe, 0, len(q.entries))
	for _, e := range q.entries {
		if e.Status == Undecided {
			out = append(out, e.Recipe)
		}
	}
	return out
}

// Decided counts entries that are saved or skipped.
func (q *Queue) Decided() int {
	n := 0
	for _, e := range q.entries {
		if e.Status != Undecided {
			n++
		}
	}
	return n
}

// Progress is the decided share of TotalFound as a percentage, 0 when empty.
func (q *Queue) Progress() float64 {
	if len(q.entries) == 0 {
		return 0
	}
	return float64(q.Decided()) / float64(len(q.entries)) * 100
}

// AllDecided reports whether nothing remains to decide. An empty queue is
// not considered decided.
func (q *Queue) AllDecided() bool {
	return len(q.entries) > 0 && q.Decided() == len(q.entries)
}

// Entry returns the entry for a recipe id.
func (q *Queue) Entry(id int64) (Entry, bool) {
	idx, ok := q.index[id]
	if !ok {
		return Entry{}, false
	}
	return q.entries[idx], true
}

// Entries returns a copy of every entry in fetch order.
func (q *Queue) Entries() []Entry {
	return append([]Entry(nil), q.entries...)
}

// availableIndex is the position of id within Available, or -1.
func (q *Queue) availableIndex(id int64) int {
	pos := 0
	for _, e := range q.entries {
		if e.Status != Undecided {
			continue
		}
		if e.Recipe.ID == id {
			return pos
		}
		pos++
	}
	return -1
}

func (q *Queue) mark(id int64, s Status) {
	if idx, ok := q.index[id]; ok {
		q.entries[idx].Status = s
	}
}
