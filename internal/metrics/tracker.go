package metrics

import (
	"sync"
	"time"

	"recipe-swiper/internal/query"
)

// DefaultCapacity is the number of calls kept for diagnostics.
const DefaultCapacity = 50

// Call is a single entry in the diagnostics history.
type Call struct {
	ID        string        `json:"id"`
	Endpoint  string        `json:"endpoint"`
	Key       string        `json:"key"`
	Cached    bool          `json:"cached"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latencyNs"`
	Timestamp time.Time     `json:"timestamp"`
}

// Summary aggregates the calls in the history.
type Summary struct {
	Total      int `json:"total"`
	LastHour   int `json:"lastHour"`
	LastMinute int `json:"lastMinute"`
	Cached     int `json:"cached"`
	API        int `json:"api"`
}

// Tracker is a bounded ring buffer of recent calls.
type Tracker struct {
	mu   sync.Mutex
	buf  []Call
	next int
	full bool
}

// NewTracker creates a tracker holding at most capacity calls.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{buf: make([]Call, capacity)}
}

// ObserveCall records a query event, evicting the oldest when full.
func (t *Tracker) ObserveCall(e query.CallEvent) {
	c := Call{
		ID:        e.ID,
		Endpoint:  e.Endpoint,
		Key:       e.Key,
		Cached:    e.Cached,
		Latency:   e.Latency,
		Timestamp: e.At,
	}
	if e.Err != nil {
		c.Error = e.Err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = c
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
}

// Calls returns the history newest first.
func (t *Tracker) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.buf)
	}
	out := make([]Call, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, t.buf[(t.next-i+len(t.buf))%len(t.buf)])
	}
	return out
}

// Stats summarizes the history relative to now.
func (t *Tracker) Stats(now time.Time) Summary {
	var s Summary
	for _, c := range t.Calls() {
		s.Total++
		age := now.Sub(c.Timestamp)
		if age <= time.Hour {
			s.LastHour++
		}
		if age <= time.Minute {
			s.LastMinute++
		}
		if c.Cached {
			s.Cached++
		} else {
			s.API++
		}
	}
	return s
}

// Clear empties the history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.buf)
	t.next = 0
	t.full = false
}
