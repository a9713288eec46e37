package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Saver is the persistence target of a Writer.
type Saver interface {
	SaveRaw(ctx context.Context, user string, key Key, raw []byte) error
}

type slot struct {
	user string
	key  Key
}

type pendingWrite struct {
	raw   []byte
	seq   uint64
	timer *time.Timer
}

// Writer debounces state writes. A new write for a (user, key) pair cancels
// the one still pending for it, so only the latest value reaches the store.
// Write failures are logged and never returned.
type Writer struct {
	store Saver
	delay time.Duration
	log   *zap.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[slot]*pendingWrite
	closed  bool

	writeMu sync.Mutex
	written map[slot]uint64
}

// NewWriter creates a writer. A zero delay writes synchronously.
func NewWriter(store Saver, delay time.Duration, log *zap.Logger) *Writer {
	return &Writer{
		store:   store,
		delay:   delay,
		log:     log,
		pending: make(map[slot]*pendingWrite),
		written: make(map[slot]uint64),
	}
}

// Schedule snapshots v and queues it for writing.
func (w *Writer) Schedule(user string, key Key, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		w.log.Warn("failed to encode state", zap.String("user", user), zap.String("key", string(key)), zap.Error(err))
		return
	}

	k := slot{user: user, key: key}

	w.mu.Lock()
	w.seq++
	pw := &pendingWrite{raw: raw, seq: w.seq}
	if prev, ok := w.pending[k]; ok {
		prev.timer.Stop()
		delete(w.pending, k)
	}
	if w.closed || w.delay <= 0 {
		w.mu.Unlock()
		w.write(context.Background(), k, pw)
		return
	}
	pw.timer = time.AfterFunc(w.delay, func() { w.fire(k, pw) })
	w.pending[k] = pw
	w.mu.Unlock()
}

// Pending returns the number of writes not yet flushed.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes every pending value now.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := make(map[slot]*pendingWrite, len(w.pending))
	for k, pw := range w.pending {
		pw.timer.Stop()
		batch[k] = pw
	}
	clear(w.pending)
	w.mu.Unlock()

	for k, pw := range batch {
		w.write(ctx, k, pw)
	}
}

// Close flushes pending writes. Later writes go straight to the store.
func (w *Writer) Close(ctx context.Context) {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Flush(ctx)
}

func (w *Writer) fire(k slot, pw *pendingWrite) {
	w.mu.Lock()
	if w.pending[k] != pw {
		// Superseded or already taken by Flush.
		w.mu.Unlock()
		return
	}
	delete(w.pending, k)
	w.mu.Unlock()

	w.write(context.Background(), k, pw)
}

func (w *Writer) write(ctx context.Context, k slot, pw *pendingWrite) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.written[k] >= pw.seq {
		return
	}
	if err := w.store.SaveRaw(ctx, k.user, k.key, pw.raw); err != nil {
		w.log.Warn("failed to persist state",
			zap.String("user", k.user),
			zap.String("key", string(k.key)),
			zap.Error(err),
		)
		return
	}
	w.written[k] = pw.seq
}
