// Package speech turns ordered text utterances into delivered audio.
//
// Queue serializes synthesis per session: utterances enqueued for one
// session are synthesized and delivered strictly in order, with a short
// gap between clips so playback does not run together. Sessions drain
// independently of each other.
package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zetyquickly/self-aware/pkg/tts"
)

// DefaultGap is the pause between delivered audio clips.
const DefaultGap = 100 * time.Millisecond

// DeliverFunc receives synthesized audio for a session, in enqueue order.
type DeliverFunc func(sessionID string, audio []byte)

// DrainedFunc is called when a session's queue empties out.
type DrainedFunc func(sessionID string)

// Queue is a per-session FIFO synthesis pipeline.
// At most one synthesis is in flight per session at any time.
type Queue struct {
	tts       tts.Provider
	deliver   DeliverFunc
	onDrained DrainedFunc
	gap       time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionQueue
}

type item struct {
	text string
	tone string
	gen  uint64
}

type sessionQueue struct {
	items      []item
	processing bool
	generation uint64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithGap sets the pause between delivered clips.
func WithGap(d time.Duration) QueueOption {
	return func(q *Queue) { q.gap = d }
}

// WithOnDrained sets the callback fired when a session's queue empties.
func WithOnDrained(fn DrainedFunc) QueueOption {
	return func(q *Queue) { q.onDrained = fn }
}

// WithQueueLogger sets the structured logger.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// NewQueue creates a synthesis queue backed by the given TTS provider.
// Delivered audio is handed to deliver in enqueue order per session.
func NewQueue(provider tts.Provider, deliver DeliverFunc, opts ...QueueOption) *Queue {
	q := &Queue{
		tts:      provider,
		deliver:  deliver,
		gap:      DefaultGap,
		logger:   slog.Default().With("component", "speech.queue"),
		sessions: make(map[string]*sessionQueue),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds an utterance to the session's queue and starts a drainer
// if one is not already running for that session.
func (q *Queue) Enqueue(sessionID, text, tone string) {
	if text == "" {
		return
	}

	q.mu.Lock()
	sq, ok := q.sessions[sessionID]
	if !ok {
		sq = &sessionQueue{}
		q.sessions[sessionID] = sq
	}
	sq.items = append(sq.items, item{text: text, tone: tone, gen: sq.generation})
	start := !sq.processing
	if start {
		sq.processing = true
	}
	q.mu.Unlock()

	if start {
		go q.drain(sessionID, sq)
	}
}

// Clear drops all queued utterances for a session and marks any in-flight
// synthesis stale so its audio is never delivered.
func (q *Queue) Clear(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.sessions[sessionID]
	if !ok {
		return
	}
	sq.items = nil
	sq.generation++
}

// Purge clears a session's queue and forgets the session entirely.
// Call on disconnect.
func (q *Queue) Purge(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.sessions[sessionID]
	if !ok {
		return
	}
	sq.items = nil
	sq.generation++
	delete(q.sessions, sessionID)
}

// Pending returns the number of queued utterances for a session.
func (q *Queue) Pending(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if sq, ok := q.sessions[sessionID]; ok {
		return len(sq.items)
	}
	return 0
}

// drain synthesizes and delivers queued items one at a time until the
// queue empties. Exactly one drainer runs per live session: after Purge a
// leftover drainer sees its sessionQueue detached and exits silently.
func (q *Queue) drain(sessionID string, sq *sessionQueue) {
	var lastGen uint64
	popped := false

	for {
		q.mu.Lock()
		if len(sq.items) == 0 {
			sq.processing = false
			// The drained callback only fires when a batch finished
			// naturally: a Clear or Purge bumps the generation past the
			// last popped item, and the event would announce an
			// interrupted reply as complete.
			drained := popped && lastGen == sq.generation && q.sessions[sessionID] == sq
			q.mu.Unlock()
			if drained && q.onDrained != nil {
				q.onDrained(sessionID)
			}
			return
		}
		next := sq.items[0]
		sq.items = sq.items[1:]
		q.mu.Unlock()

		popped = true
		lastGen = next.gen

		result, err := q.tts.Synthesize(context.Background(), next.text, next.tone)

		q.mu.Lock()
		stale := next.gen != sq.generation || q.sessions[sessionID] != sq
		q.mu.Unlock()

		if err != nil {
			q.logger.Error("synthesis failed, skipping utterance",
				"session_id", sessionID,
				"chars", len(next.text),
				"error", err,
			)
			continue
		}
		if stale {
			// Cleared or purged while synthesizing; drop the audio.
			continue
		}

		q.deliver(sessionID, result.Audio)
		time.Sleep(q.gap)
	}
}
