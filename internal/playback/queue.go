// Package playback reveals narration lines one character at a time, strictly in enqueue order.
//
// A Queue has a single consumer goroutine driven by one timer. The consumer is an explicit
// state machine (idle, next, revealing, pausing); enqueueing while it runs only extends the tail.
package playback

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultRevealInterval is the delay between two revealed characters.
	DefaultRevealInterval = 22 * time.Millisecond
	// DefaultLinePause is the hold after a fully revealed line.
	DefaultLinePause = 250 * time.Millisecond
)

// Observer is notified from the consumer goroutine, in order. Calls always refer to the line
// currently being revealed; a concurrent Reset or Replace does not interrupt the stream.
type Observer interface {
	LineStarted()
	RuneRevealed(r rune)
	LineCompleted(line string)
}

// Options tunes a Queue.
type Options struct {
	RevealInterval time.Duration
	LinePause      time.Duration
	Observer       Observer
	Logger         *slog.Logger
}

type phase int

const (
	phaseIdle phase = iota
	phaseNext
	phaseRevealing
	phasePausing
)

// Queue is a single-consumer ordered narration queue.
type Queue struct {
	reveal   time.Duration
	pause    time.Duration
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	pending []string
	visible []string
	phase   phase
	current []rune
	charIdx int
	slot    int
	done    chan struct{}
	stop    chan struct{}
	closed  bool
}

// New builds an idle queue. Zero durations fall back to the defaults; negative ones mean "no delay".
func New(opts Options) *Queue {
	reveal := opts.RevealInterval
	if reveal == 0 {
		reveal = DefaultRevealInterval
	}
	pause := opts.LinePause
	if pause == 0 {
		pause = DefaultLinePause
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Queue{
		reveal:   max(reveal, 0),
		pause:    max(pause, 0),
		observer: opts.Observer,
		logger:   logger,
		slot:     -1,
		stop:     make(chan struct{}),
	}
}

// Enqueue appends a line to the tail. It never blocks on playback.
func (q *Queue) Enqueue(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, line)
}

// Start begins draining unless a drain is already running. Safe to call repeatedly.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.phase != phaseIdle || len(q.pending) == 0 {
		return
	}

	q.phase = phaseNext
	done := make(chan struct{})
	q.done = done
	q.logger.Debug("drain started", "pending", len(q.pending))
	go q.drain(done)
}

// Reset clears the visible narration. A line that is mid-reveal keeps its prefix as the first line.
func (q *Queue) Reset() {
	q.Replace(nil)
}

// Replace swaps the visible narration for lines without animating them.
func (q *Queue) Replace(lines []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	visible := append([]string(nil), lines...)
	if q.phase == phaseRevealing && q.slot >= 0 {
		visible = append(visible, q.visible[q.slot])
		q.slot = len(visible) - 1
	}
	q.visible = visible
}

// Lines returns the currently visible narration.
func (q *Queue) Lines() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.visible...)
}

// Pending reports how many lines wait to be revealed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Draining reports whether the consumer is running.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.phase != phaseIdle && !q.closed
}

// Wait blocks until the running drain, and any drain started while waiting, has finished.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		done := q.done
		q.mu.Unlock()

		if done == nil {
			return nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		q.mu.Lock()
		same := q.done == done
		q.mu.Unlock()
		if same {
			return nil
		}
	}
}

// Close stops the consumer and releases its timer. No reveal happens after Close returns.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	close(q.stop)
	done := q.done
	q.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (q *Queue) drain(done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-timer.C:
		}

		delay, events, more := q.step()
		if !q.emit(events) {
			return
		}
		if !more {
			q.logger.Debug("drain finished")
			return
		}
		timer.Reset(delay)
	}
}

type eventKind int

const (
	lineStarted eventKind = iota
	runeRevealed
	lineCompleted
)

type event struct {
	kind eventKind
	r    rune
	line string
}

// step advances the state machine by one tick and returns the delay until the next tick.
func (q *Queue) step() (time.Duration, []event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, nil, false
	}

	switch q.phase {
	case phaseRevealing:
		r := q.current[q.charIdx]
		q.visible[q.slot] += string(r)
		q.charIdx++
		events := []event{{kind: runeRevealed, r: r}}
		if q.charIdx < len(q.current) {
			return q.reveal, events, true
		}
		events = append(events, q.complete())
		return q.pause, events, true
	case phaseNext, phasePausing:
		return q.next()
	default:
		return 0, nil, false
	}
}

func (q *Queue) next() (time.Duration, []event, bool) {
	if len(q.pending) == 0 {
		q.phase = phaseIdle
		return 0, nil, false
	}

	line := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]

	// Empty lines are dropped without a pause.
	if line == "" {
		return q.next()
	}

	q.current = []rune(line)
	q.charIdx = 0
	q.visible = append(q.visible, "")
	q.slot = len(q.visible) - 1

	q.phase = phaseRevealing
	return q.reveal, []event{{kind: lineStarted}}, true
}

func (q *Queue) complete() event {
	ev := event{kind: lineCompleted, line: q.visible[q.slot]}
	q.phase = phasePausing
	q.current = nil
	q.slot = -1
	return ev
}

// emit delivers events outside the lock; it reports false once the queue was closed.
func (q *Queue) emit(events []event) bool {
	if q.observer == nil || len(events) == 0 {
		return true
	}
	for _, ev := range events {
		select {
		case <-q.stop:
			return false
		default:
		}
		switch ev.kind {
		case lineStarted:
			q.observer.LineStarted()
		case runeRevealed:
			q.observer.RuneRevealed(ev.r)
		case lineCompleted:
			q.observer.LineCompleted(ev.line)
		}
	}
	return true
}
