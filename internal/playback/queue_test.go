package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu        sync.Mutex
	open      int
	overlap   bool
	stray     bool
	completed []string
	revealed  []string
}

func newRecorder() *recorder {
	return &recorder{}
}

func (r *recorder) LineStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open++
	if r.open > 1 {
		r.overlap = true
	}
	r.revealed = append(r.revealed, "")
}

func (r *recorder) RuneRevealed(ch rune) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open != 1 {
		r.stray = true
		return
	}
	r.revealed[len(r.revealed)-1] += string(ch)
}

func (r *recorder) LineCompleted(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open--
	r.completed = append(r.completed, line)
}

// snapshot returns completed lines, the per-line reveal streams, and whether lines ever
// overlapped or a rune arrived outside a started line.
func (r *recorder) snapshot() ([]string, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.completed...), append([]string(nil), r.revealed...), r.overlap || r.stray
}

func fastQueue(obs Observer) *Queue {
	return New(Options{RevealInterval: time.Microsecond, LinePause: time.Microsecond, Observer: obs})
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
}

func TestQueueRevealsInEnqueueOrder(t *testing.T) {
	rec := newRecorder()
	q := fastQueue(rec)
	defer q.Close()

	for _, line := range []string{"a", "b", "c"} {
		q.Enqueue(line)
	}
	q.Start()
	waitIdle(t, q)

	completed, revealed, overlap := rec.snapshot()
	require.Equal(t, []string{"a", "b", "c"}, completed)
	require.Equal(t, []string{"a", "b", "c"}, revealed)
	require.False(t, overlap)
	require.Equal(t, []string{"a", "b", "c"}, q.Lines())
	require.False(t, q.Draining())
}

func TestQueueRevealsOneRunePerTick(t *testing.T) {
	rec := newRecorder()
	q := fastQueue(rec)
	defer q.Close()

	q.Enqueue("❌ offline")
	q.Start()
	waitIdle(t, q)

	_, revealed, _ := rec.snapshot()
	require.Equal(t, "❌ offline", revealed[0])
	require.Equal(t, []string{"❌ offline"}, q.Lines())
}

func TestQueueStartIsIdempotent(t *testing.T) {
	rec := newRecorder()
	q := fastQueue(rec)
	defer q.Close()

	for i := 0; i < 5; i++ {
		q.Enqueue(fmt.Sprintf("line-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Start()
		}()
	}
	wg.Wait()
	waitIdle(t, q)

	completed, _, overlap := rec.snapshot()
	require.False(t, overlap)
	require.Equal(t, []string{"line-0", "line-1", "line-2", "line-3", "line-4"}, completed)
}

func TestQueueEnqueueDuringDrainExtendsTail(t *testing.T) {
	rec := newRecorder()
	q := New(Options{RevealInterval: 2 * time.Millisecond, LinePause: time.Millisecond, Observer: rec})
	defer q.Close()

	q.Enqueue("first line")
	q.Start()
	require.True(t, q.Draining())

	q.Enqueue("second")
	q.Start()
	q.Enqueue("third")
	waitIdle(t, q)

	completed, _, overlap := rec.snapshot()
	require.False(t, overlap)
	require.Equal(t, []string{"first line", "second", "third"}, completed)
}

func TestQueueResumesAfterIdle(t *testing.T) {
	q := fastQueue(nil)
	defer q.Close()

	q.Enqueue("a")
	q.Start()
	waitIdle(t, q)
	require.Zero(t, q.Pending())

	q.Enqueue("b")
	q.Start()
	waitIdle(t, q)

	require.Equal(t, []string{"a", "b"}, q.Lines())
}

func TestQueueSkipsEmptyLines(t *testing.T) {
	rec := newRecorder()
	q := New(Options{RevealInterval: time.Microsecond, LinePause: time.Hour, Observer: rec})
	defer q.Close()

	q.Enqueue("")
	q.Enqueue("")
	q.Enqueue("x")
	q.Start()

	require.Eventually(t, func() bool {
		completed, _, _ := rec.snapshot()
		return len(completed) == 1
	}, 5*time.Second, time.Millisecond)

	completed, revealed, _ := rec.snapshot()
	require.Equal(t, []string{"x"}, completed)
	require.Equal(t, []string{"x"}, revealed)
	require.Equal(t, []string{"x"}, q.Lines())
	require.Zero(t, q.Pending())
}

func TestQueueOnlyEmptyLinesGoesIdle(t *testing.T) {
	q := New(Options{RevealInterval: time.Hour, LinePause: time.Hour})
	defer q.Close()

	q.Enqueue("")
	q.Start()
	waitIdle(t, q)

	require.Empty(t, q.Lines())
	require.False(t, q.Draining())
}

func TestQueueResetAndReplace(t *testing.T) {
	q := fastQueue(nil)
	defer q.Close()

	q.Enqueue("old")
	q.Start()
	waitIdle(t, q)

	q.Reset()
	require.Empty(t, q.Lines())

	q.Replace([]string{"stored 1", "stored 2"})
	require.Equal(t, []string{"stored 1", "stored 2"}, q.Lines())

	q.Enqueue("new")
	q.Start()
	waitIdle(t, q)
	require.Equal(t, []string{"stored 1", "stored 2", "new"}, q.Lines())
}

func TestQueueResetKeepsLineInProgress(t *testing.T) {
	rec := newRecorder()
	q := New(Options{RevealInterval: 5 * time.Millisecond, LinePause: time.Millisecond, Observer: rec})
	defer q.Close()

	q.Enqueue("done")
	q.Enqueue(strings.Repeat("z", 20))
	q.Start()

	require.Eventually(t, func() bool {
		lines := q.Lines()
		return len(lines) == 2 && len(lines[1]) > 0
	}, 5*time.Second, time.Millisecond)

	q.Reset()
	waitIdle(t, q)

	require.Equal(t, []string{strings.Repeat("z", 20)}, q.Lines())

	completed, revealed, broken := rec.snapshot()
	require.False(t, broken, "observer stream must stay consistent across Reset")
	require.Equal(t, []string{"done", strings.Repeat("z", 20)}, completed)
	require.Equal(t, completed, revealed)
}

func TestQueueCloseStopsReveal(t *testing.T) {
	rec := newRecorder()
	q := New(Options{RevealInterval: 20 * time.Millisecond, LinePause: time.Millisecond, Observer: rec})

	q.Enqueue("abcdefghijklmnop")
	q.Enqueue("never shown")
	q.Start()

	require.Eventually(t, func() bool {
		lines := q.Lines()
		return len(lines) == 1 && len(lines[0]) > 0
	}, 5*time.Second, time.Millisecond)

	q.Close()
	before := q.Lines()
	time.Sleep(60 * time.Millisecond)

	require.Equal(t, before, q.Lines())
	require.Len(t, before, 1)
	require.Less(t, len(before[0]), len("abcdefghijklmnop"))

	completed, _, _ := rec.snapshot()
	require.Empty(t, completed)

	q.Enqueue("after close")
	q.Start()
	require.False(t, q.Draining())
	require.Zero(t, q.Pending())
}

func TestQueueWaitHonoursContext(t *testing.T) {
	q := New(Options{RevealInterval: 50 * time.Millisecond, LinePause: time.Millisecond})
	defer q.Close()

	q.Enqueue("slow line to reveal")
	q.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)
}
