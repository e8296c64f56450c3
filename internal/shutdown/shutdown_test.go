package shutdown

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeClock is the part of the clockwork fake used here
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

type harness struct {
	coord  *Coordinator
	ctx    context.Context
	sigCh  chan chan<- os.Signal
	exits  chan int
	fc     fakeClock
	result chan bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(nil) })

	fc := clockwork.NewFakeClock()
	h := &harness{
		ctx:    ctx,
		sigCh:  make(chan chan<- os.Signal, 1),
		exits:  make(chan int, 1),
		fc:     fc,
		result: make(chan bool, 1),
	}

	c := NewCoordinator(cancel, NewCompletion(), 50*time.Millisecond, 20)
	c.Clock = fc
	c.Exit = func(code int) { h.exits <- code }
	c.Notify = func(ch chan<- os.Signal, sig ...os.Signal) {
		assert.ElementsMatch(t, []os.Signal{unix.SIGINT, unix.SIGTERM}, sig)
		h.sigCh <- ch
	}
	c.Stop = func(chan<- os.Signal) {}
	h.coord = c
	return h
}

func (h *harness) start() {
	go func() { h.result <- h.coord.Run(context.Background()) }()
}

func (h *harness) signal(t *testing.T, sig os.Signal) {
	t.Helper()
	select {
	case ch := <-h.sigCh:
		ch <- sig
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never subscribed to signals")
	}
}

func (h *harness) exitCode(t *testing.T) int {
	t.Helper()
	select {
	case code := <-h.exits:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not exit")
		return -1
	}
}

func TestCompletion(t *testing.T) {
	c := NewCompletion()
	assert.False(t, c.Completed())
	c.Mark()
	c.Mark()
	assert.True(t, c.Completed())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestSignalCancelsAndExitsAfterCompletion(t *testing.T) {
	h := newHarness(t)
	h.start()

	// The workflow acknowledges cancellation
	go func() {
		<-h.ctx.Done()
		h.coord.Completion.Mark()
	}()

	h.signal(t, unix.SIGTERM)

	assert.Equal(t, 0, h.exitCode(t))
	assert.True(t, <-h.result)
	assert.ErrorIs(t, context.Cause(h.ctx), ErrShutdownRequested)
}

func TestGracePeriodIsBounded(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.signal(t, unix.SIGINT)

	// The workflow never completes: the coordinator gives up after 20 steps
	for i := 0; i < 20; i++ {
		h.fc.BlockUntil(1)
		h.fc.Advance(50 * time.Millisecond)
	}

	assert.Equal(t, 0, h.exitCode(t))
	assert.True(t, <-h.result)
	assert.False(t, h.coord.Completion.Completed())
}

func TestCompletionMidGracePeriod(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.signal(t, unix.SIGINT)

	for i := 0; i < 3; i++ {
		h.fc.BlockUntil(1)
		h.fc.Advance(50 * time.Millisecond)
	}
	h.fc.BlockUntil(1)
	h.coord.Completion.Mark()

	assert.Equal(t, 0, h.exitCode(t), "exit without waiting out the remaining steps")
}

func TestTrigger(t *testing.T) {
	h := newHarness(t)
	h.start()
	<-h.sigCh

	go func() {
		<-h.ctx.Done()
		h.coord.Completion.Mark()
	}()

	h.coord.Trigger()
	h.coord.Trigger()

	assert.Equal(t, 0, h.exitCode(t))
	assert.True(t, <-h.result)
}

// A signal during startup, before Run, is not lost
func TestSignalBeforeRun(t *testing.T) {
	h := newHarness(t)
	h.coord.Listen()
	h.signal(t, unix.SIGTERM)

	select {
	case <-h.coord.Requested():
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not request shutdown")
	}
	require.NoError(t, h.ctx.Err(), "only Run cancels the workflow")

	go func() {
		<-h.ctx.Done()
		h.coord.Completion.Mark()
	}()
	h.start()

	assert.Equal(t, 0, h.exitCode(t))
	assert.True(t, <-h.result)
	assert.Empty(t, h.sigCh, "Run must reuse the early subscription")
}

func TestUnlistenWithoutRun(t *testing.T) {
	h := newHarness(t)
	stopped := 0
	h.coord.Stop = func(chan<- os.Signal) { stopped++ }

	h.coord.Listen()
	<-h.sigCh
	h.coord.Unlisten()
	h.coord.Unlisten()

	assert.Equal(t, 1, stopped)
	select {
	case <-h.coord.Requested():
		t.Fatal("no shutdown was requested")
	default:
	}
}

func TestWorkflowFinishesFirst(t *testing.T) {
	h := newHarness(t)
	h.start()
	<-h.sigCh

	h.coord.Completion.Mark()

	select {
	case shutdown := <-h.result:
		assert.False(t, shutdown)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, h.exits)
	require.NoError(t, h.ctx.Err(), "workflow context untouched")
}

func TestCancelOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	c := NewCoordinator(func(error) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, NewCompletion(), time.Millisecond, 1)
	c.Exit = func(int) {}
	c.Notify = func(chan<- os.Signal, ...os.Signal) {}
	c.Stop = func(chan<- os.Signal) {}
	c.Completion.Mark()

	c.Trigger()
	// completion and trigger are both ready; either way cancel runs at most once
	c.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, calls, 1)
}
