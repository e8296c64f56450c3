// Package shutdown turns termination signals into a context cancellation and
// gives the workflow a bounded grace period to finish before the process exits.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/bnema/swayproj/internal/logger"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sys/unix"
)

// ErrShutdownRequested is the cancellation cause set by the coordinator
var ErrShutdownRequested = errors.New("shutdown requested")

// Completion is a one-way work-completed flag
type Completion struct {
	once sync.Once
	done chan struct{}
}

// NewCompletion creates an unset completion
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Mark sets the flag. Only the first call has an effect.
func (c *Completion) Mark() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once Mark has been called
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Completed reports whether Mark has been called
func (c *Completion) Completed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Coordinator waits for a termination request, cancels the workflow once,
// waits up to Step*Steps for its completion, then calls Exit(0).
type Coordinator struct {
	Cancel     context.CancelCauseFunc
	Completion *Completion
	Step       time.Duration
	Steps      int

	Clock   clockwork.Clock
	Exit    func(code int)
	Signals []os.Signal
	Notify  func(c chan<- os.Signal, sig ...os.Signal)
	Stop    func(c chan<- os.Signal)

	trigger     chan struct{}
	triggerOnce sync.Once
	reason      string

	listenOnce   sync.Once
	unlistenOnce sync.Once
	sigCh        chan os.Signal
	quit         chan struct{}
}

// NewCoordinator wires a coordinator to the process signals and os.Exit
func NewCoordinator(cancel context.CancelCauseFunc, completion *Completion, step time.Duration, steps int) *Coordinator {
	return &Coordinator{
		Cancel:     cancel,
		Completion: completion,
		Step:       step,
		Steps:      steps,
		Clock:      clockwork.NewRealClock(),
		Exit:       os.Exit,
		Signals:    []os.Signal{unix.SIGINT, unix.SIGTERM},
		Notify:     signal.Notify,
		Stop:       signal.Stop,
		trigger:    make(chan struct{}),
		quit:       make(chan struct{}),
	}
}

// Trigger requests shutdown as if a signal had arrived
func (c *Coordinator) Trigger() {
	c.request("shutdown request")
}

func (c *Coordinator) request(reason string) {
	c.triggerOnce.Do(func() {
		c.reason = reason
		close(c.trigger)
	})
}

// Requested is closed once a signal or Trigger asked for shutdown
func (c *Coordinator) Requested() <-chan struct{} {
	return c.trigger
}

// Listen subscribes to the termination signals. Call it before slow startup
// work so that a signal arriving before Run is kept; Run calls it too.
func (c *Coordinator) Listen() {
	c.listenOnce.Do(func() {
		c.sigCh = make(chan os.Signal, 1)
		c.Notify(c.sigCh, c.Signals...)
		go func() {
			select {
			case sig := <-c.sigCh:
				c.request(sig.String())
			case <-c.quit:
			}
		}()
	})
}

// Unlisten drops the signal subscription. Safe to call more than once.
func (c *Coordinator) Unlisten() {
	c.unlistenOnce.Do(func() {
		if c.sigCh != nil {
			c.Stop(c.sigCh)
		}
		close(c.quit)
	})
}

// Run blocks until a termination request, workflow completion or ctx
// cancellation. It reports whether a shutdown was carried out; in that case
// Exit has been called.
func (c *Coordinator) Run(ctx context.Context) bool {
	c.Listen()
	defer c.Unlisten()

	select {
	case <-c.trigger:
	case <-c.Completion.Done():
		return false
	case <-ctx.Done():
		return false
	}

	logger.Infof("Received %s, shutting down...", c.reason)
	c.Cancel(ErrShutdownRequested)

	if c.await() {
		logger.Debug("Workflow finished cleanly")
	} else {
		logger.Warnf("Workflow still running after %s, exiting anyway", time.Duration(c.Steps)*c.Step)
	}

	logger.Info("Goodbye")
	c.Exit(0)
	return true
}

// await polls the completion flag every Step for at most Steps steps
func (c *Coordinator) await() bool {
	for i := 0; i < c.Steps; i++ {
		if c.Completion.Completed() {
			return true
		}
		select {
		case <-c.Completion.Done():
			return true
		case <-c.Clock.After(c.Step):
		}
	}
	return c.Completion.Completed()
}
