// Package shutdown turns process signals and explicit stop requests into a
// single, monotonic cancellation that every loop in the process observes.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

type State int32

const (
	StateRunning State = iota
	StateStopping
)

func (s State) String() string {
	if s == StateStopping {
		return "STOPPING"
	}
	return "RUNNING"
}

// Coordinator moves RUNNING -> STOPPING exactly once. Loops observe the
// transition through Done or a context from Context; they are never
// interrupted from outside.
type Coordinator struct {
	logger *slog.Logger

	gate      sync.RWMutex
	state     atomic.Int32
	done      chan struct{}
	forced    chan struct{}
	stopOnce  sync.Once
	forceOnce sync.Once

	mu     sync.Mutex
	reason string
	nextID uint64
	tokens map[uint64]context.CancelFunc
}

func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		done:   make(chan struct{}),
		forced: make(chan struct{}),
		tokens: make(map[uint64]context.CancelFunc),
	}
}

// Stop enters STOPPING and cancels every attached context before it
// returns. It reports whether this call made the transition.
func (c *Coordinator) Stop(reason string) bool {
	first := false
	c.stopOnce.Do(func() {
		first = true

		// Waits out any WhileRunning call in progress.
		c.gate.Lock()
		c.state.Store(int32(StateStopping))
		c.gate.Unlock()

		c.mu.Lock()
		c.reason = reason
		tokens := c.tokens
		c.tokens = nil
		c.mu.Unlock()

		close(c.done)
		c.logger.Info("shutdown requested", "reason", reason, "attached", len(tokens))

		for _, cancel := range tokens {
			cancel()
		}
	})
	return first
}

// WhileRunning calls fn unless the coordinator is stopping and reports
// whether fn ran. Stop waits for calls in progress, so nothing runs through
// here once Stop has returned. fn must not call Stop.
func (c *Coordinator) WhileRunning(fn func()) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.Stopping() {
		return false
	}
	fn()
	return true
}

func (c *Coordinator) State() State { return State(c.state.Load()) }

func (c *Coordinator) Stopping() bool { return c.State() == StateStopping }

// Done is closed once Stop has been called.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Forced is closed when a second signal asks to skip the grace period.
func (c *Coordinator) Forced() <-chan struct{} { return c.forced }

func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Context returns a child of parent that Stop cancels before returning.
func (c *Coordinator) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, release := c.Attach(parent)
	return ctx, context.CancelFunc(release)
}

// Attach registers a per-connection token. Stop cancels the returned
// context, which is how a read blocked on the network gets released. The
// caller must call release when the connection is finished.
func (c *Coordinator) Attach(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.tokens == nil {
		c.mu.Unlock()
		cancel()
		return ctx, func() {}
	}
	id := c.nextID
	c.nextID++
	c.tokens[id] = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if c.tokens != nil {
			delete(c.tokens, id)
		}
		c.mu.Unlock()
		cancel()
	}
}

func (c *Coordinator) force() {
	c.forceOnce.Do(func() { close(c.forced) })
}

// Listen translates the given signals into Stop. A second signal closes
// Forced. It returns when ctx is done or shutdown has been forced.
func (c *Coordinator) Listen(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	c.listen(ctx, ch)
}

func (c *Coordinator) listen(ctx context.Context, ch <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			if c.Stop("signal " + sig.String()) {
				continue
			}
			c.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig.String())
			c.force()
			return
		}
	}
}
