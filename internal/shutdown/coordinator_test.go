package shutdown

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStopIsMonotonic(t *testing.T) {
	c := New(testLogger())
	if c.Stopping() || c.State() != StateRunning {
		t.Fatal("new coordinator should be running")
	}
	if !c.Stop("first") {
		t.Fatal("first Stop should report the transition")
	}
	if c.Stop("second") {
		t.Fatal("second Stop should be a no-op")
	}
	if !c.Stopping() || c.State().String() != "STOPPING" {
		t.Fatalf("state=%s", c.State())
	}
	if c.Reason() != "first" {
		t.Fatalf("reason=%q", c.Reason())
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestContextCancelledOnStop(t *testing.T) {
	c := New(testLogger())
	ctx, cancel := c.Context(context.Background())
	defer cancel()

	c.Stop("test")
	if ctx.Err() == nil {
		t.Fatal("derived context still live after Stop returned")
	}
}

func TestWhileRunningRefusedAfterStop(t *testing.T) {
	c := New(testLogger())
	ran := false
	if !c.WhileRunning(func() { ran = true }) || !ran {
		t.Fatal("fn should run before Stop")
	}
	c.Stop("test")
	if c.WhileRunning(func() { t.Error("fn ran after Stop") }) {
		t.Fatal("WhileRunning reported a call after Stop")
	}
}

func TestNothingRunsOnceStopReturns(t *testing.T) {
	c := New(testLogger())
	ctx, cancel := c.Context(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls int
		wg    sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				c.WhileRunning(func() {
					mu.Lock()
					calls++
					mu.Unlock()
				})
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	c.Stop("test")
	mu.Lock()
	atStop := calls
	mu.Unlock()

	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != atStop {
		t.Fatalf("%d calls ran after Stop returned", calls-atStop)
	}
}

func TestContextIndependentOfOtherCancels(t *testing.T) {
	c := New(testLogger())
	ctx, cancel := c.Context(context.Background())
	cancel()
	<-ctx.Done()
	if c.Stopping() {
		t.Fatal("cancelling a derived context must not stop the coordinator")
	}
}

func TestAttachCancelledByStop(t *testing.T) {
	c := New(testLogger())
	ctx, release := c.Attach(context.Background())
	defer release()

	c.Stop("test")
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("attached context not cancelled by Stop")
	}
}

func TestAttachAfterStopIsAlreadyCancelled(t *testing.T) {
	c := New(testLogger())
	c.Stop("test")
	ctx, release := c.Attach(context.Background())
	defer release()
	if ctx.Err() == nil {
		t.Fatal("expected cancelled context")
	}
}

func TestReleaseDetachesToken(t *testing.T) {
	c := New(testLogger())
	ctx, release := c.Attach(context.Background())
	release()
	if ctx.Err() == nil {
		t.Fatal("release should cancel the attached context")
	}
	c.mu.Lock()
	n := len(c.tokens)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d tokens left after release", n)
	}
}

func TestListenFirstSignalStopsSecondForces(t *testing.T) {
	c := New(testLogger())
	ch := make(chan os.Signal, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.listen(context.Background(), ch)
	}()

	ch <- syscall.SIGINT
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("first signal did not stop the coordinator")
	}
	select {
	case <-c.Forced():
		t.Fatal("first signal must not force")
	default:
	}

	ch <- syscall.SIGTERM
	select {
	case <-c.Forced():
	case <-time.After(time.Second):
		t.Fatal("second signal did not force shutdown")
	}
	<-done
}

func TestListenReturnsOnContextDone(t *testing.T) {
	c := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.listen(ctx, make(chan os.Signal))
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listen did not return after ctx cancel")
	}
	if c.Stopping() {
		t.Fatal("ctx cancel must not stop the coordinator")
	}
}
