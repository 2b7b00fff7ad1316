package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPollerRunsImmediatelyAndOnInterval(t *testing.T) {
	var n atomic.Int32
	logger, _ := zap.NewDevelopment()
	p := New("conversations", 20*time.Millisecond, func(context.Context) error {
		n.Add(1)
		return nil
	}, logger)

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return n.Load() >= 3 })
}

func TestPollerStopHaltsTicks(t *testing.T) {
	var n atomic.Int32
	p := New("notifications", 10*time.Millisecond, func(context.Context) error {
		n.Add(1)
		return nil
	}, nil)

	p.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 1 })
	p.Stop()
	if p.Running() {
		t.Fatal("poller still running after Stop")
	}

	after := n.Load()
	time.Sleep(50 * time.Millisecond)
	if got := n.Load(); got != after {
		t.Errorf("ticks after stop: %d -> %d", after, got)
	}
	p.Stop()
}

func TestPollerStopCancelsInFlightTick(t *testing.T) {
	started := make(chan struct{})
	p := New("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)

	p.Start(context.Background())
	<-started
	p.Stop()
}

func TestPollerTrigger(t *testing.T) {
	var n atomic.Int32
	p := New("manual", time.Hour, func(context.Context) error {
		n.Add(1)
		return nil
	}, nil)

	p.Start(context.Background())
	defer p.Stop()
	waitFor(t, func() bool { return n.Load() == 1 })

	p.Trigger()
	waitFor(t, func() bool { return n.Load() == 2 })
}

func TestPollerKeepsRunningAfterErrors(t *testing.T) {
	var n atomic.Int32
	p := New("failing", 10*time.Millisecond, func(context.Context) error {
		n.Add(1)
		return errors.New("backend down")
	}, nil)

	p.Start(context.Background())
	defer p.Stop()
	waitFor(t, func() bool { return n.Load() >= 3 })
}

func TestPollerStartTwiceIsNoop(t *testing.T) {
	var n atomic.Int32
	p := New("twice", time.Hour, func(context.Context) error {
		n.Add(1)
		return nil
	}, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 1 })
	p.Stop()

	if got := n.Load(); got != 1 {
		t.Errorf("got %d ticks, want 1", got)
	}
}
