// Package poll runs a refresh function on a fixed interval with an explicit
// start/stop lifecycle.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
)

// Func is one poll tick. Errors are logged; the loop keeps running.
type Func func(ctx context.Context) error

// Poller invokes a Func once on Start and then every interval until Stop.
// Ticks never overlap: a tick that fires while the previous one is still
// running is dropped by the ticker.
type Poller struct {
	name     string
	interval time.Duration
	fn       Func
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// New creates a stopped poller.
func New(name string, interval time.Duration, fn Func, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger.With(zap.String("poller", name)),
		trigger:  make(chan struct{}, 1),
	}
}

// Name returns the poller name.
func (p *Poller) Name() string { return p.name }

// Interval returns the configured interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start begins polling. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the loop and waits for the in-flight tick to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Trigger requests an out-of-schedule tick. Requests coalesce while one is pending.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-p.trigger:
			p.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	err := p.fn(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
	case model.IsSkippable(err):
		p.logger.Debug("poll tick skipped", zap.Error(err))
	default:
		p.logger.Warn("poll tick failed", zap.Error(err))
	}
}
