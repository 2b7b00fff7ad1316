// Package sync runs the polling loops that keep the conversation store and the
// notification feed current, and reports their health as a status.
package sync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"github.com/matheus3301/fitmsg/internal/notify"
	"github.com/matheus3301/fitmsg/internal/poll"
	"github.com/matheus3301/fitmsg/internal/status"
	"go.uber.org/zap"
)

const (
	sourceConversations = "conversations"
	sourceNotifications = "notifications"
)

// Intervals are the polling cadences.
type Intervals struct {
	Conversations time.Duration
	Notifications time.Duration
}

// DefaultIntervals poll conversations every 15s and notifications every 30s.
var DefaultIntervals = Intervals{
	Conversations: 15 * time.Second,
	Notifications: 30 * time.Second,
}

// Engine owns the two pollers. Conversation ticks refresh the store; the
// notification tick runs a full aggregation cycle.
type Engine struct {
	store  *conversation.Store
	agg    *notify.Aggregator
	status *status.Machine
	logger *zap.Logger

	convPoll  *poll.Poller
	notifPoll *poll.Poller

	mu      sync.Mutex
	running bool
	failing map[string]error
}

// NewEngine creates a stopped engine.
func NewEngine(store *conversation.Store, agg *notify.Aggregator, st *status.Machine, iv Intervals, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if iv.Conversations <= 0 {
		iv.Conversations = DefaultIntervals.Conversations
	}
	if iv.Notifications <= 0 {
		iv.Notifications = DefaultIntervals.Notifications
	}
	e := &Engine{
		store:   store,
		agg:     agg,
		status:  st,
		logger:  logger,
		failing: make(map[string]error),
	}
	e.convPoll = poll.New(sourceConversations, iv.Conversations, e.conversationsTick, logger)
	e.notifPoll = poll.New(sourceNotifications, iv.Notifications, e.notificationsTick, logger)
	return e
}

// Start begins polling. The first tick of each poller runs immediately.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	clear(e.failing)
	e.mu.Unlock()

	if e.status.Current() == status.Stopped {
		_ = e.status.Transition(status.Idle)
	}
	if err := e.status.Transition(status.Syncing); err != nil {
		e.logger.Warn("status transition", zap.Error(err))
	}
	e.agg.Start(ctx)
	e.convPoll.Start(ctx)
	e.notifPoll.Start(ctx)
	e.logger.Info("sync engine started",
		zap.Duration("conversations", e.convPoll.Interval()),
		zap.Duration("notifications", e.notifPoll.Interval()),
	)
}

// Stop halts both pollers and waits for in-flight ticks to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.convPoll.Stop()
	e.notifPoll.Stop()
	e.agg.Stop()
	if err := e.status.Transition(status.Stopped); err != nil {
		e.logger.Warn("status transition", zap.Error(err))
	}
	e.logger.Info("sync engine stopped")
}

// RefreshNow runs an aggregation cycle on behalf of a user. Unlike background
// ticks, every failure is returned, timeouts included.
func (e *Engine) RefreshNow(ctx context.Context) (notify.Feed, error) {
	feed, err := e.agg.Cycle(ctx)
	e.observe(sourceNotifications, err)
	if err == nil {
		e.observe(sourceConversations, nil)
	}
	return feed, err
}

// TriggerConversations asks the conversation poller for an early tick.
func (e *Engine) TriggerConversations() {
	e.convPoll.Trigger()
}

func (e *Engine) conversationsTick(ctx context.Context) error {
	_, err := e.store.Refresh(ctx)
	if model.IsStale(err) {
		return nil
	}
	e.observe(sourceConversations, err)
	return err
}

func (e *Engine) notificationsTick(ctx context.Context) error {
	_, err := e.agg.Cycle(ctx)
	e.observe(sourceNotifications, err)
	return err
}

// observe folds a tick outcome into the status. Skipped ticks leave it as is.
func (e *Engine) observe(source string, err error) {
	if err != nil && model.IsSkippable(err) {
		return
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	if err == nil {
		delete(e.failing, source)
	} else {
		e.failing[source] = err
	}
	next, cause := status.Ready, error(nil)
	for _, ferr := range e.failing {
		cause = ferr
		if isUnauthorized(ferr) {
			next = status.AuthRequired
			break
		}
		next = status.Degraded
	}
	e.mu.Unlock()

	if err := e.status.Settle(next, cause); err != nil {
		e.logger.Debug("status transition", zap.Error(err))
	}
}

func isUnauthorized(err error) bool {
	var se *model.ServerError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}
