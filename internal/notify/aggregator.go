// Package notify derives the unified notification feed from the conversation
// store and the backend's system notifications.
package notify

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/bus"
	"github.com/matheus3301/fitmsg/internal/client"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the REST client the aggregator needs.
type Backend interface {
	UnreadCount(ctx context.Context) (int, error)
	Notifications(ctx context.Context, unreadOnly bool) ([]client.SystemNotification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Opener opens a peer's conversation the same way the conversation list does.
type Opener interface {
	Open(ctx context.Context, peerID int64) (conversation.Thread, error)
}

// Feed is the derived notification view. All counts come from the snapshot
// identified by Generation.
type Feed struct {
	Items         []model.NotificationItem
	TotalUnread   int
	MessageUnread int
	SystemUnread  int
	Generation    uint64
	Cycle         uint64
	UpdatedAt     time.Time
}

// Selection is the outcome of selecting a feed item.
type Selection struct {
	Item   model.NotificationItem
	Thread conversation.Thread
	Opened bool
}

// Aggregator owns the notification feed. It never mutates the conversation
// store; it re-derives whenever the store publishes a new snapshot.
type Aggregator struct {
	store   *conversation.Store
	backend Backend
	opener  Opener
	bus     *bus.Bus
	logger  *zap.Logger

	mu        sync.Mutex
	feed      Feed
	system    []model.NotificationItem
	msgUnread int
	unreadGen uint64
	cycles    uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an aggregator with an empty feed.
func New(store *conversation.Store, backend Backend, opener Opener, b *bus.Bus, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:   store,
		backend: backend,
		opener:  opener,
		bus:     b,
		logger:  logger,
		feed:    Feed{Items: []model.NotificationItem{}},
	}
}

// Start subscribes to store refreshes and re-derives the feed on each one.
// Without a bus there is nothing to follow and Start is a no-op.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil || a.bus == nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	ch, unsub := a.bus.Subscribe(bus.KindConversationsRefreshed, 16)

	go func(done chan struct{}) {
		defer close(done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if snap, ok := evt.Payload.(conversation.Snapshot); ok {
					a.rederive(snap)
				}
			case <-ctx.Done():
				return
			}
		}
	}(a.done)
}

// Stop ends the subscription and waits for it to drain.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Cycle runs one aggregation cycle: the store refresh, the unread-count
// endpoint and the system feed are fetched concurrently so that every count
// in the resulting feed describes the same moment. If the store refresh or
// the unread count fails, the previous feed is kept and the error returned. A
// failed system feed keeps the previous system items.
func (a *Aggregator) Cycle(ctx context.Context) (Feed, error) {
	var (
		snap      conversation.Snapshot
		stale     bool
		unread    int
		system    []client.SystemNotification
		systemErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = a.store.Refresh(gctx)
		if model.IsStale(err) {
			snap, stale = a.store.Snapshot(), true
			return nil
		}
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = a.backend.UnreadCount(gctx)
		return err
	})
	g.Go(func() error {
		system, systemErr = a.backend.Notifications(gctx, false)
		return nil
	})
	if err := g.Wait(); err != nil {
		return a.Feed(), err
	}

	a.mu.Lock()
	if systemErr != nil {
		a.logger.Warn("system notifications unavailable, keeping previous", zap.Error(systemErr))
	} else {
		a.system = FromSystem(system)
	}
	if !stale && snap.Generation >= a.feed.Generation {
		a.msgUnread, a.unreadGen = unread, snap.Generation
	}
	if snap.Generation < a.feed.Generation {
		snap = a.store.Snapshot()
	}
	a.cycles++
	feed := a.deriveLocked(snap)
	a.mu.Unlock()

	a.publish(feed)
	return feed, nil
}

// Feed returns the current feed.
func (a *Aggregator) Feed() Feed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyFeed(a.feed)
}

// Filtered returns the current feed restricted to f. It never fetches.
func (a *Aggregator) Filtered(f Filter) Feed {
	feed := a.Feed()
	feed.Items = Apply(feed.Items, f)
	return feed
}

// Item looks up a feed item by id.
func (a *Aggregator) Item(id string) (model.NotificationItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, it := range a.feed.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.NotificationItem{}, false
}

// Select acts on a feed item. Message items open the peer's conversation
// through the shared Opener; system items are marked read.
func (a *Aggregator) Select(ctx context.Context, id string) (Selection, error) {
	item, ok := a.Item(id)
	if !ok {
		return Selection{}, fmt.Errorf("notification %s: %w", id, model.ErrNotFound)
	}
	if item.Type == model.NotificationMessage {
		th, err := a.opener.Open(ctx, item.PeerID)
		if err != nil {
			return Selection{Item: item}, err
		}
		return Selection{Item: item, Thread: th, Opened: true}, nil
	}
	if item.IsRead {
		return Selection{Item: item}, nil
	}
	if err := a.backend.MarkNotificationRead(ctx, item.NotificationID); err != nil {
		return Selection{Item: item}, err
	}

	a.mu.Lock()
	for i := range a.system {
		if a.system[i].NotificationID == item.NotificationID {
			a.system[i].IsRead = true
		}
	}
	feed := a.deriveLocked(a.store.Snapshot())
	a.mu.Unlock()
	a.publish(feed)

	item.IsRead = true
	return Selection{Item: item}, nil
}

// MarkAllRead marks every system notification read and runs a new cycle.
func (a *Aggregator) MarkAllRead(ctx context.Context) (Feed, error) {
	if err := a.backend.MarkAllNotificationsRead(ctx); err != nil {
		return a.Feed(), err
	}
	return a.Cycle(ctx)
}

// rederive applies a snapshot published by the store unless the feed already
// reflects that generation or a newer one.
func (a *Aggregator) rederive(snap conversation.Snapshot) {
	a.mu.Lock()
	if snap.Generation <= a.feed.Generation {
		a.mu.Unlock()
		return
	}
	feed := a.deriveLocked(snap)
	a.mu.Unlock()
	a.publish(feed)
}

// deriveLocked rebuilds the feed from scratch. The message unread count is the
// endpoint's value when it was fetched for this snapshot, otherwise the
// snapshot's own sum.
func (a *Aggregator) deriveLocked(snap conversation.Snapshot) Feed {
	msgUnread := snap.UnreadTotal()
	if a.unreadGen == snap.Generation && snap.Generation != 0 {
		msgUnread = a.msgUnread
	}
	items := Merge(snap.Conversations, a.system)
	sysUnread := UnreadSystem(items)
	a.feed = Feed{
		Items:         items,
		TotalUnread:   msgUnread + sysUnread,
		MessageUnread: msgUnread,
		SystemUnread:  sysUnread,
		Generation:    snap.Generation,
		Cycle:         a.cycles,
		UpdatedAt:     time.Now(),
	}
	return copyFeed(a.feed)
}

func (a *Aggregator) publish(feed Feed) {
	if a.bus != nil {
		a.bus.Emit(bus.KindNotificationsUpdated, feed)
	}
}

func copyFeed(f Feed) Feed {
	f.Items = slices.Clone(f.Items)
	return f
}
