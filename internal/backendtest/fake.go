// Package backendtest provides an in-memory backend for tests of the sync core.
package backendtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/client"
	"github.com/matheus3301/fitmsg/internal/model"
)

// Call records one backend invocation.
type Call struct {
	Op   string
	Peer int64
	Body string
}

// Fake implements the backend interfaces of the conversation store and the
// notification aggregator. Zero value is ready to use.
type Fake struct {
	// SelfID is the sender id stamped on sent messages.
	SelfID int64
	// SentAt fixes the send timestamp; zero means now.
	SentAt time.Time

	mu       sync.Mutex
	convs    []model.ConversationSummary
	generic  []model.Contact
	roster   []model.Contact
	threads  map[int64][]model.Message
	system   []client.SystemNotification
	unread   *int
	errs     map[string]error
	gates    map[int64]chan struct{}
	convGate chan struct{}
	calls    []Call
	nextID   int64
}

// SetConversations replaces the conversation list.
func (f *Fake) SetConversations(list ...model.ConversationSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs = list
}

// SetContacts replaces the generic contacts.
func (f *Fake) SetContacts(list ...model.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generic = list
}

// SetRoster replaces the trainer roster.
func (f *Fake) SetRoster(list ...model.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roster = list
}

// SetThread replaces the messages exchanged with peer.
func (f *Fake) SetThread(peer int64, msgs ...model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threads == nil {
		f.threads = make(map[int64][]model.Message)
	}
	f.threads[peer] = msgs
}

// SetSystem replaces the system notification feed.
func (f *Fake) SetSystem(list ...client.SystemNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system = list
}

// SetUnread overrides the unread-count endpoint. By default it returns the sum
// of the conversations' unread counts.
func (f *Fake) SetUnread(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = &n
}

// Fail makes op return err until cleared with a nil err.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Gate blocks Messages(peer) until the returned release func is called.
func (f *Fake) Gate(peer int64) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[int64]chan struct{})
	}
	ch := make(chan struct{})
	f.gates[peer] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// GateConversations blocks the next Conversations call until the returned
// release func is called. Later calls are not blocked.
func (f *Fake) GateConversations() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.convGate = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the recorded calls, optionally filtered by op.
func (f *Fake) Calls(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op == "" {
		return slices.Clone(f.calls)
	}
	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(op string, peer int64, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Peer: peer, Body: body})
	return f.errs[op]
}

func (f *Fake) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	err := f.record("conversations", 0, "")
	f.mu.Lock()
	gate := f.convGate
	f.convGate = nil
	convs := slices.Clone(f.convs)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (f *Fake) Contacts(ctx context.Context) ([]model.Contact, error) {
	if err := f.record("contacts", 0, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.generic), nil
}

func (f *Fake) Trainees(ctx context.Context) ([]model.Contact, error) {
	if err := f.record("trainees", 0, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.roster), nil
}

func (f *Fake) Messages(ctx context.Context, peerID int64) ([]model.Message, error) {
	err := f.record("messages", peerID, "")
	f.mu.Lock()
	gate := f.gates[peerID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.threads[peerID]), nil
}

func (f *Fake) SendMessage(ctx context.Context, receiverID int64, body string) (model.SendReceipt, error) {
	if err := f.record("send", receiverID, body); err != nil {
		return model.SendReceipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := 1000 + f.nextID
	sentAt := f.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	if f.threads == nil {
		f.threads = make(map[int64][]model.Message)
	}
	f.threads[receiverID] = append(f.threads[receiverID], model.Message{
		ID: id, SenderID: f.SelfID, ReceiverID: receiverID, Body: body, CreatedAt: sentAt, IsMine: true,
	})
	return model.SendReceipt{MessageID: id, SentAt: sentAt}, nil
}

func (f *Fake) MarkRead(ctx context.Context, peerID int64) error {
	if err := f.record("mark_read", peerID, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.convs {
		if f.convs[i].PeerID == peerID {
			f.convs[i].UnreadCount = 0
		}
	}
	return nil
}

func (f *Fake) UnreadCount(ctx context.Context) (int, error) {
	if err := f.record("unread", 0, ""); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unread != nil {
		return *f.unread, nil
	}
	n := 0
	for _, c := range f.convs {
		n += c.UnreadCount
	}
	return n, nil
}

func (f *Fake) Notifications(ctx context.Context, unreadOnly bool) ([]client.SystemNotification, error) {
	if err := f.record("notifications", 0, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.SystemNotification
	for _, n := range f.system {
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *Fake) MarkNotificationRead(ctx context.Context, id int64) error {
	if err := f.record("notification_read", id, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.system {
		if f.system[i].ID == id {
			f.system[i].IsRead = true
		}
	}
	return nil
}

func (f *Fake) MarkAllNotificationsRead(ctx context.Context) error {
	if err := f.record("notifications_read_all", 0, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.system {
		f.system[i].IsRead = true
	}
	return nil
}
