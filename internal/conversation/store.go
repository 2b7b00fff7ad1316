// Package conversation owns the conversation list and the active thread. It is
// the only mutator of conversation and message state; every other component
// reads snapshots and re-derives on conversations.* events.
package conversation

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/fitmsg/internal/bus"
	"github.com/matheus3301/fitmsg/internal/contacts"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the REST client the store needs.
type Backend interface {
	Conversations(ctx context.Context) ([]model.ConversationSummary, error)
	Contacts(ctx context.Context) ([]model.Contact, error)
	Trainees(ctx context.Context) ([]model.Contact, error)
	Messages(ctx context.Context, peerID int64) ([]model.Message, error)
	SendMessage(ctx context.Context, receiverID int64, body string) (model.SendReceipt, error)
	MarkRead(ctx context.Context, peerID int64) error
}

// Snapshot is one atomically applied conversation refresh.
type Snapshot struct {
	Generation    uint64
	Conversations []model.ConversationSummary
	Contacts      []model.Contact
	FetchedAt     time.Time
}

// Thread is the active peer's message list.
type Thread struct {
	PeerID   int64
	Messages []model.Message
	Loading  bool
	// NewestID is the id consumers scroll to after a load.
	NewestID int64
	LoadedAt time.Time
	Err      error
}

// Store holds conversation summaries, the resolved contact directory and at
// most one active thread.
type Store struct {
	backend Backend
	role    model.Role
	bus     *bus.Bus
	logger  *zap.Logger

	mu         sync.Mutex
	snap       Snapshot
	roster     []model.Contact
	generic    []model.Contact
	refreshSeq uint64
	appliedSeq uint64
	active     int64
	threadSeq  uint64
	thread     Thread
}

// New creates an empty store. role decides whether the trainer roster is fetched.
func New(backend Backend, role model.Role, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		role:    role,
		bus:     b,
		logger:  logger,
		snap: Snapshot{
			Conversations: []model.ConversationSummary{},
			Contacts:      []model.Contact{},
		},
	}
}

// Refresh fetches conversations, generic contacts and, for trainers, the roster
// in parallel and replaces the snapshot wholesale. On error the previous
// snapshot is kept and returned with the error. A roster failure alone keeps
// the previous roster.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	s.mu.Unlock()

	var (
		convs     []model.ConversationSummary
		generic   []model.Contact
		roster    []model.Contact
		rosterErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = s.backend.Conversations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		generic, err = s.backend.Contacts(gctx)
		return err
	})
	if s.role == model.RoleTrainer {
		g.Go(func() error {
			roster, rosterErr = s.backend.Trainees(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if seq < s.appliedSeq {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("discarding stale refresh", zap.Uint64("seq", seq))
		return snap, &model.StaleResponseError{Resource: "conversations", Seq: seq}
	}
	if s.role == model.RoleTrainer {
		if rosterErr != nil {
			s.logger.Warn("roster fetch failed, keeping previous roster", zap.Error(rosterErr))
		} else {
			s.roster = roster
		}
	}
	if convs == nil {
		convs = []model.ConversationSummary{}
	}
	s.generic = generic
	s.appliedSeq = seq
	s.snap = Snapshot{
		Generation:    s.snap.Generation + 1,
		Conversations: convs,
		Contacts:      contacts.Resolve(s.roster, s.generic),
		FetchedAt:     time.Now(),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("conversations refreshed",
		zap.Uint64("generation", snap.Generation),
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("contacts", len(snap.Contacts)),
	)
	s.publish(bus.KindConversationsRefreshed, snap)
	return snap, nil
}

// OpenThread makes peerID the active peer and loads its full thread. The
// result is applied only if no newer OpenThread started and peerID is still
// the active peer when the response arrives; otherwise it is discarded with a
// StaleResponseError.
func (s *Store) OpenThread(ctx context.Context, peerID int64) (Thread, error) {
	if peerID <= 0 {
		return Thread{}, &model.ValidationError{Field: "peer", Reason: "must be a positive id"}
	}

	s.mu.Lock()
	s.threadSeq++
	seq := s.threadSeq
	s.active = peerID
	if s.thread.PeerID != peerID {
		s.thread = Thread{PeerID: peerID, Messages: []model.Message{}}
	}
	s.thread.Loading = true
	s.mu.Unlock()

	msgs, err := s.backend.Messages(ctx, peerID)

	s.mu.Lock()
	if seq != s.threadSeq || s.active != peerID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale thread", zap.Int64("peer", peerID), zap.Uint64("seq", seq))
		return Thread{}, &model.StaleResponseError{Resource: "thread", Seq: seq}
	}
	if err != nil {
		s.thread.Loading = false
		s.thread.Err = err
		t := s.threadLocked()
		s.mu.Unlock()
		s.publish(bus.KindThreadFailed, t)
		return t, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	var newest int64
	if n := len(msgs); n > 0 {
		newest = msgs[n-1].ID
	}
	s.thread = Thread{
		PeerID:   peerID,
		Messages: msgs,
		NewestID: newest,
		LoadedAt: time.Now(),
	}
	t := s.threadLocked()
	s.mu.Unlock()

	s.publish(bus.KindThreadLoaded, t)
	return t, nil
}

// CloseThread clears the active peer. In-flight thread loads become stale.
func (s *Store) CloseThread() {
	s.mu.Lock()
	s.active = 0
	s.threadSeq++
	s.thread = Thread{}
	s.mu.Unlock()
}

// Send posts body to peerID. Empty bodies are rejected before any network
// call. On success the conversation list is refreshed and, if peerID's thread
// is active, the thread is reloaded; failures of those follow-ups are logged.
func (s *Store) Send(ctx context.Context, peerID int64, body string) (model.SendReceipt, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return model.SendReceipt{}, &model.ValidationError{Field: "body", Reason: "message is empty"}
	}
	if peerID <= 0 {
		return model.SendReceipt{}, &model.ValidationError{Field: "recipient", Reason: "no recipient selected"}
	}

	receipt, err := s.backend.SendMessage(ctx, peerID, text)
	if err != nil {
		return model.SendReceipt{}, err
	}
	s.logger.Info("message sent", zap.Int64("peer", peerID), zap.Int64("message_id", receipt.MessageID))
	s.publish(bus.KindMessageSent, receipt)

	s.followUp(ctx, peerID)
	return receipt, nil
}

// MarkRead marks peerID's inbound messages read and refreshes the list.
func (s *Store) MarkRead(ctx context.Context, peerID int64) error {
	if err := s.backend.MarkRead(ctx, peerID); err != nil {
		return err
	}
	s.followUp(ctx, peerID)
	return nil
}

func (s *Store) followUp(ctx context.Context, peerID int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.Refresh(gctx); err != nil && !model.IsStale(err) {
			s.logger.Warn("refresh after write failed", zap.Error(err))
		}
		return nil
	})
	if s.ActivePeer() == peerID {
		g.Go(func() error {
			if _, err := s.OpenThread(gctx, peerID); err != nil && !model.IsStale(err) {
				s.logger.Warn("thread reload after write failed", zap.Int64("peer", peerID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Snapshot returns the latest applied snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Thread returns the active thread.
func (s *Store) Thread() Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadLocked()
}

// ActivePeer returns the active peer id, or zero.
func (s *Store) ActivePeer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Conversation returns the summary for peerID from the latest snapshot.
func (s *Store) Conversation(peerID int64) (model.ConversationSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.snap.Conversations {
		if c.PeerID == peerID {
			return c, true
		}
	}
	return model.ConversationSummary{}, false
}

// Contact looks peerID up in the resolved directory, falling back to the
// conversation list.
func (s *Store) Contact(peerID int64) (model.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := contacts.Find(s.snap.Contacts, peerID); ok {
		return c, true
	}
	for _, c := range s.snap.Conversations {
		if c.PeerID == peerID {
			return model.Contact{ID: c.PeerID, Name: c.PeerName, Email: c.PeerEmail, Role: c.PeerRole}, true
		}
	}
	return model.Contact{}, false
}

// Message finds a message in the active thread.
func (s *Store) Message(id int64) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.thread.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

func (s *Store) snapshotLocked() Snapshot {
	snap := s.snap
	snap.Conversations = slices.Clone(s.snap.Conversations)
	snap.Contacts = slices.Clone(s.snap.Contacts)
	return snap
}

func (s *Store) threadLocked() Thread {
	t := s.thread
	t.Messages = slices.Clone(s.thread.Messages)
	return t
}

func (s *Store) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}
