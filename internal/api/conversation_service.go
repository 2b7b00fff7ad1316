package api

import (
	"net/http"

	"github.com/matheus3301/fitmsg/internal/composer"
	"github.com/matheus3301/fitmsg/internal/contacts"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
)

// ConversationService serves the conversation list, the contact directory
// and the active thread. Threads are opened through the composer so that
// the draft follows the open conversation.
type ConversationService struct {
	store    *conversation.Store
	composer *composer.Composer
	logger   *zap.Logger
}

// NewConversationService creates a conversation service.
func NewConversationService(store *conversation.Store, comp *composer.Composer, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{store: store, composer: comp, logger: logger}
}

// Register mounts the service's routes.
func (s *ConversationService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/conversations", s.handleConversations)
	mux.HandleFunc("GET /v1/contacts", s.handleContacts)
	mux.HandleFunc("POST /v1/threads/{peer}", s.handleOpen)
	mux.HandleFunc("POST /v1/threads/{peer}/read", s.handleMarkRead)
	mux.HandleFunc("GET /v1/thread", s.handleThread)
	mux.HandleFunc("DELETE /v1/thread", s.handleClose)
}

func (s *ConversationService) handleConversations(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	list := snap.Conversations
	if r.URL.Query().Get("unread") == "true" {
		list = conversation.Unread(list)
	}
	v := ConversationsView{
		Generation:    snap.Generation,
		FetchedAt:     snap.FetchedAt,
		TotalUnread:   snap.UnreadTotal(),
		Conversations: make([]ConversationView, 0, len(list)),
	}
	for _, c := range list {
		v.Conversations = append(v.Conversations, conversationView(c))
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *ConversationService) handleContacts(w http.ResponseWriter, r *http.Request) {
	list := contacts.Search(s.store.Snapshot().Contacts, r.URL.Query().Get("q"))
	out := make([]ContactView, 0, len(list))
	for _, c := range list {
		out = append(out, contactView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *ConversationService) handleOpen(w http.ResponseWriter, r *http.Request) {
	peer, err := pathID(r, "peer")
	if err != nil {
		writeError(w, err)
		return
	}
	th, err := s.composer.Open(r.Context(), peer)
	if err != nil {
		s.logger.Debug("open thread failed", zap.Int64("peer", peer), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threadView(th, s.peerName(peer)))
}

func (s *ConversationService) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	peer, err := pathID(r, "peer")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.MarkRead(r.Context(), peer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ConversationService) handleThread(w http.ResponseWriter, _ *http.Request) {
	peer := s.store.ActivePeer()
	if peer == 0 {
		writeError(w, model.ErrNoActivePeer)
		return
	}
	writeJSON(w, http.StatusOK, threadView(s.store.Thread(), s.peerName(peer)))
}

func (s *ConversationService) handleClose(w http.ResponseWriter, _ *http.Request) {
	s.store.CloseThread()
	w.WriteHeader(http.StatusNoContent)
}

func (s *ConversationService) peerName(peer int64) string {
	if c, ok := s.store.Contact(peer); ok {
		return c.Name
	}
	return ""
}
