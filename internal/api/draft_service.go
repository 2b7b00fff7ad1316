package api

import (
	"net/http"

	"github.com/matheus3301/fitmsg/internal/composer"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
)

// DraftService drives the composer: recipient selection, replies, body edits
// and submission.
type DraftService struct {
	composer *composer.Composer
	store    *conversation.Store
	logger   *zap.Logger
}

// NewDraftService creates a draft service.
func NewDraftService(comp *composer.Composer, store *conversation.Store, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{composer: comp, store: store, logger: logger}
}

// Register mounts the service's routes.
func (s *DraftService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/draft", s.handleGet)
	mux.HandleFunc("DELETE /v1/draft", s.handleCancel)
	mux.HandleFunc("POST /v1/draft/recipient", s.handleRecipient)
	mux.HandleFunc("POST /v1/draft/reply", s.handleReply)
	mux.HandleFunc("PUT /v1/draft/body", s.handleBody)
	mux.HandleFunc("POST /v1/draft/submit", s.handleSubmit)
}

func (s *DraftService) view() DraftView {
	return draftView(s.composer.Draft(), string(s.composer.Mode()), s.composer.Sending())
}

func (s *DraftService) handleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *DraftService) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.composer.Cancel()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *DraftService) handleRecipient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PeerID int64 `json:"peer_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ct, ok := s.store.Contact(req.PeerID)
	if !ok {
		ct = model.Contact{ID: req.PeerID}
	}
	if err := s.composer.SelectRecipient(ct); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *DraftService) handleReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID int64 `json:"message_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.composer.ReplyTo(req.MessageID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *DraftService) handleBody(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.composer.SetBody(req.Body)
	writeJSON(w, http.StatusOK, s.view())
}

func (s *DraftService) handleSubmit(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.composer.Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("message sent", zap.Int64("message_id", receipt.MessageID))
	writeJSON(w, http.StatusOK, ReceiptView{MessageID: receipt.MessageID, SentAt: receipt.SentAt})
}
