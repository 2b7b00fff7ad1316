package api

import (
	"net/http"
	"time"

	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/notify"
	"github.com/matheus3301/fitmsg/internal/status"
)

// StatusService reports the daemon's sync state.
type StatusService struct {
	profile string
	role    string
	machine *status.Machine
	store   *conversation.Store
	agg     *notify.Aggregator
	started time.Time
}

// NewStatusService creates a status service for a profile.
func NewStatusService(profile, role string, m *status.Machine, store *conversation.Store, agg *notify.Aggregator) *StatusService {
	return &StatusService{profile: profile, role: role, machine: m, store: store, agg: agg, started: time.Now()}
}

// Register mounts the service's routes.
func (s *StatusService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", s.handleStatus)
}

func (s *StatusService) handleStatus(w http.ResponseWriter, _ *http.Request) {
	info := s.machine.Info()
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, StatusView{
		Profile:       s.profile,
		Role:          s.role,
		State:         info.State,
		Since:         info.Since,
		StartedAt:     s.started,
		Generation:    snap.Generation,
		FetchedAt:     snap.FetchedAt,
		Conversations: len(snap.Conversations),
		Contacts:      len(snap.Contacts),
		TotalUnread:   s.agg.Feed().TotalUnread,
		ActivePeer:    s.store.ActivePeer(),
		LastError:     info.LastError,
	})
}
