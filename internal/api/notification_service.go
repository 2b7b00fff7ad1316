package api

import (
	"context"
	"net/http"

	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/notify"
	"go.uber.org/zap"
)

// Refresher runs an immediate sync cycle.
type Refresher interface {
	RefreshNow(ctx context.Context) (notify.Feed, error)
}

// NotificationService serves the notification feed and on-demand refresh.
type NotificationService struct {
	agg       *notify.Aggregator
	store     *conversation.Store
	refresher Refresher
	logger    *zap.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(agg *notify.Aggregator, store *conversation.Store, refresher Refresher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{agg: agg, store: store, refresher: refresher, logger: logger}
}

// Register mounts the service's routes.
func (s *NotificationService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/notifications", s.handleFeed)
	mux.HandleFunc("POST /v1/notifications/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /v1/notifications/read-all", s.handleReadAll)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
}

// handleFeed filters the last derived feed; it never triggers a fetch.
func (s *NotificationService) handleFeed(w http.ResponseWriter, r *http.Request) {
	f := notify.ParseFilter(r.URL.Query().Get("filter"))
	writeJSON(w, http.StatusOK, feedView(s.agg.Filtered(f), f))
}

func (s *NotificationService) handleSelect(w http.ResponseWriter, r *http.Request) {
	sel, err := s.agg.Select(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	v := SelectionView{Item: itemView(sel.Item), Opened: sel.Opened}
	if sel.Opened {
		name := sel.Item.PeerName
		if c, ok := s.store.Contact(sel.Thread.PeerID); ok {
			name = c.Name
		}
		th := threadView(sel.Thread, name)
		v.Thread = &th
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *NotificationService) handleReadAll(w http.ResponseWriter, r *http.Request) {
	feed, err := s.agg.MarkAllRead(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedView(feed, notify.FilterAll))
}

func (s *NotificationService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	feed, err := s.refresher.RefreshNow(r.Context())
	if err != nil {
		s.logger.Warn("manual refresh failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedView(feed, notify.FilterAll))
}
