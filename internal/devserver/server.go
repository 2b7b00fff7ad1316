// Package devserver serves the studio REST contract from a local SQLite
// store. It backs local development and integration tests of the daemon.
package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/fitmsg/internal/store"
	"go.uber.org/zap"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// wireTimeLayout matches the backend's naive UTC ISO-8601 timestamps.
const wireTimeLayout = "2006-01-02T15:04:05.000000"

// Server is an http.Handler over the reference store.
type Server struct {
	db     *store.DB
	mux    *http.ServeMux
	logger *zap.Logger
}

// New builds the handler and registers all routes.
func New(db *store.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{db: db, mux: http.NewServeMux(), logger: logger}

	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/chat/messages/conversations", s.authed(s.handleConversations))
	s.mux.HandleFunc("GET /api/chat/messages/contacts/available", s.authed(s.handleContacts))
	s.mux.HandleFunc("GET /api/chat/messages/unread/count", s.authed(s.handleUnreadCount))
	s.mux.HandleFunc("POST /api/chat/messages/send", s.authed(s.handleSend))
	s.mux.HandleFunc("GET /api/chat/messages/{peer}", s.authed(s.handleThread))
	s.mux.HandleFunc("PUT /api/chat/messages/{peer}/read", s.authed(s.handleMarkRead))

	s.mux.HandleFunc("GET /api/trainer/trainees", s.authed(s.handleTrainees))

	s.mux.HandleFunc("GET /api/{role}/notifications", s.authed(s.handleNotifications))
	s.mux.HandleFunc("POST /api/{role}/notifications/{id}/read", s.authed(s.handleNotificationRead))
	s.mux.HandleFunc("PUT /api/{role}/notifications/mark-all-read", s.authed(s.handleMarkAllRead))
	return s
}

// ServeHTTP implements http.Handler with request id and access logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, reqID)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)),
	)
}

type userHandler func(w http.ResponseWriter, r *http.Request, u *store.User)

// authed resolves the bearer token to a user or answers 401.
func (s *Server) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		u, err := s.db.Authenticate(token)
		if err != nil {
			s.internalError(w, "authenticate", err)
			return
		}
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("handler failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func wireTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(wireTimeLayout)
	return &s
}
