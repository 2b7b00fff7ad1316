package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/matheus3301/fitmsg/internal/store"
	"go.uber.org/zap"
)

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, err := s.db.Refresh(req.RefreshToken)
	if err != nil {
		s.internalError(w, "refresh", err)
		return
	}
	if access == "" {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

type conversationJSON struct {
	UserID          int64   `json:"user_id"`
	UserName        string  `json:"user_name"`
	UserEmail       string  `json:"user_email"`
	UserRole        string  `json:"user_role"`
	LastMessage     *string `json:"last_message"`
	LastMessageTime *string `json:"last_message_time"`
	UnreadCount     int     `json:"unread_count"`
}

func (s *Server) handleConversations(w http.ResponseWriter, _ *http.Request, u *store.User) {
	convs, err := s.db.Conversations(u.ID)
	if err != nil {
		s.internalError(w, "conversations", err)
		return
	}
	out := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		last := c.LastMessage
		out = append(out, conversationJSON{
			UserID:          c.PeerID,
			UserName:        c.PeerName,
			UserEmail:       c.PeerEmail,
			UserRole:        c.PeerRole,
			LastMessage:     &last,
			LastMessageTime: wireTime(c.LastMessageAt),
			UnreadCount:     c.UnreadCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

type contactJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Label string `json:"label"`
}

func (s *Server) handleContacts(w http.ResponseWriter, _ *http.Request, u *store.User) {
	list, err := s.db.AvailableContacts(u)
	if err != nil {
		s.internalError(w, "contacts", err)
		return
	}
	out := make([]contactJSON, 0, len(list))
	for _, c := range list {
		out = append(out, contactJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": out})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, _ *http.Request, u *store.User) {
	n, err := s.db.UnreadCount(u.ID)
	if err != nil {
		s.internalError(w, "unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

type messageJSON struct {
	ID         int64   `json:"id"`
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	Message    string  `json:"message"`
	IsRead     bool    `json:"is_read"`
	IsMine     bool    `json:"is_mine"`
	CreatedAt  *string `json:"created_at"`
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request, u *store.User) {
	peer, ok := pathID(r, "peer")
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid user id")
		return
	}
	msgs, err := s.db.Thread(u.ID, peer)
	if err != nil {
		s.internalError(w, "thread", err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Message:    m.Body,
			IsRead:     m.IsRead,
			IsMine:     m.SenderID == u.ID,
			CreatedAt:  wireTime(m.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, u *store.User) {
	var req struct {
		ReceiverID int64  `json:"receiver_id"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Message cannot be empty")
		return
	}
	msg, err := s.db.SendMessage(u, req.ReceiverID, req.Message)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "Receiver not found")
		return
	}
	if err != nil {
		s.internalError(w, "send", err)
		return
	}
	s.logger.Debug("message stored", zap.Int64("id", msg.ID), zap.Int64("from", u.ID), zap.Int64("to", req.ReceiverID))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message_id": msg.ID,
		"sent_at":    wireTime(msg.CreatedAt),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, u *store.User) {
	peer, ok := pathID(r, "peer")
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid user id")
		return
	}
	n, err := s.db.MarkRead(u.ID, peer)
	if err != nil {
		s.internalError(w, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "messages_marked_read": n})
}

func (s *Server) handleTrainees(w http.ResponseWriter, _ *http.Request, u *store.User) {
	if u.Role != store.RoleTrainer {
		writeError(w, http.StatusForbidden, "Trainer access required")
		return
	}
	list, err := s.db.Trainees(u.ID)
	if err != nil {
		s.internalError(w, "trainees", err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, map[string]any{"id": t.ID, "user_id": t.ID, "name": t.Name, "email": t.Email})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trainees": out})
}

type notificationJSON struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	NotificationType string  `json:"notification_type"`
	Importance       string  `json:"importance"`
	IsRead           bool    `json:"is_read"`
	CreatedAt        *string `json:"created_at"`
}

// roleScoped rejects role paths that do not belong to the caller.
func roleScoped(w http.ResponseWriter, r *http.Request, u *store.User) bool {
	if !strings.EqualFold(r.PathValue("role"), u.Role) {
		writeError(w, http.StatusForbidden, "Not allowed for this role")
		return false
	}
	return true
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, u *store.User) {
	if !roleScoped(w, r, u) {
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))
	list, err := s.db.Notifications(u.ID, unreadOnly)
	if err != nil {
		s.internalError(w, "notifications", err)
		return
	}
	out := make([]notificationJSON, 0, len(list))
	for _, n := range list {
		out = append(out, notificationJSON{
			ID:               n.ID,
			Title:            n.Title,
			Message:          n.Message,
			NotificationType: n.Type,
			Importance:       n.Importance,
			IsRead:           n.IsRead,
			CreatedAt:        wireTime(n.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": out})
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request, u *store.User) {
	if !roleScoped(w, r, u) {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid notification id")
		return
	}
	found, err := s.db.MarkNotificationRead(u.ID, id)
	if err != nil {
		s.internalError(w, "notification read", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, u *store.User) {
	if !roleScoped(w, r, u) {
		return
	}
	n, err := s.db.MarkAllNotificationsRead(u.ID)
	if err != nil {
		s.internalError(w, "mark all read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": n})
}
