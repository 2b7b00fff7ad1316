package client

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/matheus3301/fitmsg/internal/contacts"
	"github.com/matheus3301/fitmsg/internal/model"
)

// wireTime accepts RFC 3339 and the backend's naive ISO-8601 timestamps.
// Anything unparsable decodes to the zero time instead of failing the payload.
type wireTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.Time = ParseTime(s)
	return nil
}

// ParseTime parses a backend timestamp; naive values are taken as UTC.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

type conversationsResponse struct {
	Conversations []conversationRow `json:"conversations"`
}

type conversationRow struct {
	UserID          int64    `json:"user_id"`
	UserName        string   `json:"user_name"`
	UserEmail       string   `json:"user_email"`
	UserRole        string   `json:"user_role"`
	LastMessage     *string  `json:"last_message"`
	LastMessageTime wireTime `json:"last_message_time"`
	UnreadCount     int      `json:"unread_count"`
}

func (r conversationRow) toModel() model.ConversationSummary {
	last := ""
	if r.LastMessage != nil {
		last = *r.LastMessage
	}
	unread := r.UnreadCount
	if unread < 0 {
		unread = 0
	}
	return model.ConversationSummary{
		PeerID:        r.UserID,
		PeerName:      r.UserName,
		PeerEmail:     r.UserEmail,
		PeerRole:      model.ParseRole(r.UserRole),
		LastMessage:   last,
		LastMessageAt: r.LastMessageTime.Time,
		UnreadCount:   unread,
	}
}

type contactsResponse struct {
	Contacts []contactRow `json:"contacts"`
}

type contactRow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Label string `json:"label"`
}

func (r contactRow) toModel() model.Contact {
	return model.Contact{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Role:  model.ParseRole(r.Role),
		Label: r.Label,
	}
}

type traineesResponse struct {
	Trainees []traineeRow `json:"trainees"`
}

type traineeRow struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	User   *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

func (r traineeRow) toRow() contacts.TraineeRow {
	name, email := r.Name, r.Email
	if r.User != nil {
		if name == "" {
			name = r.User.Name
		}
		if email == "" {
			email = r.User.Email
		}
	}
	return contacts.TraineeRow{ID: r.ID, UserID: r.UserID, Name: name, Email: email}
}

type messagesResponse struct {
	Messages []messageRow `json:"messages"`
}

type messageRow struct {
	ID         int64    `json:"id"`
	SenderID   int64    `json:"sender_id"`
	ReceiverID int64    `json:"receiver_id"`
	Message    string   `json:"message"`
	IsRead     bool     `json:"is_read"`
	IsMine     *bool    `json:"is_mine"`
	CreatedAt  wireTime `json:"created_at"`
	SenderName string   `json:"sender_name"`
	SenderRole string   `json:"sender_role"`
}

// toModel falls back to comparing the sender with self when the backend
// omits is_mine.
func (r messageRow) toModel(self int64) model.Message {
	mine := self != 0 && r.SenderID == self
	if r.IsMine != nil {
		mine = *r.IsMine
	}
	return model.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Body:       r.Message,
		CreatedAt:  r.CreatedAt.Time,
		IsMine:     mine,
		IsRead:     r.IsRead,
		SenderName: r.SenderName,
		SenderRole: model.ParseRole(r.SenderRole),
	}
}

type sendRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Message    string `json:"message"`
}

type sendResponse struct {
	Status    string   `json:"status"`
	MessageID int64    `json:"message_id"`
	SentAt    wireTime `json:"sent_at"`
}

type unreadResponse struct {
	UnreadCount int `json:"unread_count"`
}

type notificationsResponse struct {
	Notifications []notificationRow `json:"notifications"`
}

type notificationRow struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Message          string   `json:"message"`
	NotificationType string   `json:"notification_type"`
	Type             string   `json:"type"`
	Importance       string   `json:"importance"`
	IsRead           bool     `json:"is_read"`
	CreatedAt        wireTime `json:"created_at"`
}

// SystemNotification is a backend notification before feed normalization.
type SystemNotification struct {
	ID         int64
	Title      string
	Body       string
	Type       string
	Importance string
	IsRead     bool
	CreatedAt  time.Time
}

func (r notificationRow) toSystem() SystemNotification {
	kind := r.NotificationType
	if kind == "" {
		kind = r.Type
	}
	return SystemNotification{
		ID:         r.ID,
		Title:      r.Title,
		Body:       r.Message,
		Type:       strings.ToLower(strings.TrimSpace(kind)),
		Importance: r.Importance,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt.Time,
	}
}
