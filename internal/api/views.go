// Package api exposes the daemon's state and actions as JSON over HTTP. The
// daemon serves it on the profile's unix socket; fitmsgctl is the client.
package api

import (
	"time"

	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
	"github.com/matheus3301/fitmsg/internal/notify"
	"github.com/matheus3301/fitmsg/internal/status"
)

// StatusView describes the daemon and its sync state.
type StatusView struct {
	Profile       string       `json:"profile"`
	Role          string       `json:"role"`
	State         status.State `json:"state"`
	Since         time.Time    `json:"since"`
	LastError     string       `json:"last_error,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	Generation    uint64       `json:"generation"`
	FetchedAt     time.Time    `json:"fetched_at"`
	Conversations int          `json:"conversations"`
	Contacts      int          `json:"contacts"`
	TotalUnread   int          `json:"total_unread"`
	ActivePeer    int64        `json:"active_peer,omitempty"`
}

// ContactView is a directory entry.
type ContactView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	Label string `json:"label,omitempty"`
}

// ConversationView is one conversation list row.
type ConversationView struct {
	PeerID        int64     `json:"peer_id"`
	PeerName      string    `json:"peer_name"`
	PeerEmail     string    `json:"peer_email,omitempty"`
	PeerRole      string    `json:"peer_role"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

// ConversationsView is the whole conversation list from one snapshot.
type ConversationsView struct {
	Generation    uint64             `json:"generation"`
	FetchedAt     time.Time          `json:"fetched_at"`
	TotalUnread   int                `json:"total_unread"`
	Conversations []ConversationView `json:"conversations"`
}

// MessageView is one thread message.
type MessageView struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	IsMine     bool      `json:"is_mine"`
	IsRead     bool      `json:"is_read"`
}

// ThreadView is the active thread.
type ThreadView struct {
	PeerID   int64         `json:"peer_id"`
	PeerName string        `json:"peer_name,omitempty"`
	Messages []MessageView `json:"messages"`
	NewestID int64         `json:"newest_id,omitempty"`
	LoadedAt time.Time     `json:"loaded_at"`
	Error    string        `json:"error,omitempty"`
}

// ItemView is one notification feed entry.
type ItemView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PeerID      int64     `json:"peer_id,omitempty"`
	UnreadCount int       `json:"unread_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
	Importance  string    `json:"importance,omitempty"`
}

// FeedView is the notification feed.
type FeedView struct {
	Filter        string     `json:"filter"`
	Generation    uint64     `json:"generation"`
	Cycle         uint64     `json:"cycle"`
	TotalUnread   int        `json:"total_unread"`
	MessageUnread int        `json:"message_unread"`
	SystemUnread  int        `json:"system_unread"`
	Badge         string     `json:"badge,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Items         []ItemView `json:"items"`
}

// SelectionView is the result of selecting a feed item.
type SelectionView struct {
	Item   ItemView    `json:"item"`
	Opened bool        `json:"opened"`
	Thread *ThreadView `json:"thread,omitempty"`
}

// DraftView is the composer state.
type DraftView struct {
	Mode          string `json:"mode"`
	RecipientID   int64  `json:"recipient_id,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
	RecipientRole string `json:"recipient_role,omitempty"`
	Body          string `json:"body"`
	ReplyingTo    int64  `json:"replying_to,omitempty"`
	Sending       bool   `json:"sending"`
}

// ReceiptView acknowledges an accepted message.
type ReceiptView struct {
	MessageID int64     `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// ErrorView is the body of every non-2xx response.
type ErrorView struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func contactView(c model.Contact) ContactView {
	return ContactView{ID: c.ID, Name: c.Name, Email: c.Email, Role: string(c.Role), Label: c.Label}
}

func conversationView(c model.ConversationSummary) ConversationView {
	return ConversationView{
		PeerID:        c.PeerID,
		PeerName:      c.PeerName,
		PeerEmail:     c.PeerEmail,
		PeerRole:      string(c.PeerRole),
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
	}
}

func threadView(th conversation.Thread, peerName string) ThreadView {
	v := ThreadView{
		PeerID:   th.PeerID,
		PeerName: peerName,
		Messages: make([]MessageView, 0, len(th.Messages)),
		NewestID: th.NewestID,
		LoadedAt: th.LoadedAt,
	}
	if th.Err != nil {
		v.Error = th.Err.Error()
	}
	for _, m := range th.Messages {
		v.Messages = append(v.Messages, MessageView{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
			IsMine:     m.IsMine,
			IsRead:     m.IsRead,
		})
	}
	return v
}

func itemView(it model.NotificationItem) ItemView {
	return ItemView{
		ID:          it.ID,
		Type:        string(it.Type),
		Title:       it.Title,
		Body:        it.Body,
		PeerID:      it.PeerID,
		UnreadCount: it.UnreadCount,
		CreatedAt:   it.CreatedAt,
		IsRead:      it.IsRead,
		Importance:  it.Importance,
	}
}

func feedView(f notify.Feed, filter notify.Filter) FeedView {
	v := FeedView{
		Filter:        string(filter),
		Generation:    f.Generation,
		Cycle:         f.Cycle,
		TotalUnread:   f.TotalUnread,
		MessageUnread: f.MessageUnread,
		SystemUnread:  f.SystemUnread,
		Badge:         notify.BadgeLabel(f.TotalUnread),
		UpdatedAt:     f.UpdatedAt,
		Items:         make([]ItemView, 0, len(f.Items)),
	}
	for _, it := range f.Items {
		v.Items = append(v.Items, itemView(it))
	}
	return v
}

func draftView(d model.Draft, mode string, sending bool) DraftView {
	return DraftView{
		Mode:          mode,
		RecipientID:   d.RecipientID,
		RecipientName: d.RecipientName,
		RecipientRole: string(d.RecipientRole),
		Body:          d.Body,
		ReplyingTo:    d.ReplyingToMessageID,
		Sending:       sending,
	}
}
