package model

import (
	"strconv"
	"time"
)

// Contact is an addressable user in the studio directory.
type Contact struct {
	ID    int64
	Name  string
	Email string
	Role  Role
	Label string
}

// ConversationSummary is one row of the conversation list, one per peer.
type ConversationSummary struct {
	PeerID        int64
	PeerName      string
	PeerEmail     string
	PeerRole      Role
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

// Message is a single message in a one-to-one thread.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Body       string
	CreatedAt  time.Time
	IsMine     bool
	IsRead     bool

	// Optional, only present on inbox-style payloads.
	SenderName string
	SenderRole Role
}

// PeerID returns the id of the non-owning participant.
func (m Message) PeerID() int64 {
	if m.IsMine {
		return m.ReceiverID
	}
	return m.SenderID
}

// NotificationType classifies a feed entry.
type NotificationType string

const (
	NotificationMessage  NotificationType = "message"
	NotificationSchedule NotificationType = "schedule"
	NotificationSystem   NotificationType = "system"
	NotificationTrainee  NotificationType = "trainee"
)

// NotificationItem is a derived feed entry. Message items are synthesized from
// conversation summaries; the rest come from the backend notification feed.
type NotificationItem struct {
	ID          string
	Type        NotificationType
	Title       string
	Body        string
	PeerID      int64
	PeerName    string
	PeerRole    Role
	UnreadCount int
	CreatedAt   time.Time
	IsRead      bool
	Importance  string

	// NotificationID is the backend id for system items, zero for message items.
	NotificationID int64
}

// MessageItemID returns the feed id used for a peer's unread-message item.
func MessageItemID(peerID int64) string {
	return "msg-" + strconv.FormatInt(peerID, 10)
}

// Draft is the in-memory outbound message state.
type Draft struct {
	RecipientID         int64
	RecipientName       string
	RecipientRole       Role
	Body                string
	ReplyingToMessageID int64
}

// IsReply reports whether the draft is bound to an inbound message.
func (d Draft) IsReply() bool {
	return d.ReplyingToMessageID != 0
}

// SendReceipt is what the backend returns for an accepted message.
type SendReceipt struct {
	MessageID int64
	SentAt    time.Time
}
