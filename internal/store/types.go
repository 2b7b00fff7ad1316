package store

import "time"

// Roles as stored in users.role.
const (
	RoleTrainee = "TRAINEE"
	RoleTrainer = "TRAINER"
	RoleAdmin   = "ADMIN"
)

// User is a studio account.
type User struct {
	ID        int64
	Name      string
	Email     string
	Role      string
	TrainerID int64
	Active    bool
	CreatedAt time.Time
}

// Contact is a user the caller may message, labelled by relationship.
type Contact struct {
	ID    int64
	Name  string
	Email string
	Role  string
	Label string
}

// Conversation summarizes the exchange between the caller and one peer.
type Conversation struct {
	PeerID        int64
	PeerName      string
	PeerEmail     string
	PeerRole      string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

// Message is a stored direct message.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Body       string
	IsRead     bool
	CreatedAt  time.Time
}

// Notification is a per-user notification row.
type Notification struct {
	ID         int64
	UserID     int64
	Title      string
	Message    string
	Type       string
	Importance string
	IsRead     bool
	CreatedAt  time.Time
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
