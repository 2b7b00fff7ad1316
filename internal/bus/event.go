package bus

import "time"

// Event kinds published by the sync core. Subscribers match on prefix, so
// "conversations." receives every conversation event.
const (
	KindConversationsRefreshed = "conversations.refreshed"
	KindThreadLoaded           = "conversations.thread_loaded"
	KindThreadFailed           = "conversations.thread_failed"
	KindMessageSent            = "conversations.message_sent"
	KindNotificationsUpdated   = "notifications.updated"
	KindDraftChanged           = "composer.draft_changed"
	KindSyncStatusChanged      = "sync.status_changed"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
