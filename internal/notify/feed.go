package notify

import (
	"slices"
	"strconv"
	"strings"

	"github.com/matheus3301/fitmsg/internal/client"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/model"
)

// Filter selects a view of the merged feed.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterMessages Filter = "messages"
	FilterSchedule Filter = "schedule"
	FilterSystem   Filter = "system"
)

// ParseFilter maps user input to a Filter; unknown values mean all.
func ParseFilter(s string) Filter {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterMessages, FilterSchedule, FilterSystem:
		return f
	}
	return FilterAll
}

// NormalizeType maps a backend notification type onto the feed's types. The
// second result is false for message notifications, which the feed derives
// from conversations instead.
func NormalizeType(kind string) (model.NotificationType, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "message":
		return "", false
	case "schedule", "session":
		return model.NotificationSchedule, true
	case "trainee":
		return model.NotificationTrainee, true
	default:
		return model.NotificationSystem, true
	}
}

// FromSystem converts backend notifications into feed items.
func FromSystem(list []client.SystemNotification) []model.NotificationItem {
	out := make([]model.NotificationItem, 0, len(list))
	for _, n := range list {
		kind, ok := NormalizeType(n.Type)
		if !ok {
			continue
		}
		out = append(out, model.NotificationItem{
			ID:             strconv.FormatInt(n.ID, 10),
			Type:           kind,
			Title:          n.Title,
			Body:           n.Body,
			CreatedAt:      n.CreatedAt,
			IsRead:         n.IsRead,
			Importance:     n.Importance,
			NotificationID: n.ID,
		})
	}
	return out
}

// MessageItems synthesizes one message item per conversation with unread messages.
func MessageItems(convs []model.ConversationSummary) []model.NotificationItem {
	var out []model.NotificationItem
	for _, c := range conversation.Unread(convs) {
		out = append(out, model.NotificationItem{
			ID:          model.MessageItemID(c.PeerID),
			Type:        model.NotificationMessage,
			Title:       "New message from " + c.PeerName,
			Body:        c.LastMessage,
			PeerID:      c.PeerID,
			PeerName:    c.PeerName,
			PeerRole:    c.PeerRole,
			UnreadCount: c.UnreadCount,
			CreatedAt:   c.LastMessageAt,
			Importance:  "normal",
		})
	}
	return out
}

// Merge concatenates message items with system items and orders the result by
// creation time, newest first. Items without a timestamp sort last; ties keep
// message items ahead of system items.
func Merge(convs []model.ConversationSummary, system []model.NotificationItem) []model.NotificationItem {
	items := append(MessageItems(convs), system...)
	slices.SortStableFunc(items, func(a, b model.NotificationItem) int {
		switch {
		case a.CreatedAt.IsZero() && b.CreatedAt.IsZero():
			return 0
		case a.CreatedAt.IsZero():
			return 1
		case b.CreatedAt.IsZero():
			return -1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if items == nil {
		items = []model.NotificationItem{}
	}
	return items
}

// Apply returns the items matching f. It never fetches.
func Apply(items []model.NotificationItem, f Filter) []model.NotificationItem {
	out := make([]model.NotificationItem, 0, len(items))
	for _, it := range items {
		if matches(it.Type, f) {
			out = append(out, it)
		}
	}
	return out
}

func matches(t model.NotificationType, f Filter) bool {
	switch f {
	case FilterMessages:
		return t == model.NotificationMessage
	case FilterSchedule:
		return t == model.NotificationSchedule
	case FilterSystem:
		return t == model.NotificationSystem
	}
	return true
}

// UnreadSystem counts unread system items.
func UnreadSystem(items []model.NotificationItem) int {
	n := 0
	for _, it := range items {
		if it.Type != model.NotificationMessage && !it.IsRead {
			n++
		}
	}
	return n
}

// BadgeLabel renders a bell badge count.
func BadgeLabel(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	}
	return strconv.Itoa(n)
}
