package conversation

import (
	"slices"

	"github.com/matheus3301/fitmsg/internal/model"
)

// Stats summarizes a snapshot for dashboards.
type Stats struct {
	Conversations int
	TotalUnread   int
	ByRole        map[model.Role]int
}

// Stats tallies unread messages and conversations per peer role.
func (s Snapshot) Stats() Stats {
	st := Stats{
		Conversations: len(s.Conversations),
		ByRole:        make(map[model.Role]int),
	}
	for _, c := range s.Conversations {
		st.TotalUnread += c.UnreadCount
		st.ByRole[c.PeerRole]++
	}
	return st
}

// UnreadTotal is the sum of per-conversation unread counts.
func (s Snapshot) UnreadTotal() int {
	n := 0
	for _, c := range s.Conversations {
		n += c.UnreadCount
	}
	return n
}

// SortByRecent returns a copy of list ordered by last message time, newest
// first. Conversations without messages sort last; ties keep input order.
func SortByRecent(list []model.ConversationSummary) []model.ConversationSummary {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b model.ConversationSummary) int {
		switch {
		case a.LastMessageAt.IsZero() && b.LastMessageAt.IsZero():
			return 0
		case a.LastMessageAt.IsZero():
			return 1
		case b.LastMessageAt.IsZero():
			return -1
		}
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	return out
}

// Unread returns the conversations with unread messages, in input order.
func Unread(list []model.ConversationSummary) []model.ConversationSummary {
	var out []model.ConversationSummary
	for _, c := range list {
		if c.UnreadCount > 0 {
			out = append(out, c)
		}
	}
	return out
}
