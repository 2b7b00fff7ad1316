package conversation

import (
	"testing"
	"time"

	"github.com/matheus3301/fitmsg/internal/model"
)

func TestSortByRecent(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	in := []model.ConversationSummary{
		{PeerID: 1, LastMessageAt: base},
		{PeerID: 2},
		{PeerID: 3, LastMessageAt: base.Add(time.Hour)},
		{PeerID: 4, LastMessageAt: base},
	}
	got := SortByRecent(in)
	want := []int64{3, 1, 4, 2}
	for i, id := range want {
		if got[i].PeerID != id {
			t.Fatalf("position %d: got peer %d, want %d", i, got[i].PeerID, id)
		}
	}
	if in[0].PeerID != 1 {
		t.Error("input was reordered")
	}
}

func TestSnapshotStats(t *testing.T) {
	snap := Snapshot{Conversations: []model.ConversationSummary{
		{PeerID: 1, PeerRole: model.RoleTrainee, UnreadCount: 2},
		{PeerID: 2, PeerRole: model.RoleTrainee},
		{PeerID: 3, PeerRole: model.RoleAdmin, UnreadCount: 1},
	}}
	st := snap.Stats()
	if st.TotalUnread != 3 || snap.UnreadTotal() != 3 {
		t.Errorf("unread = %d/%d, want 3", st.TotalUnread, snap.UnreadTotal())
	}
	if st.ByRole[model.RoleTrainee] != 2 || st.ByRole[model.RoleAdmin] != 1 {
		t.Errorf("by role = %v", st.ByRole)
	}
	if n := len(Unread(snap.Conversations)); n != 2 {
		t.Errorf("unread conversations = %d, want 2", n)
	}
}
