package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type studio struct {
	admin, coach, other, sam, jo *User
}

func testStudio(t *testing.T, db *DB) studio {
	t.Helper()
	s := studio{
		admin: &User{Name: "Ana", Email: "ana@gym.test", Role: RoleAdmin},
		coach: &User{Name: "Alex", Email: "alex@gym.test", Role: RoleTrainer},
		other: &User{Name: "Riley", Email: "riley@gym.test", Role: RoleTrainer},
	}
	for _, u := range []*User{s.admin, s.coach, s.other} {
		if err := db.CreateUser(u); err != nil {
			t.Fatal(err)
		}
	}
	s.sam = &User{Name: "Sam", Email: "SAM@gym.test", Role: "trainee", TrainerID: s.coach.ID}
	s.jo = &User{Name: "Jo", Email: "jo@gym.test", Role: RoleTrainee, TrainerID: s.other.ID}
	for _, u := range []*User{s.sam, s.jo} {
		if err := db.CreateUser(u); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != SchemaVersion {
		t.Errorf("version = %d, want %d", result.Version, SchemaVersion)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fitmsg", "devserver.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Error("first Migrate() should report Changed=true")
	}
}

func TestMigrateRejectsUnusableSchema(t *testing.T) {
	tests := []struct {
		name   string
		update string
		want   string
	}{
		{"newer", `UPDATE schema_migrations SET version = 99`, "newer than this devserver"},
		{"dirty", `UPDATE schema_migrations SET dirty = 1`, "dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			if _, err := db.Exec(tt.update); err != nil {
				t.Fatal(err)
			}
			_, err := db.Migrate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Migrate() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCreateUserNormalizes(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	got, err := db.GetUserByEmail("sam@gym.test")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != s.sam.ID {
		t.Fatalf("GetUserByEmail = %+v, want id %d", got, s.sam.ID)
	}
	if got.Role != RoleTrainee || got.TrainerID != s.coach.ID || !got.Active {
		t.Errorf("user = %+v", got)
	}

	if err := db.CreateUser(&User{Name: "x", Email: "x@gym.test", Role: "coach"}); err == nil {
		t.Error("CreateUser with invalid role should fail")
	}
	missing, err := db.GetUser(999)
	if err != nil || missing != nil {
		t.Errorf("GetUser(999) = %v, %v; want nil, nil", missing, err)
	}
}

func TestAvailableContactsByRole(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	tests := []struct {
		name string
		user *User
		want []string
	}{
		{"trainee sees trainer then admins", s.sam, []string{"Alex/My Trainer", "Ana/Admin"}},
		{"trainer sees own trainees then admins", s.coach, []string{"Sam/Trainee", "Ana/Admin"}},
		{"admin sees everyone else", s.admin, []string{"Alex/TRAINER", "Riley/TRAINER", "Sam/TRAINEE", "Jo/TRAINEE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := db.AvailableContacts(tt.user)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, c := range list {
				got = append(got, c.Name+"/"+c.Label)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("contacts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvailableContactsSkipsInactiveForAdmin(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)
	if err := db.SetActive(s.jo.ID, false); err != nil {
		t.Fatal(err)
	}
	list, err := db.AvailableContacts(s.admin)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range list {
		if c.ID == s.jo.ID {
			t.Error("inactive user listed")
		}
	}
}

func TestSendMessageCreatesNotification(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	long := strings.Repeat("a", 120)
	msg, err := db.SendMessage(s.sam, s.coach.ID, long)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == 0 || msg.CreatedAt.IsZero() {
		t.Errorf("message = %+v", msg)
	}

	list, err := db.Notifications(s.coach.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("notifications = %d, want 1", len(list))
	}
	n := list[0]
	if n.Type != "message" || n.Title != "New message from Sam" {
		t.Errorf("notification = %+v", n)
	}
	if n.Message != strings.Repeat("a", 100)+"..." {
		t.Errorf("preview len = %d", len(n.Message))
	}

	if _, err := db.SendMessage(s.sam, 999, "hi"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("send to unknown = %v, want ErrUserNotFound", err)
	}
}

func TestConversationsAndUnread(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	for _, m := range []struct {
		from *User
		to   int64
		body string
	}{
		{s.sam, s.coach.ID, "hi coach"},
		{s.coach, s.sam.ID, "hi sam"},
		{s.sam, s.coach.ID, "thursday?"},
		{s.admin, s.coach.ID, "closing early"},
	} {
		if _, err := db.SendMessage(m.from, m.to, m.body); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := db.Conversations(s.coach.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
	if convs[0].PeerID != s.admin.ID || convs[0].LastMessage != "closing early" || convs[0].UnreadCount != 1 {
		t.Errorf("first = %+v", convs[0])
	}
	if convs[1].PeerID != s.sam.ID || convs[1].LastMessage != "thursday?" || convs[1].UnreadCount != 2 {
		t.Errorf("second = %+v", convs[1])
	}

	total, err := db.UnreadCount(s.coach.ID)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("unread = %d, want 3", total)
	}

	empty, err := db.Conversations(s.jo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Conversations for silent user = %#v, want empty non-nil", empty)
	}
}

func TestThreadMarksInboundRead(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	if _, err := db.SendMessage(s.sam, s.coach.ID, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SendMessage(s.coach, s.sam.ID, "two"); err != nil {
		t.Fatal(err)
	}

	thread, err := db.Thread(s.coach.ID, s.sam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 2 || thread[0].Body != "one" || thread[1].Body != "two" {
		t.Fatalf("thread = %+v", thread)
	}
	if thread[0].IsRead {
		t.Error("thread should report read state before marking")
	}

	n, _ := db.UnreadCount(s.coach.ID)
	if n != 0 {
		t.Errorf("coach unread after open = %d, want 0", n)
	}
	// Opening does not touch the other direction.
	n, _ = db.UnreadCount(s.sam.ID)
	if n != 1 {
		t.Errorf("sam unread = %d, want 1", n)
	}
}

func TestMarkReadClearsMessageNotifications(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	if _, err := db.SendMessage(s.sam, s.coach.ID, "one"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateNotification(&Notification{UserID: s.coach.ID, Title: "Class moved", Type: "schedule"}); err != nil {
		t.Fatal(err)
	}

	updated, err := db.MarkRead(s.coach.ID, s.sam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	unread, err := db.Notifications(s.coach.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].Type != "schedule" {
		t.Errorf("unread notifications = %+v, want only the schedule one", unread)
	}
}

func TestNotificationReadState(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	mine := &Notification{UserID: s.coach.ID, Title: "A"}
	theirs := &Notification{UserID: s.sam.ID, Title: "B"}
	for _, n := range []*Notification{mine, theirs, {UserID: s.coach.ID, Title: "C"}} {
		if err := db.CreateNotification(n); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := db.MarkNotificationRead(s.coach.ID, theirs.ID)
	if err != nil || ok {
		t.Errorf("marking another user's notification = %v, %v; want false", ok, err)
	}
	ok, err = db.MarkNotificationRead(s.coach.ID, mine.ID)
	if err != nil || !ok {
		t.Fatalf("MarkNotificationRead = %v, %v", ok, err)
	}

	all, _ := db.Notifications(s.coach.ID, false)
	unread, _ := db.Notifications(s.coach.ID, true)
	if len(all) != 2 || len(unread) != 1 {
		t.Errorf("all = %d, unread = %d; want 2, 1", len(all), len(unread))
	}

	n, err := db.MarkAllNotificationsRead(s.coach.ID)
	if err != nil || n != 1 {
		t.Errorf("MarkAll = %d, %v; want 1", n, err)
	}
	unread, _ = db.Notifications(s.sam.ID, true)
	if len(unread) != 1 {
		t.Error("mark-all must not touch other users")
	}
}

func TestTokensAuthenticateAndRefresh(t *testing.T) {
	db := testDB(t)
	s := testStudio(t, db)

	tok, err := db.IssueTokens(s.coach.ID)
	if err != nil {
		t.Fatal(err)
	}
	u, err := db.Authenticate(tok.AccessToken)
	if err != nil || u == nil || u.ID != s.coach.ID {
		t.Fatalf("Authenticate = %v, %v", u, err)
	}
	if u, _ := db.Authenticate(tok.RefreshToken); u != nil {
		t.Error("refresh token must not authenticate requests")
	}

	access, err := db.Refresh(tok.RefreshToken)
	if err != nil || access == "" {
		t.Fatalf("Refresh = %q, %v", access, err)
	}
	if u, _ := db.Authenticate(tok.AccessToken); u != nil {
		t.Error("old access token should be revoked after refresh")
	}
	if u, _ := db.Authenticate(access); u == nil {
		t.Error("new access token rejected")
	}

	if access, _ := db.Refresh("nope"); access != "" {
		t.Error("unknown refresh token accepted")
	}
	if err := db.SetActive(s.coach.ID, false); err != nil {
		t.Fatal(err)
	}
	if u, _ := db.Authenticate(access); u != nil {
		t.Error("inactive user authenticated")
	}
}

func TestSeed(t *testing.T) {
	db := testDB(t)

	users, err := db.Seed()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 6 {
		t.Fatalf("seeded %d users, want 6", len(users))
	}
	for _, su := range users {
		if u, _ := db.Authenticate(su.Tokens.AccessToken); u == nil || u.ID != su.User.ID {
			t.Errorf("token for %s does not authenticate", su.User.Email)
		}
	}
	if _, err := db.Seed(); err == nil {
		t.Error("second Seed should refuse")
	}
}
