package devserver_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/matheus3301/fitmsg/internal/bus"
	"github.com/matheus3301/fitmsg/internal/client"
	"github.com/matheus3301/fitmsg/internal/composer"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/devserver"
	"github.com/matheus3301/fitmsg/internal/model"
	"github.com/matheus3301/fitmsg/internal/notify"
	"github.com/matheus3301/fitmsg/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// account is the client-side stack for one signed-in studio user.
type account struct {
	user     store.User
	client   *client.Client
	store    *conversation.Store
	composer *composer.Composer
	agg      *notify.Aggregator
}

func signIn(t *testing.T, baseURL string, su store.SeededUser) *account {
	t.Helper()
	role := model.ParseRole(su.User.Role)
	c, err := client.New(client.Options{
		BaseURL:      baseURL,
		Role:         role,
		AccessToken:  su.Tokens.AccessToken,
		RefreshToken: su.Tokens.RefreshToken,
	})
	require.NoError(t, err)
	b := bus.New()
	st := conversation.New(c, role, b, nil)
	comp := composer.New(st, b, nil)
	return &account{
		user:     su.User,
		client:   c,
		store:    st,
		composer: comp,
		agg:      notify.New(st, c, comp, b, nil),
	}
}

func seededStudio(t *testing.T) (string, *store.DB, map[string]store.SeededUser) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	seeded, err := db.Seed()
	require.NoError(t, err)
	users := map[string]store.SeededUser{}
	for _, su := range seeded {
		users[su.User.Email] = su
	}
	srv := httptest.NewServer(devserver.New(db, nil))
	t.Cleanup(srv.Close)
	return srv.URL, db, users
}

func TestTrainerInboxRoundTrip(t *testing.T) {
	url, _, users := seededStudio(t)
	ctx := context.Background()
	alex := signIn(t, url, users["alex@studio.test"])
	sam := signIn(t, url, users["sam@studio.test"])
	samID := users["sam@studio.test"].User.ID

	feed, err := alex.agg.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, feed.MessageUnread)
	assert.Equal(t, 2, feed.SystemUnread)
	assert.Equal(t, 6, feed.TotalUnread)

	// Roster entries win over the generic directory for trainees.
	ct, ok := alex.store.Contact(samID)
	require.True(t, ok)
	assert.Equal(t, "My Trainee", ct.Label)

	sel, err := alex.agg.Select(ctx, model.MessageItemID(samID))
	require.NoError(t, err)
	require.True(t, sel.Opened)
	require.Len(t, sel.Thread.Messages, 3)
	assert.Equal(t, "Perfect, see you then", sel.Thread.Messages[2].Body)

	// Opening the thread read Sam's messages on the server.
	feed, err = alex.agg.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, feed.MessageUnread)
	_, found := alex.agg.Item(model.MessageItemID(samID))
	assert.False(t, found)

	last := sel.Thread.Messages[2]
	require.NoError(t, alex.composer.ReplyTo(last.ID))
	alex.composer.SetBody("  Great, 6pm it is  ")
	receipt, err := alex.composer.Submit(ctx)
	require.NoError(t, err)
	assert.NotZero(t, receipt.MessageID)
	assert.Equal(t, "", alex.composer.Draft().Body)

	th := alex.store.Thread()
	require.Len(t, th.Messages, 4)
	assert.Equal(t, "Great, 6pm it is", th.Messages[3].Body)
	assert.True(t, th.Messages[3].IsMine)

	snap, err := sam.store.Refresh(ctx)
	require.NoError(t, err)
	conv, ok := sam.store.Conversation(users["alex@studio.test"].User.ID)
	require.True(t, ok, "conversations: %+v", snap.Conversations)
	assert.Equal(t, "Great, 6pm it is", conv.LastMessage)
	assert.Equal(t, 2, conv.UnreadCount)
}

func TestSystemNotificationSelectAndMarkAll(t *testing.T) {
	url, _, users := seededStudio(t)
	ctx := context.Background()
	alex := signIn(t, url, users["alex@studio.test"])

	feed, err := alex.agg.Cycle(ctx)
	require.NoError(t, err)

	var schedule model.NotificationItem
	for _, it := range alex.agg.Filtered(notify.FilterSchedule).Items {
		schedule = it
	}
	require.NotEmpty(t, schedule.ID)
	require.False(t, schedule.IsRead)

	sel, err := alex.agg.Select(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, sel.Opened)
	assert.True(t, sel.Item.IsRead)
	assert.Equal(t, feed.SystemUnread-1, alex.agg.Feed().SystemUnread)

	feed, err = alex.agg.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, feed.SystemUnread)
	assert.Equal(t, feed.MessageUnread, feed.TotalUnread)
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	url, db, users := seededStudio(t)
	ctx := context.Background()
	alex := signIn(t, url, users["alex@studio.test"])

	require.NoError(t, db.RevokeAccess(users["alex@studio.test"].User.ID))

	n, err := alex.client.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
