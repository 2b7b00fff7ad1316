package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/fitmsg/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{BaseURL: srv.URL, Role: model.RoleTrainer, AccessToken: "tok-1", RefreshToken: "ref-1"}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestConversationsDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/messages/conversations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		_, _ = w.Write([]byte(`{"conversations":[
			{"user_id":7,"user_name":"Sam","user_role":"trainee","last_message":"Hi coach","last_message_time":"2025-03-01T10:00:00.123456","unread_count":1},
			{"user_name":"no id"},
			{"user_id":9,"user_name":"Ana","user_role":"ADMIN","last_message":null,"last_message_time":null,"unread_count":0}
		]}`))
	})
	c := newTestClient(t, mux)

	convs, err := c.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, int64(7), convs[0].PeerID)
	assert.Equal(t, model.RoleTrainee, convs[0].PeerRole)
	assert.Equal(t, "Hi coach", convs[0].LastMessage)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC), convs[0].LastMessageAt)

	assert.Equal(t, "", convs[1].LastMessage)
	assert.True(t, convs[1].LastMessageAt.IsZero())
}

func TestMessagesOwnershipFallsBackToSelfID(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/messages/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"messages": [
			{"id": 1, "sender_id": 7, "receiver_id": 1, "message": "Hi coach"},
			{"id": 2, "sender_id": 1, "receiver_id": 7, "message": "On it"},
			{"id": 3, "sender_id": 7, "receiver_id": 1, "message": "thanks", "is_mine": true}
		]}`))
	})

	c := newTestClient(t, h, func(o *Options) { o.SelfID = 1 })
	msgs, err := c.Messages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.False(t, msgs[0].IsMine)
	assert.True(t, msgs[1].IsMine)
	assert.True(t, msgs[2].IsMine, "explicit is_mine wins")

	c = newTestClient(t, h)
	msgs, err = c.Messages(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, msgs[1].IsMine)
}

func TestMissingListFailsClosed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/messages/contacts/available", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /api/chat/messages/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":null}`))
	})
	c := newTestClient(t, mux)

	list, err := c.Contacts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	msgs, err := c.Messages(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageRequestShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["receiver_id"])
		assert.Equal(t, "On it", body["message"])
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message_id": 43, "sent_at": "2025-03-01T10:05:00"})
	})
	c := newTestClient(t, mux)

	receipt, err := c.SendMessage(context.Background(), 7, "On it")
	require.NoError(t, err)
	assert.Equal(t, int64(43), receipt.MessageID)
	assert.False(t, receipt.SentAt.IsZero())
}

func TestServerErrorCarriesDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/messages/send", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Receiver not found"})
	})
	c := newTestClient(t, mux)

	_, err := c.SendMessage(context.Background(), 99, "hello")
	var se *model.ServerError
	require.True(t, errors.As(err, &se), "err = %v", err)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "Receiver not found", se.Message)
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/messages/unread/count", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, mux, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	defer close(release)

	_, err := c.UnreadCount(context.Background())
	var te *model.TransportError
	require.True(t, errors.As(err, &te), "err = %v", err)
	assert.True(t, te.Timeout)
	assert.True(t, model.IsSkippable(err))
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, AccessToken: "x"})
	require.NoError(t, err)
	_, err = c.Conversations(context.Background())
	var te *model.TransportError
	require.True(t, errors.As(err, &te), "err = %v", err)
	assert.False(t, model.IsSkippable(err))
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	var refreshed atomic.Int32
	var persisted *oauth2.Token
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "ref-1", body["refresh_token"])
		refreshed.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-2"})
	})
	mux.HandleFunc("GET /api/chat/messages/unread/count", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": 3})
	})
	c := newTestClient(t, mux, func(o *Options) {
		o.OnTokenRefresh = func(tok *oauth2.Token) { persisted = tok }
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(1), refreshed.Load())
	require.NotNil(t, persisted)
	assert.Equal(t, "tok-2", persisted.AccessToken)

	// The new token is reused without another refresh.
	_, err = c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), refreshed.Load())
}

func TestRefreshFailureIsUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "bad refresh token"})
	})
	mux.HandleFunc("GET /api/chat/messages/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	c := newTestClient(t, mux)

	_, err := c.Conversations(context.Background())
	var se *model.ServerError
	require.True(t, errors.As(err, &se), "err = %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestNotificationsRoleScoped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/notifications", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("unread_only"))
		_, _ = w.Write([]byte(`{"success":true,"notifications":[
			{"id":3,"title":"Class moved","message":"Yoga 6pm","notification_type":"Session","is_read":false,"created_at":"2025-03-01T09:00:00"},
			{"id":0,"title":"broken"}
		]}`))
	})
	c := newTestClient(t, mux, func(o *Options) { o.Role = model.RoleAdmin })

	list, err := c.Notifications(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "session", list[0].Type)
	assert.Equal(t, "Yoga 6pm", list[0].Body)
}

func TestTraineesCached(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/trainer/trainees", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"trainees":[{"id":10,"user_id":7,"name":"Sam","email":"sam@gym.io"}]}`))
	})
	c := newTestClient(t, mux)

	for range 3 {
		list, err := c.Trainees(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(7), list[0].ID)
	}
	assert.Equal(t, int32(1), calls.Load())

	c.InvalidateRoster()
	_, err := c.Trainees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"2025-03-01T10:00:00Z", false},
		{"2025-03-01T10:00:00+02:00", false},
		{"2025-03-01T10:00:00", false},
		{"2025-03-01 10:00:00", false},
		{"", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.zero, ParseTime(tt.in).IsZero())
		})
	}
}

func TestConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	var refreshed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := refreshed.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": fmt.Sprintf("tok-new-%d", n)})
	})
	mux.HandleFunc("GET /api/chat/messages/unread/count", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": 1})
	})
	c := newTestClient(t, mux)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.UnreadCount(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshed.Load())
}
