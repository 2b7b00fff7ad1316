// Package ctlclient talks to a running fitmsgd over its unix socket.
package ctlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matheus3301/fitmsg/internal/api"
)

// Error is a non-2xx answer from the daemon.
type Error struct {
	Status  int
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Field)
	}
	return e.Message
}

// Client is a local API client bound to one daemon socket.
type Client struct {
	http *http.Client
}

// New creates a client for the daemon listening on socketPath.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{http: &http.Client{Transport: transport}}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://fitmsgd"+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var ev api.ErrorView
		if json.NewDecoder(resp.Body).Decode(&ev) != nil || ev.Error == "" {
			ev.Error = resp.Status
		}
		return &Error{Status: resp.StatusCode, Message: ev.Error, Field: ev.Field}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (api.StatusView, error) {
	var v api.StatusView
	err := c.do(ctx, http.MethodGet, "/v1/status", nil, &v)
	return v, err
}

// Conversations lists conversations, optionally only those with unread messages.
func (c *Client) Conversations(ctx context.Context, unreadOnly bool) (api.ConversationsView, error) {
	path := "/v1/conversations"
	if unreadOnly {
		path += "?unread=true"
	}
	var v api.ConversationsView
	err := c.do(ctx, http.MethodGet, path, nil, &v)
	return v, err
}

// Contacts searches the directory.
func (c *Client) Contacts(ctx context.Context, query string) ([]api.ContactView, error) {
	var v []api.ContactView
	err := c.do(ctx, http.MethodGet, "/v1/contacts?q="+url.QueryEscape(query), nil, &v)
	return v, err
}

// Open opens peerID's thread.
func (c *Client) Open(ctx context.Context, peerID int64) (api.ThreadView, error) {
	var v api.ThreadView
	err := c.do(ctx, http.MethodPost, "/v1/threads/"+strconv.FormatInt(peerID, 10), nil, &v)
	return v, err
}

// MarkRead marks peerID's messages as read.
func (c *Client) MarkRead(ctx context.Context, peerID int64) error {
	return c.do(ctx, http.MethodPost, "/v1/threads/"+strconv.FormatInt(peerID, 10)+"/read", nil, nil)
}

// Thread returns the active thread.
func (c *Client) Thread(ctx context.Context) (api.ThreadView, error) {
	var v api.ThreadView
	err := c.do(ctx, http.MethodGet, "/v1/thread", nil, &v)
	return v, err
}

// CloseThread clears the active thread.
func (c *Client) CloseThread(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/thread", nil, nil)
}

// Notifications returns the feed under filter.
func (c *Client) Notifications(ctx context.Context, filter string) (api.FeedView, error) {
	var v api.FeedView
	err := c.do(ctx, http.MethodGet, "/v1/notifications?filter="+url.QueryEscape(filter), nil, &v)
	return v, err
}

// Select acts on a feed item.
func (c *Client) Select(ctx context.Context, id string) (api.SelectionView, error) {
	var v api.SelectionView
	err := c.do(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/select", nil, &v)
	return v, err
}

// ReadAll marks every system notification read.
func (c *Client) ReadAll(ctx context.Context) (api.FeedView, error) {
	var v api.FeedView
	err := c.do(ctx, http.MethodPost, "/v1/notifications/read-all", nil, &v)
	return v, err
}

// Refresh runs an immediate sync cycle.
func (c *Client) Refresh(ctx context.Context) (api.FeedView, error) {
	var v api.FeedView
	err := c.do(ctx, http.MethodPost, "/v1/refresh", nil, &v)
	return v, err
}

// Draft returns the composer state.
func (c *Client) Draft(ctx context.Context) (api.DraftView, error) {
	var v api.DraftView
	err := c.do(ctx, http.MethodGet, "/v1/draft", nil, &v)
	return v, err
}

// CancelDraft discards the draft.
func (c *Client) CancelDraft(ctx context.Context) (api.DraftView, error) {
	var v api.DraftView
	err := c.do(ctx, http.MethodDelete, "/v1/draft", nil, &v)
	return v, err
}

// SetRecipient addresses the draft to peerID.
func (c *Client) SetRecipient(ctx context.Context, peerID int64) (api.DraftView, error) {
	var v api.DraftView
	err := c.do(ctx, http.MethodPost, "/v1/draft/recipient", map[string]int64{"peer_id": peerID}, &v)
	return v, err
}

// ReplyTo binds the draft to a message of the active thread.
func (c *Client) ReplyTo(ctx context.Context, messageID int64) (api.DraftView, error) {
	var v api.DraftView
	err := c.do(ctx, http.MethodPost, "/v1/draft/reply", map[string]int64{"message_id": messageID}, &v)
	return v, err
}

// SetBody replaces the draft text.
func (c *Client) SetBody(ctx context.Context, body string) (api.DraftView, error) {
	var v api.DraftView
	err := c.do(ctx, http.MethodPut, "/v1/draft/body", map[string]string{"body": body}, &v)
	return v, err
}

// Submit sends the draft.
func (c *Client) Submit(ctx context.Context) (api.ReceiptView, error) {
	var v api.ReceiptView
	err := c.do(ctx, http.MethodPost, "/v1/draft/submit", nil, &v)
	return v, err
}
