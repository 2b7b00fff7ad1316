package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matheus3301/fitmsg/internal/model"
)

const chatPrefix = "/api/chat/messages"

// Conversations lists one summary per peer. Rows without a peer id are dropped.
func (c *Client) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var resp conversationsResponse
	if err := c.getJSON(ctx, "conversations", chatPrefix+"/conversations", &resp); err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, 0, len(resp.Conversations))
	for _, row := range resp.Conversations {
		if row.UserID == 0 {
			continue
		}
		out = append(out, row.toModel())
	}
	return out, nil
}

// Contacts lists the generic contacts available to the current user.
func (c *Client) Contacts(ctx context.Context) ([]model.Contact, error) {
	var resp contactsResponse
	if err := c.getJSON(ctx, "contacts", chatPrefix+"/contacts/available", &resp); err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(resp.Contacts))
	for _, row := range resp.Contacts {
		if row.ID == 0 {
			continue
		}
		out = append(out, row.toModel())
	}
	return out, nil
}

// Messages returns the full thread with a peer, oldest first.
func (c *Client) Messages(ctx context.Context, peerID int64) ([]model.Message, error) {
	var resp messagesResponse
	if err := c.getJSON(ctx, "messages", fmt.Sprintf("%s/%d", chatPrefix, peerID), &resp); err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(resp.Messages))
	for _, row := range resp.Messages {
		if row.ID == 0 {
			continue
		}
		out = append(out, row.toModel(c.selfID))
	}
	return out, nil
}

// SendMessage posts a message to receiverID.
func (c *Client) SendMessage(ctx context.Context, receiverID int64, body string) (model.SendReceipt, error) {
	var resp sendResponse
	err := c.do(ctx, "send", http.MethodPost, chatPrefix+"/send", sendRequest{ReceiverID: receiverID, Message: body}, &resp)
	if err != nil {
		return model.SendReceipt{}, err
	}
	return model.SendReceipt{MessageID: resp.MessageID, SentAt: resp.SentAt.Time}, nil
}

// UnreadCount returns the number of unread inbound messages across all peers.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadResponse
	if err := c.getJSON(ctx, "unread count", chatPrefix+"/unread/count", &resp); err != nil {
		return 0, err
	}
	if resp.UnreadCount < 0 {
		return 0, nil
	}
	return resp.UnreadCount, nil
}

// MarkRead marks every inbound message from peerID as read.
func (c *Client) MarkRead(ctx context.Context, peerID int64) error {
	return c.do(ctx, "mark read", http.MethodPut, fmt.Sprintf("%s/%d/read", chatPrefix, peerID), nil, nil)
}
