package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/matheus3301/fitmsg/internal/contacts"
	"github.com/matheus3301/fitmsg/internal/model"
)

func (c *Client) notificationsPath() string {
	role := c.role
	if !role.Valid() {
		role = model.RoleTrainer
	}
	return "/api/" + role.Path() + "/notifications"
}

// Notifications lists the role-scoped system notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]SystemNotification, error) {
	var resp notificationsResponse
	path := c.notificationsPath() + "?unread_only=" + strconv.FormatBool(unreadOnly)
	if err := c.getJSON(ctx, "notifications", path, &resp); err != nil {
		return nil, err
	}
	out := make([]SystemNotification, 0, len(resp.Notifications))
	for _, row := range resp.Notifications {
		if row.ID == 0 {
			continue
		}
		out = append(out, row.toSystem())
	}
	return out, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, "mark notification read", http.MethodPost, fmt.Sprintf("%s/%d/read", c.notificationsPath(), id), nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, "mark all notifications read", http.MethodPut, c.notificationsPath()+"/mark-all-read", nil, nil)
}

// Trainees returns the trainer's roster as contacts. Results are cached for the
// roster TTL since the roster changes far less often than conversations.
func (c *Client) Trainees(ctx context.Context) ([]model.Contact, error) {
	const path = "/api/trainer/trainees"
	if cached, ok := c.roster.Get(path); ok {
		return cached, nil
	}
	var resp traineesResponse
	if err := c.getJSON(ctx, "trainees", path, &resp); err != nil {
		return nil, err
	}
	rows := make([]contacts.TraineeRow, 0, len(resp.Trainees))
	for _, r := range resp.Trainees {
		rows = append(rows, r.toRow())
	}
	list := contacts.FromTrainees(rows)
	c.roster.Add(path, list)
	return list, nil
}

// InvalidateRoster drops the cached roster.
func (c *Client) InvalidateRoster() {
	c.roster.Purge()
}
