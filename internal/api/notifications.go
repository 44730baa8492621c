package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"reina/internal/core"
)

// ListNotifications returns the user's notifications, newest first.
// A reply that is not a list reads as no notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	var raw json.RawMessage
	if err := c.Execute(ctx, Call{Method: http.MethodGet, Path: "/notifications/details"}, &raw); err != nil {
		return nil, err
	}
	var out []core.Notification
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []core.Notification{}, nil
	}
	return out, nil
}

// AddNotification posts a new unread notification.
func (c *Client) AddNotification(ctx context.Context, message string) (core.Notification, error) {
	if err := core.ValidateMessage(message); err != nil {
		return core.Notification{}, err
	}
	body := struct {
		Message string `json:"message"`
		IsRead  bool   `json:"isRead"`
	}{Message: message}

	var n core.Notification
	if err := c.Execute(ctx, Call{Method: http.MethodPost, Path: "/notifications", JSON: body}, &n); err != nil {
		return core.Notification{}, err
	}
	return n, nil
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	call := Call{
		Method: http.MethodPatch,
		Path:   "/notifications/" + strconv.FormatInt(id, 10) + "/read",
		JSON:   struct{}{},
	}
	return c.Execute(ctx, call, nil)
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) (StatusReply, error) {
	var reply StatusReply
	call := Call{Method: http.MethodDelete, Path: "/notification/" + strconv.FormatInt(id, 10)}
	if err := c.Execute(ctx, call, &reply); err != nil {
		return StatusReply{}, err
	}
	return reply, nil
}

// DeleteAllNotifications removes every notification of the user.
func (c *Client) DeleteAllNotifications(ctx context.Context) (StatusReply, error) {
	var reply StatusReply
	if err := c.Execute(ctx, Call{Method: http.MethodDelete, Path: "/notifications"}, &reply); err != nil {
		return StatusReply{}, err
	}
	return reply, nil
}
