package services

import (
	"context"
	"fmt"

	"reina/internal/api"
	"reina/internal/core"
	"reina/internal/log"
)

const notificationsKey = prefixNotifications + "all"

type NotificationService struct {
	api    NotificationAPI
	caches *Caches
	logger *log.Logger
}

func NewNotificationService(client NotificationAPI, caches *Caches, logger *log.Logger) *NotificationService {
	if logger == nil {
		logger = log.Discard()
	}
	return &NotificationService{
		api:    client,
		caches: caches,
		logger: logger.WithComponent(log.ComponentNotification),
	}
}

// List returns the user's notifications. Transient failures read as an
// empty list; authentication failures are returned.
func (s *NotificationService) List(ctx context.Context) ([]core.Notification, error) {
	if s.caches != nil {
		if ns, ok := s.caches.Notifications.Get(notificationsKey); ok {
			return ns, nil
		}
	}

	ns, err := s.api.ListNotifications(ctx)
	if err != nil {
		if !api.IsTransient(err) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "Notifications unavailable, showing none", log.FieldError, err)
		return []core.Notification{}, nil
	}
	if s.caches != nil {
		s.caches.Notifications.Set(notificationsKey, ns)
	}
	return ns, nil
}

func (s *NotificationService) Add(ctx context.Context, message string) (core.Notification, error) {
	n, err := s.api.AddNotification(ctx, message)
	if err != nil {
		return core.Notification{}, fmt.Errorf("add notification: %w", err)
	}
	s.caches.invalidateNotifications()
	s.logger.InfoContext(ctx, "Notification added", log.FieldOperation, log.OpCreate, log.FieldNotificationID, n.ID)
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id int64) error {
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	s.caches.invalidateNotifications()
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, id int64) (api.StatusReply, error) {
	reply, err := s.api.DeleteNotification(ctx, id)
	if err != nil {
		return api.StatusReply{}, fmt.Errorf("delete notification %d: %w", id, err)
	}
	s.caches.invalidateNotifications()
	s.logger.InfoContext(ctx, "Notification deleted", log.FieldOperation, log.OpDelete, log.FieldNotificationID, id)
	return reply, nil
}

func (s *NotificationService) DeleteAll(ctx context.Context) (api.StatusReply, error) {
	reply, err := s.api.DeleteAllNotifications(ctx)
	if err != nil {
		return api.StatusReply{}, fmt.Errorf("delete notifications: %w", err)
	}
	s.caches.invalidateNotifications()
	s.logger.InfoContext(ctx, "All notifications deleted", log.FieldOperation, log.OpDelete)
	return reply, nil
}
