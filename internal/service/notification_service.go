package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/pkg/config"
)

// NotificationService publishes realtime events to Redis channels. Socket
// gateways subscribe to the per-user and admin channels and fan the payloads
// out to connected clients. Delivery is best effort: a failed publish is
// logged and never fails the triggering operation.
type NotificationService struct {
	client        *redis.Client
	channelPrefix string
	enabled       bool
	logger        *zap.Logger
}

// NewNotificationService constructs the dispatcher. A nil client disables it.
func NewNotificationService(client *redis.Client, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "notify"
	}
	return &NotificationService{
		client:        client,
		channelPrefix: prefix,
		enabled:       cfg.Enabled && client != nil,
		logger:        logger,
	}
}

// NotifyUser publishes an event on the user's private channel.
func (s *NotificationService) NotifyUser(ctx context.Context, userID string, eventType models.NotificationType, data map[string]interface{}) {
	s.publish(ctx, fmt.Sprintf("%s:user:%s", s.channelPrefix, userID), models.Notification{
		Type:      eventType,
		UserID:    userID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
}

// NotifyAdmins publishes an event on the shared admin channel.
func (s *NotificationService) NotifyAdmins(ctx context.Context, eventType models.NotificationType, data map[string]interface{}) {
	s.publish(ctx, fmt.Sprintf("%s:admins", s.channelPrefix), models.Notification{
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *NotificationService) publish(ctx context.Context, channel string, n models.Notification) {
	if s == nil || !s.enabled {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("failed to encode notification", zap.String("type", string(n.Type)), zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish notification",
			zap.String("channel", channel),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}
