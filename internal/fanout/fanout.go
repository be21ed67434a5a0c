// Package fanout notifies a channel's subscribers that new content is out.
package fanout

import (
	"context"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event describes a publish that subscribers should hear about.
type Event struct {
	ActorID      uuid.UUID `json:"actor_id"`
	ContentID    uuid.UUID `json:"content_id"`
	ContentTitle string    `json:"content_title"`
	Kind         string    `json:"kind"`
}

// Message renders the notification text for the event.
func (e Event) Message() string {
	noun := "video"
	if e.Kind == string(models.KindShort) {
		noun = "short"
	}
	return fmt.Sprintf("New %s published: %s", noun, e.ContentTitle)
}

// Service writes one notification per current subscriber in a single bulk insert.
type Service struct {
	db            db.DBTX
	subscriptions repository.SubscriptionRepository
	notifications repository.NotificationRepository
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewService creates a fan-out Service.
func NewService(
	q db.DBTX,
	subscriptions repository.SubscriptionRepository,
	notifications repository.NotificationRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:            q,
		subscriptions: subscriptions,
		notifications: notifications,
		metrics:       m,
		logger:        logger.Named("fanout"),
	}
}

// Run resolves the subscriber set at call time and inserts the
// notifications. It returns how many were written.
func (s *Service) Run(ctx context.Context, event Event) (int64, error) {
	subscribers, err := s.subscriptions.ListSubscriberIDs(ctx, s.db, event.ActorID)
	if err != nil {
		s.metrics.Notifications.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("resolve subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return 0, nil
	}

	sender := event.ActorID
	contentID := event.ContentID
	message := event.Message()

	batch := make([]*models.Notification, 0, len(subscribers))
	for _, recipient := range subscribers {
		n := models.NewNotification(recipient, &sender, models.NotificationUpload, message)
		n.ContentID = &contentID
		batch = append(batch, n)
	}

	written, err := s.notifications.CreateBatch(ctx, s.db, batch)
	if err != nil {
		s.metrics.Notifications.WithLabelValues("failed").Add(float64(len(batch)))
		return 0, fmt.Errorf("insert notifications: %w", err)
	}

	s.metrics.Notifications.WithLabelValues("written").Add(float64(written))
	s.logger.Info("fan-out complete",
		zap.String("content_id", event.ContentID.String()),
		zap.Int64("notifications", written),
	)
	return written, nil
}
