package service

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionService maintains the subscriber sets fan-out reads from.
type SubscriptionService struct {
	tx     db.TxRunner
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(tx db.TxRunner, repos *repository.Repositories, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{tx: tx, repos: repos, logger: logger.Named("subscriptions")}
}

// Toggle subscribes subscriberID to channelID, or unsubscribes if already
// subscribed. It reports whether the caller is subscribed afterwards.
func (s *SubscriptionService) Toggle(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error) {
	if subscriberID == channelID {
		return false, newError(KindValidation, "cannot subscribe to your own channel", nil)
	}

	var subscribed bool
	err := s.tx.WithinTx(ctx, func(tx db.DBTX) error {
		removed, err := s.repos.Subscriptions.Delete(ctx, tx, subscriberID, channelID)
		if err != nil {
			return err
		}

		typ, message := models.NotificationUnsubscribe, "A subscriber left your channel"
		if !removed {
			if err := s.repos.Subscriptions.Create(ctx, tx, models.NewSubscription(subscriberID, channelID)); err != nil {
				return err
			}
			subscribed = true
			typ, message = models.NotificationSubscribe, "You have a new subscriber"
		}

		sender := subscriberID
		n := models.NewNotification(channelID, &sender, typ, message)
		_, err = s.repos.Notifications.CreateBatch(ctx, tx, []*models.Notification{n})
		return err
	})
	if err != nil {
		if db.IsDuplicateKey(err) {
			return false, newError(KindConflict, "subscription changed concurrently", err)
		}
		return false, newError(KindTransactionAborted, "could not toggle subscription", err)
	}

	s.logger.Info("subscription toggled",
		zap.String("subscriber_id", subscriberID.String()),
		zap.String("channel_id", channelID.String()),
		zap.Bool("subscribed", subscribed),
	)
	return subscribed, nil
}
