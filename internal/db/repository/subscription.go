package repository

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/google/uuid"
)

// SubscriptionRepository defines operations for managing channel subscriptions.
type SubscriptionRepository interface {
	// Create records a subscription. Subscribing twice fails with db.ErrDuplicateKey.
	Create(ctx context.Context, q db.DBTX, sub *models.Subscription) error

	// Delete removes a subscription and reports whether one existed.
	Delete(ctx context.Context, q db.DBTX, subscriberID, channelID uuid.UUID) (bool, error)

	// ListSubscriberIDs returns everyone currently subscribed to a channel.
	ListSubscriberIDs(ctx context.Context, q db.DBTX, channelID uuid.UUID) ([]uuid.UUID, error)
}

type subscriptionRepository struct{}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) Create(ctx context.Context, q db.DBTX, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt).Scan(&sub.CreatedAt)
	if err != nil {
		return db.WrapError(err, "create subscription")
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, q db.DBTX, subscriberID, channelID uuid.UUID) (bool, error) {
	result, err := q.Exec(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
		subscriberID, channelID,
	)
	if err != nil {
		return false, db.WrapError(err, "delete subscription")
	}
	return result.RowsAffected() > 0, nil
}

func (r *subscriptionRepository) ListSubscriberIDs(ctx context.Context, q db.DBTX, channelID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT subscriber_id FROM subscriptions WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, db.WrapError(err, "list subscribers")
	}
	defer rows.Close()

	return scanIDs(rows)
}
