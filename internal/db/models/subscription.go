package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription records that SubscriberID follows the channel owned by ChannelID.
type Subscription struct {
	ID           uuid.UUID `db:"id" json:"id"`
	SubscriberID uuid.UUID `db:"subscriber_id" json:"subscriber_id"`
	ChannelID    uuid.UUID `db:"channel_id" json:"channel_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewSubscription creates a Subscription.
func NewSubscription(subscriberID, channelID uuid.UUID) *Subscription {
	return &Subscription{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    time.Now(),
	}
}
