package handler

import (
	"context"
	"net/http"

	"github.com/uptube/content-ingestion-go/internal/middleware"
	"github.com/uptube/content-ingestion-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber flips a subscription on or off.
type Subscriber interface {
	Toggle(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error)
}

// SubscriptionHandler serves the /subscriptions routes.
type SubscriptionHandler struct {
	subscriptions Subscriber
	logger        *zap.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subscriptions Subscriber, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// Toggle handles POST /subscriptions/:channelId.
func (h *SubscriptionHandler) Toggle(c *gin.Context) {
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return
	}
	subscriber, _ := middleware.ActorID(c)

	subscribed, err := h.subscriptions.Toggle(c.Request.Context(), subscriber, channelID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.SubscriptionResponse{ChannelID: channelID, Subscribed: subscribed})
}
