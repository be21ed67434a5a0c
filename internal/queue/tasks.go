package queue

import (
	"encoding/json"
	"fmt"

	"github.com/uptube/content-ingestion-go/internal/fanout"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeNotificationFanout = "notification:fanout"
	TypeOrphanSweep        = "maintenance:orphan-sweep"
)

// Queue names
const (
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

// FanoutPayload is the payload of a notification fan-out task.
type FanoutPayload struct {
	Event fanout.Event `json:"event"`
}

// NewFanoutTask builds the task for event.
func NewFanoutTask(event fanout.Event) (*asynq.Task, error) {
	if event.ActorID == uuid.Nil || event.ContentID == uuid.Nil {
		return nil, fmt.Errorf("fan-out event needs actor and content ids")
	}

	data, err := json.Marshal(FanoutPayload{Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fan-out payload: %w", err)
	}
	return asynq.NewTask(TypeNotificationFanout, data), nil
}

// UnmarshalFanoutPayload decodes a fan-out task payload.
func UnmarshalFanoutPayload(data []byte) (*FanoutPayload, error) {
	var payload FanoutPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &payload, nil
}

// NewOrphanSweepTask builds the periodic sweep task. It carries no payload.
func NewOrphanSweepTask() *asynq.Task {
	return asynq.NewTask(TypeOrphanSweep, nil)
}
