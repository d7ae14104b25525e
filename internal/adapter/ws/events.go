package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types broadcast over the hub.
const (
	EventTaskAccepted  = "task.accepted"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// TaskEvent is the payload for all task lifecycle events.
type TaskEvent struct {
	EventID   string    `json:"event_id"`
	TaskID    string    `json:"task_id"`
	Round     int       `json:"round"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastTaskEvent publishes a task lifecycle event to all clients.
func (h *Hub) BroadcastTaskEvent(ctx context.Context, eventType, taskID string, round int, detail string) {
	payload, err := json.Marshal(TaskEvent{
		EventID:   uuid.NewString(),
		TaskID:    taskID,
		Round:     round,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: payload})
}
