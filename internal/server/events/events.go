// Package events publishes task lifecycle notifications to Kafka.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Event types.
const (
	TaskCreated     = "todo.created"
	TaskCompleted   = "todo.completed"
	TaskUncompleted = "todo.uncompleted"
	TaskUpdated     = "todo.updated"
	TaskDeleted     = "todo.deleted"
)

// Event is the envelope written to the topic.
type Event struct {
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Data      TaskData  `json:"data"`
}

type TaskData struct {
	TaskID    string     `json:"task_id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Publisher delivers events keyed by owner id, so one user's events keep
// their order within a partition.
type Publisher interface {
	Publish(ctx context.Context, key string, ev Event) error
	Close() error
}

// ForTask builds the event for a task snapshot taken after the write.
func ForTask(eventType string, t *models.Task, at time.Time) Event {
	d := TaskData{TaskID: t.ID, UserID: t.UserID, Title: t.Title}
	switch eventType {
	case TaskCreated:
		d.CreatedAt = &t.CreatedAt
	case TaskCompleted, TaskUncompleted, TaskUpdated:
		c := t.Completed
		d.Completed = &c
		d.UpdatedAt = &t.UpdatedAt
	}
	return Event{Type: eventType, Timestamp: at.UTC(), Data: d}
}

// ForDeletedTask builds a todo.deleted event; only ids survive a delete.
func ForDeletedTask(userID, taskID string, at time.Time) Event {
	return Event{
		Type:      TaskDeleted,
		Timestamp: at.UTC(),
		Data:      TaskData{TaskID: taskID, UserID: userID},
	}
}

// ToggleType picks the event type from the completion state after a toggle.
func ToggleType(completed bool) string {
	if completed {
		return TaskCompleted
	}
	return TaskUncompleted
}

// NopPublisher discards events. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
