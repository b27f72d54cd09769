package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Email tasks
	TypeInquiryNotification = "email:inquiry_notification"
	TypeNewsletterWelcome   = "email:newsletter_welcome"

	// Auth maintenance
	TypePruneSessions = "auth:prune_sessions"
)

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	InquiryID string `json:"inquiry_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Enqueuer is the subset of *asynq.Client used to schedule tasks
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func newTask(typename string, payload TaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(typename, data), nil
}

// NewInquiryNotificationTask creates a task to email the office about a contact inquiry
func NewInquiryNotificationTask(inquiryID string) (*asynq.Task, error) {
	return newTask(TypeInquiryNotification, TaskPayload{InquiryID: inquiryID})
}

// NewNewsletterWelcomeTask creates a task to send the welcome email to a subscriber
func NewNewsletterWelcomeTask(email string) (*asynq.Task, error) {
	return newTask(TypeNewsletterWelcome, TaskPayload{Email: email})
}

// NewPruneSessionsTask creates a task to delete expired and revoked auth sessions
func NewPruneSessionsTask() (*asynq.Task, error) {
	return newTask(TypePruneSessions, TaskPayload{})
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
