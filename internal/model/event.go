package model

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types published to the broker.
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// Event is a terminal job lifecycle event for external consumers.
type Event struct {
	JobID     uuid.UUID `json:"job_id"`
	Type      string    `json:"type"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
