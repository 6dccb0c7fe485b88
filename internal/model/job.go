package model

import (
	"github.com/google/uuid"
)

// Status is the lifecycle state of a simulation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Params holds the user-supplied simulation parameters for a job.
type Params struct {
	BlurSigma  float64 `json:"blur_sigma"`  // gaussian blur sigma, [1, 20]
	Iterations int     `json:"iterations"`  // simulation steps, [10_000, 5_000_000]
	StartX     float64 `json:"start_x"`     // starting X position in [0, 1]
	StartY     float64 `json:"start_y"`     // starting Y position in [0, 1]
}

// Snapshot is a read-only view of a job, safe to hand out while the
// background run keeps mutating the live record.
type Snapshot struct {
	ID       uuid.UUID `json:"job_id"`
	Status   Status    `json:"status"`
	Progress float64   `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

// Notification is a single message on a job's progress stream.
type Notification struct {
	Type             string  `json:"type"` // "status", "progress", "heartbeat", "complete", "error"
	Status           Status  `json:"status,omitempty"`
	Progress         float64 `json:"progress,omitempty"`
	CurrentIteration int     `json:"current_iteration,omitempty"`
	TotalIterations  int     `json:"total_iterations,omitempty"`
	TrajectoryPoints int     `json:"trajectory_points,omitempty"`
	Error            string  `json:"error,omitempty"`
	ImageBase64      string  `json:"image_base64,omitempty"`
}
