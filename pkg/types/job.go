// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobStatus tracks a generation job through the pipeline state machine.
type JobStatus string

const (
	StatusPending      JobStatus = "pending"
	StatusDecomposing  JobStatus = "decomposing"
	StatusResearching  JobStatus = "researching"
	StatusSynthesizing JobStatus = "synthesizing"
	StatusValidating   JobStatus = "validating"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state. A job in a
// terminal state is never re-run; RunJob on such a job is a no-op.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationJob is one request to produce study material for a topic.
// The pipeline orchestrator is the only mutator of job state; callers
// observe progress through the job store.
type GenerationJob struct {
	// ID is a stable identifier for the job.
	ID string `json:"id" yaml:"id"`

	// TargetID identifies the entity the finished document belongs to.
	// Saving a document for a target replaces any prior document.
	TargetID string `json:"target_id" yaml:"target_id"`

	// Topic is the subject the user asked material for.
	Topic string `json:"topic" yaml:"topic"`

	// Tags are optional topic labels supplied at creation.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Status is the current pipeline state.
	Status JobStatus `json:"status" yaml:"status"`

	// Progress is a monotonically increasing fraction in [0, 1].
	Progress float64 `json:"progress" yaml:"progress"`

	// ProgressMessage is a human-readable description of the current stage.
	ProgressMessage string `json:"progress_message,omitempty" yaml:"progress_message,omitempty"`

	// Attempts counts synthesize-and-validate cycles performed so far.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Error records the failure message for a FAILED job. Empty otherwise.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// CreatedAt is when the job was requested.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is when the job state last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
