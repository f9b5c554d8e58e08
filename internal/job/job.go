// Package job tracks the lifecycle of submitted denoising work: an
// in-memory store of job records, the status state machine, and the
// sweeper that evicts expired records.
package job

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one submitted unit of work. ResultRef is set only on the
// transition into completed, Error only on the transition into failed;
// neither is set while the job is still pending or processing.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	SourceRef string    `json:"source_ref"`
	ResultRef string    `json:"result_ref,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
