// pkg/schema/events.go
package schema

// JobAccepted is the admission response handed back to the client.
type JobAccepted struct {
	JobID string `json:"job_id"`
}

// JobStatus is the polling response for a single job.
type JobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// JobEvent is published on the bus when a job is submitted and when it
// reaches a terminal state.
type JobEvent struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	SourceRef  string `json:"source_ref"`
	ResultRef  string `json:"result_ref,omitempty"`
	Error      string `json:"error,omitempty"`
	Method     string `json:"method"`
	Strength   int    `json:"strength"`
	Grayscale  bool   `json:"grayscale"`
	HappenedAt int64  `json:"happened_at"`
}
