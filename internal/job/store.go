package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job id is unknown or already evicted.
var ErrNotFound = errors.New("job not found")

// ErrBadTransition reports an illegal status transition. Hitting it
// indicates a bug in the caller, not a recoverable job failure.
var ErrBadTransition = errors.New("illegal status transition")

// Store is the process-wide job table. A single mutex covers all
// mutations; reads return copies so callers never observe a partial
// write. Only the worker loop transitions statuses and only the
// sweeper (or an explicit Evict) removes records.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create inserts a new pending record and returns its copy. IDs are
// random UUIDs, so they are safe to hand to untrusted callers.
func (s *Store) Create(sourceRef string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		SourceRef: sourceRef,
		CreatedAt: s.now(),
	}
	s.jobs[j.ID] = j
	return *j
}

// Get returns a copy of the record or ErrNotFound.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// MarkProcessing transitions pending -> processing.
func (s *Store) MarkProcessing(id string) error {
	return s.transition(id, StatusPending, func(j *Job) {
		j.Status = StatusProcessing
	})
}

// MarkCompleted transitions processing -> completed and records the
// result artifact.
func (s *Store) MarkCompleted(id, resultRef string) error {
	return s.transition(id, StatusProcessing, func(j *Job) {
		j.Status = StatusCompleted
		j.ResultRef = resultRef
	})
}

// MarkFailed transitions processing -> failed and records the reason.
func (s *Store) MarkFailed(id, reason string) error {
	return s.transition(id, StatusProcessing, func(j *Job) {
		j.Status = StatusFailed
		j.Error = reason
	})
}

func (s *Store) transition(id string, from Status, apply func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status != from {
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, id, j.Status)
	}
	apply(j)
	return nil
}

// Evict removes a record. Unknown ids are a no-op.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// EvictExpired removes every record created before cutoff, regardless
// of status, and returns how many were removed. A pending or
// processing job past the cutoff is a stuck job and goes too.
func (s *Store) EvictExpired(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
