// Package jobs runs long operations asynchronously behind opaque handles.
//
// A Registry owns the jobs; each Job guards its own fields so readers polling
// status never contend with the worker beyond a single job's lock.
package jobs

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Snapshot is a consistent, immutable view of a job.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     Status     `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job is one asynchronous unit of work.
type Job struct {
	mu sync.RWMutex

	id   string
	kind string

	status     Status
	progress   int
	message    string
	err        string
	result     any
	createdAt  time.Time
	updatedAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	done chan struct{}
}

func newJob(id, kind string, now time.Time) *Job {
	return &Job{
		id:        id,
		kind:      kind,
		status:    StatusPending,
		message:   "queued",
		createdAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
	}
}

// ID returns the job handle.
func (j *Job) ID() string { return j.id }

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Snapshot returns the current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:        j.id,
		Kind:      j.kind,
		Status:    j.status,
		Progress:  j.progress,
		Message:   j.message,
		Error:     j.err,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		s.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// Result returns the value produced by a completed job.
func (j *Job) Result() (any, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.status != StatusCompleted {
		return nil, false
	}
	return j.result, true
}

// setProgress records progress. Decreases and updates after a terminal
// state are ignored, so observers see a non-decreasing value.
func (j *Job) setProgress(percent int, message string, now time.Time) (Snapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return Snapshot{}, false
	}
	if percent > 100 {
		percent = 100
	}
	changed := false
	if percent > j.progress {
		j.progress = percent
		changed = true
	}
	if message != "" && message != j.message {
		j.message = message
		changed = true
	}
	if !changed {
		return Snapshot{}, false
	}
	j.updatedAt = now
	return j.snapshotLocked(), true
}

func (j *Job) start(now time.Time) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.message = "running"
	j.startedAt = now
	j.updatedAt = now
	return j.snapshotLocked()
}

func (j *Job) complete(result any, now time.Time) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusCompleted
	j.progress = 100
	j.message = "completed"
	j.result = result
	j.finishedAt = now
	j.updatedAt = now
	close(j.done)
	return j.snapshotLocked()
}

func (j *Job) fail(msg string, now time.Time) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusFailed
	j.message = "failed"
	j.err = msg
	j.result = nil
	j.finishedAt = now
	j.updatedAt = now
	close(j.done)
	return j.snapshotLocked()
}
