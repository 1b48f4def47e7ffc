package jobs

import (
	"sort"
	"sync"
	"time"
)

// Registry is the set of known jobs keyed by handle.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job, 64)}
}

func (r *Registry) add(j *Job) {
	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()
}

// Get returns the job for id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// List returns snapshots of every job, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	all := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, len(all))
	for i, j := range all {
		out[i] = j.Snapshot()
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Prune removes terminal jobs that finished before cutoff and returns how
// many were removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		s := j.Snapshot()
		if s.Status.Terminal() && s.FinishedAt != nil && s.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}
