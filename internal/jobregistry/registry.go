// Package jobregistry is the process-wide, non-persistent home for
// import job state (§4.5, §9): jobs live only in memory, keyed by id,
// and are evicted a fixed interval after they finish so a long-running
// server does not accumulate history forever.
package jobregistry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ontocore/ontocore-server/internal/rf2"
)

// DefaultTTL is how long a finished job (COMPLETED or FAILED) stays
// visible in the registry before Sweep evicts it.
const DefaultTTL = 24 * time.Hour

type entry struct {
	job      *rf2.Job
	finished time.Time // zero until the job leaves RUNNING
}

// Registry is a sync.Map-backed store of in-flight and recently
// finished import jobs. The zero value is not usable; use New.
type Registry struct {
	ttl   time.Duration
	items sync.Map // uuid.UUID -> *entry
}

func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{ttl: ttl}
}

// Put inserts or replaces a job's snapshot under its own id.
func (r *Registry) Put(job *rf2.Job) {
	if job == nil {
		return
	}
	e := &entry{job: job}
	if job.Status == rf2.StatusCompleted || job.Status == rf2.StatusFailed {
		e.finished = time.Now()
	}
	r.items.Store(job.ID, e)
}

// Get returns the job for id, or false if it is unknown or has been
// evicted.
func (r *Registry) Get(id uuid.UUID) (*rf2.Job, bool) {
	v, ok := r.items.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry).job, true
}

// List returns every job currently held, in no particular order.
func (r *Registry) List() []*rf2.Job {
	var out []*rf2.Job
	r.items.Range(func(_, v interface{}) bool {
		out = append(out, v.(*entry).job)
		return true
	})
	return out
}

// Remove drops a job unconditionally, e.g. on explicit cancellation.
func (r *Registry) Remove(id uuid.UUID) {
	r.items.Delete(id)
}

// Sweep evicts jobs that finished more than the registry's TTL ago.
// Callers run this on a ticker; it does nothing to jobs still WAITING
// or RUNNING regardless of age.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-r.ttl)
	evicted := 0
	r.items.Range(func(k, v interface{}) bool {
		e := v.(*entry)
		if !e.finished.IsZero() && e.finished.Before(cutoff) {
			r.items.Delete(k)
			evicted++
		}
		return true
	})
	return evicted
}

// Run blocks, sweeping on interval until done is closed. Intended to be
// launched as a goroutine from the app's startup wiring.
func (r *Registry) Run(done <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
