package photograde

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// JobStatus is the lifecycle state of an async render.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the status record for one async render. It outlives the request
// that submitted it and is mutated only by the tracker.
type Job struct {
	ID         uuid.UUID `json:"job_id"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrJobNotFound is returned by Status for unknown or purged job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("job queue full")
	// ErrTrackerClosed is returned by Submit after Close.
	ErrTrackerClosed = errors.New("tracker closed")
)

type jobTask struct {
	id  uuid.UUID
	req Request
}

// Tracker runs renders on a bounded worker pool and keeps an in-memory
// id-to-status map. Single-process by design; callers poll Status.
type Tracker struct {
	orch  *Orchestrator
	log   zerolog.Logger
	queue chan jobTask
	g     *errgroup.Group

	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Job
	closed bool
}

// NewTracker starts workers goroutines consuming submitted renders.
func NewTracker(o *Orchestrator, workers int, log zerolog.Logger) *Tracker {
	if workers < 1 {
		workers = 1
	}
	t := &Tracker{
		orch:  o,
		log:   log,
		queue: make(chan jobTask, 128),
		g:     &errgroup.Group{},
		jobs:  make(map[uuid.UUID]*Job),
	}
	for i := 0; i < workers; i++ {
		t.g.Go(func() error {
			for task := range t.queue {
				t.run(task)
			}
			return nil
		})
	}
	return t
}

// Submit queues a render and returns its job id immediately. It never
// blocks: a full queue rejects with ErrQueueFull, and submitting after
// Close rejects with ErrTrackerClosed.
func (t *Tracker) Submit(req Request) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return uuid.Nil, ErrTrackerClosed
	}
	id := uuid.New()
	now := time.Now()
	// The record goes in before the enqueue so a worker can never pick
	// up a task whose job is not yet visible.
	t.jobs[id] = &Job{ID: id, Status: JobPending, CreatedAt: now, UpdatedAt: now}
	select {
	case t.queue <- jobTask{id: id, req: req}:
	default:
		delete(t.jobs, id)
		return uuid.Nil, ErrQueueFull
	}
	return id, nil
}

// Status returns a copy of the job record.
func (t *Tracker) Status(id uuid.UUID) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *j, nil
}

// Purge drops terminal jobs whose last update is older than retention and
// returns the number removed.
func (t *Tracker) Purge(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, j := range t.jobs {
		if (j.Status == JobCompleted || j.Status == JobFailed) && j.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

// Close stops accepting work and waits for in-flight renders. Safe to
// call more than once.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	close(t.queue)
	_ = t.g.Wait()
}

func (t *Tracker) run(task jobTask) {
	t.update(task.id, func(j *Job) {
		j.Status = JobProcessing
		j.Progress = 10
	})
	// The submitting request is long gone; renders get their own context.
	res := t.orch.Render(context.Background(), task.req)
	t.update(task.id, func(j *Job) {
		if res.Success {
			j.Status = JobCompleted
			j.Progress = 100
			j.OutputPath = res.OutputPath
		} else {
			j.Status = JobFailed
			j.Error = res.Message
		}
	})
	if !res.Success {
		t.log.Warn().Str("job", task.id.String()).Str("reason", res.Message).Msg("async render failed")
	}
}

func (t *Tracker) update(id uuid.UUID, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = time.Now()
	}
}
