package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/segments"
	"github.com/aplay/mscribe/internal/pkg/status"
)

var (
	// ErrNotFound indicates no job with such ID
	ErrNotFound = errors.New("job not found")
	// ErrActive indicates operation is not allowed for a non terminal job
	ErrActive = errors.New("job is still processing")
	// ErrTerminal indicates the job already reached a final state
	ErrTerminal = errors.New("job is in terminal state")
)

// Result keeps the full output of a completed job
type Result struct {
	Segments       []segments.Segment `json:"transcript"`
	SpeakerCount   int                `json:"speaker_count"`
	Diarization    *segments.Stats    `json:"diarization,omitempty"`
	Analysis       string             `json:"analysis"`
	Language       string             `json:"language,omitempty"`
	ProcessingTime float64            `json:"processing_time"`
	Truncated      bool               `json:"analysis_truncated,omitempty"`
}

// Job is the record for one submitted processing request.
// Invariants kept by the registry: exactly one of Result/Error is set and
// only in a terminal state, terminal states are absorbing, Progress never
// decreases while the job is processing, Progress == 100 iff completed.
type Job struct {
	ID        string
	Status    status.Status
	Step      string
	Progress  int
	Options   api.Options
	StartedAt time.Time
	Result    *Result
	Error     string
}

// Registry keeps all job records for the process lifetime. It is the only
// shared mutable state of the system - every access is an atomic
// read-modify-write keyed by job ID. No persistence, records survive until
// deleted or the process exits.
type Registry struct {
	lock sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry creates the job registry
func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}, now: time.Now}
}

// Create registers a new job record. The queued state is instantaneous -
// the returned record is already processing at the first pipeline step.
func (r *Registry) Create(id string, opts api.Options) *Job {
	r.lock.Lock()
	defer r.lock.Unlock()
	j := &Job{ID: id, Status: status.Processing, Step: status.StepUploading,
		Progress: 1, Options: opts, StartedAt: r.now()}
	r.jobs[id] = j
	res := *j
	return &res
}

// Get returns a copy of the job record. Result is shared and must be
// treated as read-only by callers.
func (r *Registry) Get(id string) (*Job, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	res := *j
	return &res, true
}

// Advance moves a processing job to the next pipeline step.
// Progress may only grow.
func (r *Registry) Advance(id, step string, progress int) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	j.Step = step
	if progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

// Complete moves the job to the completed state and attaches the result
// atomically - no reader may observe completed without a result
func (r *Registry) Complete(id string, res *Result) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	j.Status = status.Completed
	j.Step = status.StepFinished
	j.Progress = 100
	j.Result = res
	j.Error = ""
	return nil
}

// Fail moves the job to the failed state. Progress is reset to 0 - it is
// not meaningful after failure. The first failure wins, a repeated call
// on a terminal job is a no-op.
func (r *Registry) Fail(id, msg string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = status.Failed
	j.Progress = 0
	j.Error = msg
	j.Result = nil
	return nil
}

// Delete removes one terminal job. Deleting a processing job is rejected -
// its background task would be left with no record to report into.
func (r *Registry) Delete(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !j.Status.Terminal() {
		return ErrActive
	}
	delete(r.jobs, id)
	return nil
}

// ClearTerminal drops all completed and failed jobs and returns the count
// removed. This is the sole eviction mechanism - callers invoke it
// periodically to bound memory growth.
func (r *Registry) ClearTerminal() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	res := 0
	for id, j := range r.jobs {
		if j.Status.Terminal() {
			delete(r.jobs, id)
			res++
		}
	}
	return res
}

// Counts keeps job totals per state
type Counts struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Stats counts jobs per state
func (r *Registry) Stats() Counts {
	r.lock.Lock()
	defer r.lock.Unlock()
	res := Counts{Total: len(r.jobs)}
	for _, j := range r.jobs {
		switch j.Status {
		case status.Processing:
			res.Processing++
		case status.Completed:
			res.Completed++
		case status.Failed:
			res.Failed++
		}
	}
	return res
}
