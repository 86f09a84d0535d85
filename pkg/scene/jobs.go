package scene

import (
	"context"
	"sync"

	"github.com/justyntemme/loopstation/pkg/loop"
)

// JobKind says what a job does.
type JobKind int

const (
	// JobWaveform rebuilds and publishes a loop's waveform overview.
	JobWaveform JobKind = iota
	// JobStateChange logs a loop's new state.
	JobStateChange
)

func (k JobKind) String() string {
	switch k {
	case JobWaveform:
		return "waveform"
	case JobStateChange:
		return "state"
	default:
		return "unknown"
	}
}

// Job is deferred work for a loop. Jobs are comparable; queueing a job that
// is already pending does nothing.
type Job struct {
	Kind   JobKind
	Handle LoopHandle
	State  loop.State
}

// JobQueue is a deduplicating FIFO of jobs. Push never blocks.
type JobQueue struct {
	mu      sync.Mutex
	jobs    []Job
	pending map[Job]struct{}
	wake    chan struct{}
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		pending: make(map[Job]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Push appends the jobs that are not already pending and wakes the worker.
func (q *JobQueue) Push(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	added := false
	for _, j := range jobs {
		if _, ok := q.pending[j]; ok {
			continue
		}
		q.pending[j] = struct{}{}
		q.jobs = append(q.jobs, j)
		added = true
	}
	q.mu.Unlock()

	if added {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// Drain removes and returns every pending job in push order.
func (q *JobQueue) Drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.jobs
	q.jobs = nil
	for _, j := range jobs {
		delete(q.pending, j)
	}
	return jobs
}

// Len returns the number of pending jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Wake is signalled after Push adds work.
func (q *JobQueue) Wake() <-chan struct{} { return q.wake }

// RunJobs drains the job queue until ctx is cancelled. It never holds the job
// queue lock while running a job.
func (s *Scene) RunJobs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.jobs.Wake():
		}
		for _, j := range s.jobs.Drain() {
			s.runJob(j)
		}
	}
}

// runJob takes the audio lock only to copy a bounded slice of loop audio;
// summarising it happens after the lock is released.
func (s *Scene) runJob(j Job) {
	switch j.Kind {
	case JobWaveform:
		s.mu.Lock()
		l, ok := s.resolve(j.Handle)
		var c loop.WaveformCapture
		if ok {
			c = l.CaptureWaveform()
		}
		buckets := s.cfg.WaveformBuckets
		s.mu.Unlock()
		if ok {
			l.PublishWaveform(c.Build(buckets))
		}

	case JobStateChange:
		s.log.Debug("station %d take %d loop %d: %v", j.Handle.Station, j.Handle.Take, j.Handle.Loop, j.State)
	}
}
