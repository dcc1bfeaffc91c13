// Package pipeline drives the Connection Pipeline (§4.5) and the bounded
// Work Queue (§4.6) that feeds the Sink Facade.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/galileosky/ingest-gateway/metrics"
	"github.com/galileosky/ingest-gateway/records"
)

// Job is one unit of work handed to the queue: a decoded record plus the
// bookkeeping the worker needs to retry it.
type Job struct {
	ID         string
	Record     *records.Record
	EnqueuedAt time.Time
	Retries    int
}

// Stats mirrors §4.6's "queued, processed, failed, dropped, rolling
// average processing time".
type Stats struct {
	Queued           uint64
	Processed        uint64
	Failed           uint64
	Dropped          uint64
	AvgProcessTimeMs float64
}

// Queue is a bounded FIFO of Jobs. Unlike a plain buffered channel it
// supports the spec's drop-oldest-on-full semantics and re-insertion at
// the front for retries, so it's built on a mutex-guarded slice with a
// condition variable waking workers on enqueue - the "condition
// variable / channel" design note in spec.md §9 over a polling restart
// loop.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []*Job
	maxDepth int
	closed   bool

	stats      Stats
	totalProcessTimeMs float64
}

// NewQueue returns a Queue bounded at maxDepth.
func NewQueue(maxDepth int) *Queue {
	q := &Queue{maxDepth: maxDepth}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// EnqueueResult is returned by Enqueue (§4.6: "returns immediately with
// Accepted or Rejected{reason: QueueFull}").
type EnqueueResult int

const (
	Accepted EnqueueResult = iota
	RejectedQueueFull
	RejectedClosed
)

// Enqueue appends rec as a new Job. If the queue is at maxDepth, the
// oldest pending job is dropped to make room (newest telemetry wins,
// §4.6). Enqueue never blocks.
func (q *Queue) Enqueue(rec *records.Record) EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return RejectedClosed
	}

	result := Accepted
	if len(q.jobs) >= q.maxDepth {
		q.jobs = q.jobs[1:]
		q.stats.Dropped++
		metrics.QueueDroppedJobs.Inc()
		result = RejectedQueueFull
	}

	job := &Job{ID: uuid.NewString(), Record: rec, EnqueuedAt: time.Now()}
	q.jobs = append(q.jobs, job)
	q.stats.Queued++
	metrics.QueueDepth.Set(float64(len(q.jobs)))
	q.cond.Signal()

	return result
}

// Pop blocks until a job is available or the queue is closed and drained,
// in which case it returns (nil, false).
func (q *Queue) Pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	metrics.QueueDepth.Set(float64(len(q.jobs)))
	return job, true
}

// RequeueFront re-inserts job at the head of the queue for a retry
// (§4.6: "retry with re-insertion at the front of the queue until
// maxRetries").
func (q *Queue) RequeueFront(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs = append([]*Job{job}, q.jobs...)
	metrics.QueueDepth.Set(float64(len(q.jobs)))
	q.cond.Signal()
}

// RecordProcessed updates stats after a worker finishes job, successfully
// or not. elapsed feeds the rolling average processing time.
func (q *Queue) RecordProcessed(ok bool, elapsed time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ok {
		q.stats.Processed++
	} else {
		q.stats.Failed++
	}

	n := float64(q.stats.Processed + q.stats.Failed)
	q.totalProcessTimeMs += float64(elapsed.Milliseconds())
	if n > 0 {
		q.stats.AvgProcessTimeMs = q.totalProcessTimeMs / n
	}
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close rejects further enqueues and wakes all waiting workers so they can
// observe the closed queue and exit once it drains (§4.6 Cancellation:
// "new enqueues are rejected; in-flight jobs run to completion or timeout;
// queue is drained").
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
