package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/galileosky/ingest-gateway/metrics"
	"github.com/galileosky/ingest-gateway/sink"
)

// WorkerPool runs maxConcurrency workers pulling Jobs off a Queue and
// running them through a sink.Facade with a per-job deadline (§4.6, §5).
type WorkerPool struct {
	queue      *Queue
	facade     *sink.Facade
	perJob     time.Duration
	maxRetries int
	log        logrus.FieldLogger

	wg sync.WaitGroup
}

// NewWorkerPool returns a WorkerPool that has not yet been started.
func NewWorkerPool(queue *Queue, facade *sink.Facade, perJobTimeout time.Duration, maxRetries int, log logrus.FieldLogger) *WorkerPool {
	return &WorkerPool{queue: queue, facade: facade, perJob: perJobTimeout, maxRetries: maxRetries, log: log}
}

// Start launches n worker goroutines. Call Stop to shut them down.
func (p *WorkerPool) Start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop closes the underlying queue and blocks until all workers have
// drained it and returned.
func (p *WorkerPool) Stop() {
	p.queue.Close()
	p.wg.Wait()
}

func (p *WorkerPool) run() {
	defer p.wg.Done()

	for {
		job, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.process(job)
	}
}

func (p *WorkerPool) process(job *Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.perJob)
	err := p.facade.Process(ctx, job.Record)
	cancel()
	elapsed := time.Since(start)

	if err == nil {
		p.queue.RecordProcessed(true, elapsed)
		return
	}

	if job.Retries < p.maxRetries {
		job.Retries++
		p.log.WithError(err).WithField("job_id", job.ID).
			WithField("retry", job.Retries).Warn("sink persist failed, retrying")
		p.queue.RequeueFront(job)
		return
	}

	p.log.WithError(err).WithField("job_id", job.ID).Error("sink persist failed, retries exhausted")
	p.queue.RecordProcessed(false, elapsed)
	metrics.SinkFailures.WithLabelValues("persist_exhausted").Inc()
}
