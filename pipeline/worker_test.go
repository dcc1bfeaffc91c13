package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/galileosky/ingest-gateway/records"
	"github.com/galileosky/ingest-gateway/sink"
	"github.com/galileosky/ingest-gateway/tags"
)

type countingSink struct {
	mu         sync.Mutex
	persists   int
	failUntil  int
	persistErr error
}

func (s *countingSink) Persist(context.Context, *records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	if s.persists <= s.failUntil {
		return s.persistErr
	}
	return nil
}

func (s *countingSink) Broadcast(context.Context, string, *records.Record) error { return nil }
func (s *countingSink) EvaluateAlerts(context.Context, string, *records.Record) error {
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

func discardLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRecord(seq uint16) *records.Record {
	rec := &records.Record{}
	rec.Append(0x10, tags.U16(seq))
	return rec
}

func TestWorkerPoolProcessesSuccessfully(t *testing.T) {
	q := NewQueue(10)
	cs := &countingSink{}
	facade := sink.NewFacade(cs, discardLog(), nil)
	pool := NewWorkerPool(q, facade, time.Second, 2, discardLog())
	pool.Start(2)
	defer pool.Stop()

	q.Enqueue(newRecord(1))
	q.Enqueue(newRecord(2))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cs.count() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := cs.count(); got != 2 {
		t.Fatalf("persisted %d records, want 2", got)
	}

	stats := q.Stats()
	if stats.Processed != 2 {
		t.Errorf("Stats().Processed = %d, want 2", stats.Processed)
	}
}

func TestWorkerPoolRetriesThenSucceeds(t *testing.T) {
	q := NewQueue(10)
	cs := &countingSink{failUntil: 1, persistErr: errors.New("transient")}
	facade := sink.NewFacade(cs, discardLog(), nil)
	pool := NewWorkerPool(q, facade, time.Second, 3, discardLog())
	pool.Start(1)
	defer pool.Stop()

	q.Enqueue(newRecord(1))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.Stats().Processed == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := q.Stats()
	if stats.Processed != 1 || stats.Failed != 0 {
		t.Fatalf("Stats() = %+v, want Processed=1 Failed=0 after a retried-then-successful job", stats)
	}
	if cs.count() != 2 {
		t.Errorf("Persist() called %d times, want 2 (one failure, one retry success)", cs.count())
	}
}

func TestWorkerPoolExhaustsRetriesAndCountsFailed(t *testing.T) {
	q := NewQueue(10)
	cs := &countingSink{failUntil: 100, persistErr: errors.New("permanent")}
	facade := sink.NewFacade(cs, discardLog(), nil)
	pool := NewWorkerPool(q, facade, time.Second, 1, discardLog())
	pool.Start(1)
	defer pool.Stop()

	q.Enqueue(newRecord(1))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.Stats().Failed == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := q.Stats()
	if stats.Failed != 1 {
		t.Fatalf("Stats().Failed = %d, want 1 after retries exhausted", stats.Failed)
	}
	if cs.count() != 2 {
		t.Errorf("Persist() called %d times, want 2 (initial attempt + 1 retry)", cs.count())
	}
}
