package pipeline

import (
	"testing"
	"time"

	"github.com/galileosky/ingest-gateway/records"
	"github.com/galileosky/ingest-gateway/tags"
)

// TestQueueDropsOldestWhenFull is Scenario E (§8): enqueue past maxDepth
// and confirm the oldest pending job is the one dropped, not the newest.
func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)

	first := &records.Record{}
	first.Append(0x10, tags.U16(1))
	second := &records.Record{}
	second.Append(0x10, tags.U16(2))
	third := &records.Record{}
	third.Append(0x10, tags.U16(3))

	if res := q.Enqueue(first); res != Accepted {
		t.Fatalf("enqueue 1 = %v, want Accepted", res)
	}
	if res := q.Enqueue(second); res != Accepted {
		t.Fatalf("enqueue 2 = %v, want Accepted", res)
	}
	if res := q.Enqueue(third); res != RejectedQueueFull {
		t.Fatalf("enqueue 3 = %v, want RejectedQueueFull", res)
	}

	job, ok := q.Pop()
	if !ok {
		t.Fatalf("Pop() ok = false, want true")
	}
	seq, _ := job.Record.SequenceNumber()
	if seq != 2 {
		t.Errorf("first popped job sequence = %d, want 2 (oldest dropped)", seq)
	}

	stats := q.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.Queued != 3 {
		t.Errorf("Queued = %d, want 3", stats.Queued)
	}
}

func TestQueuePopBlocksThenUnblocksOnEnqueue(t *testing.T) {
	q := NewQueue(10)
	done := make(chan struct{})

	go func() {
		job, ok := q.Pop()
		if !ok || job == nil {
			t.Error("Pop() returned !ok or nil job")
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	rec := &records.Record{}
	rec.Append(0x02, tags.U16(100))
	q.Enqueue(rec)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop() never returned after Enqueue")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := NewQueue(10)
	done := make(chan bool)

	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop() ok = true after Close() on an empty queue, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() never returned after Close()")
	}
}

func TestQueueRequeueFrontIsPoppedNext(t *testing.T) {
	q := NewQueue(10)

	rec1 := &records.Record{}
	rec1.Append(0x10, tags.U16(1))
	rec2 := &records.Record{}
	rec2.Append(0x10, tags.U16(2))

	q.Enqueue(rec1)
	job2 := &Job{ID: "retry-me", Record: rec2}
	q.RequeueFront(job2)

	job, ok := q.Pop()
	if !ok || job.ID != "retry-me" {
		t.Fatalf("expected the requeued job first, got %+v", job)
	}
}
