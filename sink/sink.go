// Package sink defines the narrow RecordSink interface the Work Queue's
// workers call into, and a Facade that enforces the best-effort semantics
// of §4.7: only persist failures count toward job retries.
package sink

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/galileosky/ingest-gateway/records"
)

// RecordSink is the single interface the core ingest gateway depends on
// for downstream persistence, broadcast and alerting. Concrete
// implementations (a database, a message broker, a notification system)
// are explicitly out of the core's scope (§1 Non-goals) - the core only
// needs something that satisfies this interface.
type RecordSink interface {
	// Persist stores the record durably. Persist is expected to be
	// idempotent by (imei, recordTimestamp, recordNumber) - duplicates
	// are not errors (§6).
	Persist(ctx context.Context, rec *records.Record) error

	// Broadcast fans the record out to live subscribers for the given
	// IMEI. Best-effort: a failure here does not fail the job.
	Broadcast(ctx context.Context, imei string, rec *records.Record) error

	// EvaluateAlerts runs the record through whatever alerting logic the
	// deployment configures. Best-effort, same as Broadcast. The alert
	// rule language itself is out of scope (§1 Non-goals).
	EvaluateAlerts(ctx context.Context, imei string, rec *records.Record) error
}

// Facade wraps one RecordSink and enforces §4.7's best-effort contract:
// persist failures propagate to the caller (so the Work Queue can retry);
// broadcast and evaluateAlerts failures are logged and swallowed.
type Facade struct {
	sink                RecordSink
	log                 logrus.FieldLogger
	onBestEffortFailure func(stage string, err error)
}

// NewFacade returns a Facade over sink. onBestEffortFailure, if non-nil, is
// called for every swallowed broadcast/evaluateAlerts error - the gateway
// wires this to metrics.SinkFailures.
func NewFacade(s RecordSink, log logrus.FieldLogger, onBestEffortFailure func(stage string, err error)) *Facade {
	return &Facade{sink: s, log: log, onBestEffortFailure: onBestEffortFailure}
}

// Process runs persist, then broadcast and evaluateAlerts best-effort.
// Only a persist error is returned to the caller.
func (f *Facade) Process(ctx context.Context, rec *records.Record) error {
	if err := f.sink.Persist(ctx, rec); err != nil {
		return err
	}

	if err := f.sink.Broadcast(ctx, rec.IMEI, rec); err != nil {
		f.reportBestEffort("broadcast", err)
	}
	if err := f.sink.EvaluateAlerts(ctx, rec.IMEI, rec); err != nil {
		f.reportBestEffort("evaluateAlerts", err)
	}
	return nil
}

func (f *Facade) reportBestEffort(stage string, err error) {
	if f.log != nil {
		f.log.WithError(err).Warn(stage + " failed")
	}
	if f.onBestEffortFailure != nil {
		f.onBestEffortFailure(stage, err)
	}
}

// MultiSink fans every RecordSink call out to a fixed list of sinks, so a
// deployment can compose a persistence sink with a broadcast sink (and an
// alerting sink) behind the single RecordSink the Facade calls into (§1(f)).
// Each method runs every sink in order and returns the first error; the
// rest still run even if an earlier one fails.
type MultiSink []RecordSink

func (m MultiSink) Persist(ctx context.Context, rec *records.Record) error {
	var firstErr error
	for _, s := range m {
		if err := s.Persist(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) Broadcast(ctx context.Context, imei string, rec *records.Record) error {
	var firstErr error
	for _, s := range m {
		if err := s.Broadcast(ctx, imei, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) EvaluateAlerts(ctx context.Context, imei string, rec *records.Record) error {
	var firstErr error
	for _, s := range m {
		if err := s.EvaluateAlerts(ctx, imei, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
