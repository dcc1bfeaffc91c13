// Package metrics defines the prometheus metric types exported by the
// gateway and a helper to expose them on a separate port, the way
// tcp-info's metrics package does.
package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve starts the /metrics exposition endpoint on its own port. It never
// starts a dashboard or any other UI (explicitly out of scope, §1
// Non-goals) - just the bare prometheus text exposition format.
func Serve(port int) {
	if port <= 0 {
		log.Println("metrics: exposition disabled (port <= 0)")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Println("metrics: exposing prometheus metrics on", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Println("metrics: exposition server stopped:", err)
		}
	}()
}

var (
	// FramingErrorCount counts framer-level recoveries, by kind (§7
	// FramingError taxonomy: TooShort, Oversize, CrcMismatch, Truncated).
	FramingErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "galileosky_framing_error_count",
		Help: "Framer-level recoveries, by FramingErrorKind.",
	}, []string{"kind"})

	// ParseErrorCount counts record-parser recoveries, by kind (UnknownTag,
	// UnsupportedKind, BufferExhausted).
	ParseErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "galileosky_parse_error_count",
		Help: "Record-parser recoveries, by ParseErrorKind.",
	}, []string{"kind"})

	// RecordsParsed counts successfully decoded records, by record form
	// (main, compressed, type33).
	RecordsParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "galileosky_records_parsed_total",
		Help: "Successfully decoded records, by record form.",
	}, []string{"form"})

	// ActiveConnections is the number of TCP connections currently being
	// served.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "galileosky_active_connections",
		Help: "Number of TCP connections currently being served.",
	})

	// QueueDepth is the current depth of the bounded work queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "galileosky_queue_depth",
		Help: "Current number of jobs waiting in the work queue.",
	})

	// QueueDroppedJobs counts jobs dropped because the queue was full
	// (drop-oldest-on-full, §5).
	QueueDroppedJobs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "galileosky_queue_dropped_jobs_total",
		Help: "Jobs dropped because the work queue was at capacity.",
	})

	// SinkFailures counts sink failures: "persist_exhausted" for persist
	// failures whose retry budget ran out, and "broadcast" or
	// "evaluateAlerts" for best-effort failures the Facade swallowed.
	SinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "galileosky_sink_failures_total",
		Help: "Sink failures, by outcome (persist_exhausted, broadcast, evaluateAlerts).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		FramingErrorCount,
		ParseErrorCount,
		RecordsParsed,
		ActiveConnections,
		QueueDepth,
		QueueDroppedJobs,
		SinkFailures,
	)
}
