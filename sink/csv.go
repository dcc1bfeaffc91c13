package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/galileosky/ingest-gateway/records"
	"github.com/galileosky/ingest-gateway/tags"
)

// csvRow is the flattened, gocsv-tagged projection of one Record written to
// the CSV persistence log - a readable summary alongside the tag map the
// sink carries internally, the same "verbatim plus readable log" split the
// teacher's rtcmlogger keeps for RTCM messages.
type csvRow struct {
	IMEI      string  `csv:"imei"`
	Timestamp uint32  `csv:"timestamp"`
	Sequence  uint16  `csv:"sequence"`
	Lat       float64 `csv:"lat"`
	Lon       float64 `csv:"lon"`
	TagCount  int     `csv:"tag_count"`
}

func toCSVRow(rec *records.Record) csvRow {
	row := csvRow{IMEI: rec.IMEI, TagCount: len(rec.Entries)}
	if seq, ok := rec.SequenceNumber(); ok {
		row.Sequence = seq
	}

	switch {
	case rec.MinimalDataSet != nil:
		row.Timestamp = rec.MinimalDataSet.Timestamp
		row.Lat, row.Lon = rec.MinimalDataSet.Lat, rec.MinimalDataSet.Lon
	case rec.Type33 != nil:
		row.Timestamp = rec.Type33.Timestamp
		row.Lat, row.Lon = rec.Type33.Lat, rec.Type33.Lon
	default:
		if v, ok := rec.Lookup(0x20); ok {
			if dt, ok := v.(tags.DateTime); ok {
				row.Timestamp = dt.Epoch
			}
		}
		if v, ok := rec.Lookup(0x30); ok {
			if coord, ok := v.(tags.Coordinates); ok {
				row.Lat, row.Lon = coord.Lat, coord.Lon
			}
		}
	}
	return row
}

// CSVSink is a gocsv-backed RecordSink, appending one row per persisted
// record to an open writer. Broadcast and evaluateAlerts are no-ops - a
// minimal sink suitable for local development and the galileoctl replay
// tool, not a production fan-out/alerting backend (those are out of the
// core's scope, §1 Non-goals).
type CSVSink struct {
	mu            sync.Mutex
	w             io.Writer
	headerWritten bool
}

// NewCSVSink wraps w, an already-open file or writer, as a CSVSink.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w}
}

func (s *CSVSink) Persist(_ context.Context, rec *records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []csvRow{toCSVRow(rec)}
	if !s.headerWritten {
		if err := gocsv.Marshal(rows, s.w); err != nil {
			return fmt.Errorf("sink: csv header+row: %w", err)
		}
		s.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, s.w); err != nil {
		return fmt.Errorf("sink: csv row: %w", err)
	}
	return nil
}

func (s *CSVSink) Broadcast(context.Context, string, *records.Record) error {
	return nil
}

func (s *CSVSink) EvaluateAlerts(context.Context, string, *records.Record) error {
	return nil
}
