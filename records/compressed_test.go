package records

import (
	"encoding/binary"
	"testing"
)

func encodePackedCoord(value float64) uint32 {
	magnitude := value
	negative := magnitude < 0
	if negative {
		magnitude = -magnitude
	}
	word := uint32(magnitude*10_000_000) & packedCoordMagnitudeMask
	if negative {
		word |= packedCoordBitSign
	}
	word |= packedCoordBitValidity
	return word
}

func buildMinimalDataSet(ts uint32, lat, lon float64, alarm bool, userTag byte) []byte {
	b := make([]byte, compressedMinimalDataSetLen)
	binary.LittleEndian.PutUint32(b[0:4], ts)
	binary.LittleEndian.PutUint32(b[4:8], encodePackedCoord(lat))
	binary.LittleEndian.PutUint32(b[8:12], encodePackedCoord(lon))
	if alarm {
		b[12] = 1
	}
	b[13] = userTag
	return b
}

func TestParseCompressedListForm(t *testing.T) {
	var payload []byte
	payload = append(payload, buildMinimalDataSet(1700000000, 45.7558, 37.6173, false, 9)...)
	payload = append(payload, 0x02)       // count = 2
	payload = append(payload, 0x02, 0x04) // tag ids 2 (battery, U16), 4 (firmware, U16)
	payload = append(payload, 0x10, 0x2E) // battery = 11792 mV
	payload = append(payload, 0x01, 0x00) // firmware = 1

	p := NewParser()
	ctx := NewParserContext()
	recs, errs := p.ParseCompressed(ctx, payload)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.MinimalDataSet == nil {
		t.Fatalf("MinimalDataSet is nil")
	}
	if rec.MinimalDataSet.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", rec.MinimalDataSet.Timestamp)
	}
	if !almostEqual(rec.MinimalDataSet.Lat, 45.7558) {
		t.Errorf("Lat = %v, want 45.7558", rec.MinimalDataSet.Lat)
	}
	if !almostEqual(rec.MinimalDataSet.Lon, 37.6173) {
		t.Errorf("Lon = %v, want 37.6173", rec.MinimalDataSet.Lon)
	}
	if len(rec.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(rec.Entries))
	}
}

func TestParseCompressedBitmaskForm(t *testing.T) {
	var payload []byte
	payload = append(payload, buildMinimalDataSet(1700000001, -33.8688, 151.2093, true, 1)...)

	var bitmask uint32
	bitmask |= 1 << (2 - 1) // tag 2
	bitmask |= 1 << (4 - 1) // tag 4
	// tag 6 has no dictionary entry; its bit lifts the mask's low byte to
	// 0x2A, so the selector byte is >= 32 and reads as a bitmask.
	bitmask |= 1 << (6 - 1)
	bm := make([]byte, 4)
	binary.LittleEndian.PutUint32(bm, bitmask)
	payload = append(payload, bm...)
	payload = append(payload, 0x10, 0x2E) // tag 2 value
	payload = append(payload, 0x01, 0x00) // tag 4 value
	payload = append(payload, 0x7F)       // tag 6: unknown id < 0x30, skipped as 1 Raw byte

	p := NewParser()
	ctx := NewParserContext()
	recs, errs := p.ParseCompressed(ctx, payload)

	if len(errs) != 1 {
		t.Fatalf("got errors %v, want exactly one UnknownTag for tag 6", errs)
	}
	if pe, ok := errs[0].(*ParseError); !ok || pe.Kind != UnknownTag || pe.TagID != 6 {
		t.Errorf("error = %v, want UnknownTag for tag 6", errs[0])
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if !recs[0].MinimalDataSet.Alarm {
		t.Errorf("Alarm = false, want true")
	}
	if len(recs[0].Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(recs[0].Entries))
	}
	if _, ok := recs[0].Lookup(2); !ok {
		t.Errorf("expected tag 2 present")
	}
	if _, ok := recs[0].Lookup(4); !ok {
		t.Errorf("expected tag 4 present")
	}
}

func TestParseCompressedMultipleRecords(t *testing.T) {
	var payload []byte
	payload = append(payload, buildMinimalDataSet(1700000000, 10, 20, false, 0)...)
	payload = append(payload, 0x00) // no tags
	payload = append(payload, buildMinimalDataSet(1700000010, 11, 21, false, 0)...)
	payload = append(payload, 0x00) // no tags

	p := NewParser()
	ctx := NewParserContext()
	recs, errs := p.ParseCompressed(ctx, payload)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}
