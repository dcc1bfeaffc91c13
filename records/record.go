// Package records turns a framed Galileosky payload into the typed records
// it carries: the Main/Ignorable tag walker, the compressed record form and
// the fixed-size Type-33 form (§4.4).
package records

import (
	"encoding/binary"

	"github.com/galileosky/ingest-gateway/tags"
)

// Entry is one decoded tag within a Record, in insertion order.
type Entry struct {
	ID       uint16 // primary (8-bit) or extended (16-bit) tag id
	Extended bool   // true if ID is from the extended (0xFE) namespace
	Value    tags.Value
}

// Record is an insertion-ordered mapping from TagId to TypedValue (§3).
// Extended-tag-block entries are flattened into the same ordered sequence,
// keyed by their 16-bit id, exactly as spec.md §3 describes ("Extended tags
// use the same dictionary but keyed by the 16-bit id").
type Record struct {
	Entries []Entry

	// IMEI is the resolved device identifier: either decoded from tag 0x03
	// in this record, or inherited from the connection's lastIMEI (§4.4).
	IMEI string
	// IMEIInherited is true when IMEI came from lastIMEI rather than from
	// a 0x03 tag in this record.
	IMEIInherited bool

	// blockBoundaries records, for each Entries index that starts an
	// extended-tag block, how many subsequent entries belong to that same
	// block - needed to re-wrap them under one 0xFE/BlockLen header on
	// re-encode (§8 invariant 3).
	blockBoundaries map[int]int

	// MinimalDataSet holds the compressed record form's fixed timestamp and
	// coordinate prefix, when this Record was produced by ParseCompressed.
	// It is nil for records from ParseMain or ParseType33, and deliberately
	// kept separate from Entries: tags.Coordinates models the Main form's
	// 9-byte wire layout (satellite/correctness nibble + 1e6-scaled int32
	// pair), which the compressed form's packed-bitfield 1e7 encoding does
	// not share, so reusing tag id 0x30 as an Entries round-trip would
	// silently encode the wrong bytes.
	MinimalDataSet *CompressedMinimalDataSet

	// Type33 holds the fixed-layout record decoded by ParseType33. Nil for
	// records from ParseMain or ParseCompressed.
	Type33 *Type33Record
}

// Append adds a primary-tag entry.
func (r *Record) Append(id uint16, v tags.Value) {
	r.Entries = append(r.Entries, Entry{ID: id, Value: v})
}

// AppendExtendedBlock adds a run of extended-tag entries decoded from one
// 0xFE block, preserving the block grouping for re-encoding.
func (r *Record) AppendExtendedBlock(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	if r.blockBoundaries == nil {
		r.blockBoundaries = make(map[int]int)
	}
	start := len(r.Entries)
	r.blockBoundaries[start] = len(entries)
	r.Entries = append(r.Entries, entries...)
}

// Empty reports whether the record decoded zero tags; empty records are
// discarded by the parser (§3 invariants).
func (r *Record) Empty() bool {
	return len(r.Entries) == 0
}

// Lookup returns the value for a primary tag id, if present.
func (r *Record) Lookup(id uint16) (tags.Value, bool) {
	for _, e := range r.Entries {
		if !e.Extended && e.ID == id {
			return e.Value, true
		}
	}
	return nil, false
}

// LookupExtended returns the value for an extended (16-bit) tag id, if present.
func (r *Record) LookupExtended(id uint16) (tags.Value, bool) {
	for _, e := range r.Entries {
		if e.Extended && e.ID == id {
			return e.Value, true
		}
	}
	return nil, false
}

// SequenceNumber returns tag 0x10 (record sequence number), if present.
func (r *Record) SequenceNumber() (uint16, bool) {
	v, ok := r.Lookup(0x10)
	if !ok {
		return 0, false
	}
	u, ok := v.(tags.U16)
	if !ok {
		return 0, false
	}
	return uint16(u), true
}

// EncodeTLV re-serializes the record's tags back into TLV wire form in
// insertion order. For every tag that isn't inside a conservative
// unknown-tag skip (tags.Raw), this round-trips byte-for-byte with the
// payload bytes the record was parsed from (§8 invariant 3).
func (r *Record) EncodeTLV() []byte {
	var out []byte
	i := 0
	for i < len(r.Entries) {
		if n, ok := r.blockBoundaries[i]; ok {
			out = append(out, encodeExtendedBlock(r.Entries[i:i+n])...)
			i += n
			continue
		}
		e := r.Entries[i]
		out = append(out, byte(e.ID))
		out = append(out, e.Value.Encode()...)
		i++
	}
	return out
}

func encodeExtendedBlock(entries []Entry) []byte {
	var body []byte
	for _, e := range entries {
		idBytes := make([]byte, 2)
		binary.LittleEndian.PutUint16(idBytes, e.ID)
		body = append(body, idBytes...)
		body = append(body, e.Value.Encode()...)
	}
	out := make([]byte, 0, 3+len(body))
	out = append(out, 0xFE)
	blockLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(blockLen, uint16(len(body)))
	out = append(out, blockLen...)
	out = append(out, body...)
	return out
}
