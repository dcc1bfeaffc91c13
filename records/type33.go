package records

import "encoding/binary"

// type33RecordLen is the fixed per-record size of the Type-33 record form:
// timestamp(4) + lat(4) + lon(4) + speed(2) + course(2) + status(2) +
// flags(4) + reserved(10) = 32 bytes (§4.4).
const type33RecordLen = 32

// type33CRCTrailerLen is the number of trailing bytes that belong to the
// frame's own CRC, not to the last Type-33 record; ParseType33 stops once
// this many bytes remain, per spec.md §4.4 ("loop until two bytes (CRC)
// remain").
const type33CRCTrailerLen = 2

// Type33Record is one fixed-layout record decoded from the Type-33 form.
type Type33Record struct {
	Timestamp uint32
	Lat       float64
	Lon       float64
	SpeedKMH  float64
	CourseDeg float64
	Status    uint16
	Flags     uint32
	Reserved  [10]byte
}

func decodeType33Record(b []byte) Type33Record {
	return Type33Record{
		Timestamp: binary.LittleEndian.Uint32(b[0:4]),
		Lat:       float64(int32(binary.LittleEndian.Uint32(b[4:8]))) / 10_000_000,
		Lon:       float64(int32(binary.LittleEndian.Uint32(b[8:12]))) / 10_000_000,
		SpeedKMH:  float64(binary.LittleEndian.Uint16(b[12:14])) / 10,
		CourseDeg: float64(binary.LittleEndian.Uint16(b[14:16])) / 10,
		Status:    binary.LittleEndian.Uint16(b[16:18]),
		Flags:     binary.LittleEndian.Uint32(b[18:22]),
	}
}

// ParseType33 parses the fixed-size Type-33 record form (§4.4): a run of
// 32-byte records packed back-to-back in the payload, with no per-record
// tag walk and no 0x10 boundary rule. Unlike ParseMain/ParseCompressed this
// form carries no IMEI tag of its own, so every produced Record inherits
// ctx's lastIMEI.
func (p *Parser) ParseType33(ctx *ParserContext, payload []byte) ([]*Record, []error) {
	var results []*Record
	var errs []error
	pos := 0

	for len(payload)-pos > type33CRCTrailerLen {
		if len(payload)-pos < type33RecordLen {
			errs = append(errs, &ParseError{Kind: BufferExhausted, Offset: pos})
			break
		}

		t33 := decodeType33Record(payload[pos : pos+type33RecordLen])
		copy(t33.Reserved[:], payload[pos+22:pos+32])

		rec := &Record{Type33: &t33}
		ctx.resolveIMEI(rec)
		results = append(results, rec)

		pos += type33RecordLen
	}

	return results, errs
}
