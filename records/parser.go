package records

import (
	"encoding/binary"

	"github.com/galileosky/ingest-gateway/tags"
)

// minPayloadForSplit is the payload-length threshold above which the
// record-boundary rule (tag 0x10) applies; below it, a payload is always a
// single record (§3, §4.4).
const minPayloadForSplit = 32

// Parser drives the tag dictionary against a framed Main/Ignorable payload,
// producing zero or more Records. It holds no connection state itself -
// lastIMEI lives on the caller-supplied ParserContext (§4.4, §9).
type Parser struct {
	// EmitRawUnknownTags controls whether UnknownTag recoveries are
	// reported back to the caller (parser.emitRawUnknownTags, §6). The
	// decoded Raw value is always produced either way.
	EmitRawUnknownTags bool
}

// NewParser returns a Parser with default options.
func NewParser() *Parser {
	return &Parser{EmitRawUnknownTags: true}
}

// ParseMain parses a Main-kind (header 0x01) payload into one or more
// Records, resolving lastIMEI against ctx (§4.4).
func (p *Parser) ParseMain(ctx *ParserContext, payload []byte) ([]*Record, []error) {
	var errs []error
	splitEnabled := len(payload) >= minPayloadForSplit

	var results []*Record
	cur := &Record{}
	pos := 0

	flush := func() {
		if !cur.Empty() {
			ctx.resolveIMEI(cur)
			results = append(results, cur)
		}
		cur = &Record{}
	}

	for pos < len(payload) {
		id8 := payload[pos]

		if splitEnabled && id8 == tags.RecordBoundaryTag && len(cur.Entries) > 0 {
			flush()
		}

		consumed, err := p.walkOneTag(cur, payload, pos, &errs)
		if err != nil {
			// BufferExhausted: discard the rest of this packet only (§7).
			errs = append(errs, err)
			break
		}
		pos += consumed
	}
	flush()

	return results, errs
}

// walkOneTag decodes the single tag (primary or an entire 0xFE extended
// block) starting at payload[pos] and appends it to rec. It returns the
// number of bytes consumed (including the tag id byte(s)).
func (p *Parser) walkOneTag(rec *Record, payload []byte, pos int, errs *[]error) (int, error) {
	id8 := payload[pos]
	rest := payload[pos+1:]

	if id8 == tags.ExtendedBlockTag {
		return p.walkExtendedBlock(rec, payload, pos, errs)
	}

	id16 := uint16(id8)
	def, ok := tags.Lookup(id16)
	if !ok {
		v, n, _ := tags.DecodeUnknown(id16, rest)
		rec.Append(id16, v)
		if p.EmitRawUnknownTags {
			*errs = append(*errs, &ParseError{Kind: UnknownTag, TagID: id16, Offset: pos})
		}
		return 1 + n, nil
	}

	v, n, err := tags.DecodeTag(def, rest)
	if err != nil {
		return 0, &ParseError{Kind: BufferExhausted, TagID: id16, Offset: pos}
	}
	rec.Append(id16, v)
	return 1 + n, nil
}

// walkExtendedBlock decodes a 0xFE | BlockLen(2 LE) | (TagId16|Value)* block
// starting at payload[pos] (§3, §4.4).
func (p *Parser) walkExtendedBlock(rec *Record, payload []byte, pos int, errs *[]error) (int, error) {
	if len(payload) < pos+3 {
		return 0, &ParseError{Kind: BufferExhausted, TagID: tags.ExtendedBlockTag, Offset: pos}
	}
	blockLen := int(binary.LittleEndian.Uint16(payload[pos+1 : pos+3]))
	blockStart := pos + 3
	if len(payload) < blockStart+blockLen {
		return 0, &ParseError{Kind: BufferExhausted, TagID: tags.ExtendedBlockTag, Offset: pos}
	}
	block := payload[blockStart : blockStart+blockLen]

	var entries []Entry
	bp := 0
	for bp < len(block) {
		if len(block)-bp < 2 {
			return 0, &ParseError{Kind: BufferExhausted, TagID: tags.ExtendedBlockTag, Offset: pos + 3 + bp}
		}
		id16 := binary.LittleEndian.Uint16(block[bp : bp+2])
		valueBytes := block[bp+2:]

		var v tags.Value
		var n int
		var err error
		switch {
		case tags.IsModbusMirror(id16):
			v, n, err = tags.DecodeModbusMirror(valueBytes)
		default:
			def, ok := tags.Lookup(id16)
			if !ok {
				v, n, _ = tags.DecodeUnknown(id16, valueBytes)
				if p.EmitRawUnknownTags {
					*errs = append(*errs, &ParseError{Kind: UnknownTag, TagID: id16, Offset: pos + 3 + bp})
				}
			} else {
				v, n, err = tags.DecodeTag(def, valueBytes)
			}
		}
		if err != nil {
			return 0, &ParseError{Kind: BufferExhausted, TagID: id16, Offset: pos + 3 + bp}
		}

		entries = append(entries, Entry{ID: id16, Extended: true, Value: v})
		bp += 2 + n
	}

	rec.AppendExtendedBlock(entries)
	return 3 + blockLen, nil
}
