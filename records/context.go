package records

import "github.com/galileosky/ingest-gateway/tags"

// ParserContext holds state that must be remembered across packets on one
// TCP connection, but never shared between connections (§3, §4.4, §4.5 and
// the fix noted in spec.md §9 for the teacher's latent cross-device IMEI
// leakage bug: lastIMEI lives here, on a per-connection object, never in a
// package-level or shared parser instance).
type ParserContext struct {
	lastIMEI string
}

// NewParserContext returns a fresh context for one new connection.
func NewParserContext() *ParserContext {
	return &ParserContext{}
}

// LastIMEI returns the most recently observed IMEI on this connection, or
// "" if none has been seen yet.
func (c *ParserContext) LastIMEI() string {
	return c.lastIMEI
}

// resolveIMEI fills in r.IMEI from the record's own 0x03 tag if present,
// otherwise inherits lastIMEI (§3, §4.4). It updates the context's lastIMEI
// whenever the record carries its own tag 0x03.
func (c *ParserContext) resolveIMEI(r *Record) {
	if v, ok := r.Lookup(0x03); ok {
		if imei, ok := asString(v); ok {
			c.lastIMEI = imei
			r.IMEI = imei
			return
		}
	}
	r.IMEI = c.lastIMEI
	r.IMEIInherited = true
}

func asString(v tags.Value) (string, bool) {
	s, ok := v.(tags.StrFixed)
	if !ok {
		return "", false
	}
	return string(s), true
}
