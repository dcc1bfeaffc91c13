package wire

import "fmt"

// HeaderKind classifies the leading byte of a frame (§3).
type HeaderKind byte

const (
	// HeaderMain carries one or more records and requires an acknowledgement.
	HeaderMain HeaderKind = 0x01
	// HeaderIgnorable carries no records but still requires an acknowledgement.
	HeaderIgnorable HeaderKind = 0x15
	// HeaderConfirmation is echoed back by the server; devices don't send it.
	HeaderConfirmation HeaderKind = 0x02
)

// Kind classifies a raw header byte. Anything other than Main, Ignorable or
// Confirmation is treated as Extension: pass-through, still CRC-checked.
func (h HeaderKind) Kind() string {
	switch h {
	case HeaderMain:
		return "main"
	case HeaderIgnorable:
		return "ignorable"
	case HeaderConfirmation:
		return "confirmation"
	default:
		return "extension"
	}
}

// lengthHighBit is the bit in the raw Length field that signals the device
// still holds unsent archive data.
const lengthHighBit = 0x8000

// lengthMask extracts the effective payload length from the raw field.
const lengthMask = 0x7FFF

// Frame is one complete, CRC-validated packet extracted from the wire.
type Frame struct {
	// Header is the raw header byte.
	Header byte
	// Payload is the effective payload, Length&0x7FFF bytes.
	Payload []byte
	// HasUnsentData mirrors bit 15 of the raw Length field.
	HasUnsentData bool
	// Raw is the exact bytes received for this frame (header..CRC inclusive),
	// used to build the additive-checksum acknowledgement.
	Raw []byte
}

// HeaderKind returns the classified header kind of the frame.
func (f *Frame) HeaderKind() HeaderKind {
	return HeaderKind(f.Header)
}

// Ack returns the 3-byte confirmation frame for this Frame: 0x02 followed by
// the little-endian additive 16-bit checksum of the raw received bytes (§4.5).
// This is NOT the CRC-16/IBM used to validate the frame.
func (f *Frame) Ack() [3]byte {
	sum := checksumSum16(f.Raw)
	return [3]byte{byte(HeaderConfirmation), byte(sum), byte(sum >> 8)}
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{header=0x%02x kind=%s payloadLen=%d hasUnsentData=%t}",
		f.Header, f.HeaderKind().Kind(), len(f.Payload), f.HasUnsentData)
}

// IncompletePacketProbe is the canned 3-byte nudge for the firmware
// truncated-payload workaround (§6). Feature-flagged; off by default.
var IncompletePacketProbe = [3]byte{0x02, 0x3F, 0xFA}
