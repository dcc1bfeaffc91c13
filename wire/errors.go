package wire

import "fmt"

// FramingErrorKind enumerates the framing-layer error taxonomy (§7).
type FramingErrorKind int

const (
	// TooShort means fewer than 3 bytes are buffered - not actionable yet,
	// callers should treat it as "wait for more data", not an error event.
	TooShort FramingErrorKind = iota
	// Oversize means the declared payload length exceeds MaxPacketSize.
	Oversize
	// CrcMismatch means the computed CRC did not match the trailing field.
	CrcMismatch
	// Truncated means a declared frame length ran past the available bytes
	// and no more data is forthcoming (connection closed mid-frame).
	Truncated
)

func (k FramingErrorKind) String() string {
	switch k {
	case TooShort:
		return "TooShort"
	case Oversize:
		return "Oversize"
	case CrcMismatch:
		return "CrcMismatch"
	case Truncated:
		return "Truncated"
	default:
		return "Unknown"
	}
}

// FramingError is returned for every byte the Framer drops while resyncing.
type FramingError struct {
	Kind   FramingErrorKind
	Offset int // byte offset within the residual buffer at detection time
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: %s at offset %d", e.Kind, e.Offset)
}
