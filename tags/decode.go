package tags

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBufferExhausted means the dictionary (or heuristic) length for a tag
// extends past the bytes actually available in the record payload.
var ErrBufferExhausted = errors.New("tags: buffer exhausted decoding tag value")

// UnknownTagSkip returns the conservative number of bytes to skip for a tag
// id that has no dictionary entry (§4.3). This heuristic is intentionally
// lossy - it keeps a record parse moving when firmware ships a tag version
// newer than the dictionary, at the cost of the skipped bytes being
// opaque (carried as Raw).
func UnknownTagSkip(id uint16) int {
	if id >= 0x80 {
		return 4
	}
	switch {
	case id >= 0x30 && id <= 0x3F:
		return 2
	case id >= 0x40 && id <= 0x4F:
		return 4
	default:
		return 1
	}
}

// DecodeTag decodes one tag's value from data[0:], given the dictionary
// entry def (already resolved by the caller, including any Modbus-range
// override). It returns the decoded value and the number of bytes consumed.
func DecodeTag(def Def, data []byte) (Value, int, error) {
	n := fixedLength(def.Kind, def.FixedLen)
	if n < 0 {
		return nil, 0, fmt.Errorf("tags: unsupported kind %d for tag 0x%04x", def.Kind, def.ID)
	}
	if len(data) < n {
		return nil, 0, ErrBufferExhausted
	}
	body := data[:n]

	switch def.Kind {
	case KindU8:
		return U8(body[0]), n, nil
	case KindI8:
		return I8(int8(body[0])), n, nil
	case KindU16:
		return U16(binary.LittleEndian.Uint16(body)), n, nil
	case KindI16:
		return I16(int16(binary.LittleEndian.Uint16(body))), n, nil
	case KindU32:
		return U32(binary.LittleEndian.Uint32(body)), n, nil
	case KindI32:
		return I32(int32(binary.LittleEndian.Uint32(body))), n, nil
	case KindU32Scaled100:
		raw := binary.LittleEndian.Uint32(body)
		return U32Scaled100{Raw: raw, Value: float64(raw) / 100}, n, nil
	case KindStrFixed:
		return StrFixed(body), n, nil
	case KindDateTime:
		return DateTime{Epoch: binary.LittleEndian.Uint32(body)}, n, nil
	case KindCoordinates:
		return decodeCoordinates(body), n, nil
	case KindSpeedDirection:
		return decodeSpeedDirection(body), n, nil
	case KindStatus:
		return DecodeStatus(binary.LittleEndian.Uint16(body)), n, nil
	case KindInputs:
		raw := binary.LittleEndian.Uint16(body)
		return Inputs{Raw: raw, Channels: decodeChannels(raw)}, n, nil
	case KindOutputs:
		raw := binary.LittleEndian.Uint16(body)
		return Outputs{Raw: raw, Channels: decodeChannels(raw)}, n, nil
	case KindAcceleration:
		return decodeAcceleration(body), n, nil
	default:
		return nil, 0, fmt.Errorf("tags: unreachable kind %d", def.Kind)
	}
}

// DecodeModbusMirror decodes an extended tag in the Modbus mirror range:
// uint32 LE divided by 100 (§3).
func DecodeModbusMirror(data []byte) (Value, int, error) {
	const n = 4
	if len(data) < n {
		return nil, 0, ErrBufferExhausted
	}
	raw := binary.LittleEndian.Uint32(data[:n])
	return U32Scaled100{Raw: raw, Value: float64(raw) / 100}, n, nil
}

// DecodeUnknown applies the conservative skip heuristic for a tag with no
// dictionary entry, returning the skipped bytes as Raw.
func DecodeUnknown(id uint16, data []byte) (Value, int, error) {
	n := UnknownTagSkip(id)
	if len(data) < n {
		n = len(data)
	}
	raw := make(Raw, n)
	copy(raw, data[:n])
	return raw, n, nil
}

func decodeCoordinates(body []byte) Coordinates {
	b0 := body[0]
	satellites := b0 & 0x0F
	correctness := (b0 >> 4) & 0x0F
	rawLat := int32(binary.LittleEndian.Uint32(body[1:5]))
	rawLon := int32(binary.LittleEndian.Uint32(body[5:9]))
	return Coordinates{
		Lat:         float64(rawLat) / 1_000_000,
		Lon:         float64(rawLon) / 1_000_000,
		Satellites:  satellites,
		Correctness: correctness,
		rawLat:      rawLat,
		rawLon:      rawLon,
	}
}

func decodeSpeedDirection(body []byte) SpeedDirection {
	rawSpeed := binary.LittleEndian.Uint16(body[0:2])
	rawDirection := binary.LittleEndian.Uint16(body[2:4])
	return SpeedDirection{
		SpeedKMH:     float32(rawSpeed) / 10,
		DirectionDeg: float32(rawDirection) / 10,
		rawSpeed:     rawSpeed,
		rawDirection: rawDirection,
	}
}

func decodeAcceleration(body []byte) Acceleration {
	return Acceleration{
		X:        int16(body[0]) - 128,
		Y:        int16(body[1]) - 128,
		Z:        int16(body[2]) - 128,
		reserved: body[3],
	}
}
