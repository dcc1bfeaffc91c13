// Package tags holds the Galileosky tag dictionary and the typed value
// decoders that turn raw TLV bytes into the TypedValue union (§3, §4.3).
package tags

import "encoding/binary"

// Kind identifies which decoder/encoder a tag's bytes need.
type Kind int

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindI8
	KindI16
	KindI32
	KindU32Scaled100
	KindStrFixed
	KindDateTime
	KindCoordinates
	KindSpeedDirection
	KindStatus
	KindInputs
	KindOutputs
	KindAcceleration
	KindRaw
)

// Value is the decoded form of one tag's bytes. Every concrete type can
// re-encode itself back to wire bytes; for all kinds except Raw this must
// round-trip byte-for-byte with the bytes it was decoded from (§8 invariant 3).
type Value interface {
	Kind() Kind
	Encode() []byte
}

// U8 is an 8-bit unsigned integer.
type U8 uint8

func (U8) Kind() Kind      { return KindU8 }
func (v U8) Encode() []byte { return []byte{byte(v)} }

// U16 is a 16-bit little-endian unsigned integer.
type U16 uint16

func (U16) Kind() Kind { return KindU16 }
func (v U16) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

// U32 is a 32-bit little-endian unsigned integer.
type U32 uint32

func (U32) Kind() Kind { return KindU32 }
func (v U32) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// I8 is an 8-bit signed integer.
type I8 int8

func (I8) Kind() Kind       { return KindI8 }
func (v I8) Encode() []byte { return []byte{byte(v)} }

// I16 is a 16-bit little-endian signed integer.
type I16 int16

func (I16) Kind() Kind { return KindI16 }
func (v I16) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

// I32 is a 32-bit little-endian signed integer.
type I32 int32

func (I32) Kind() Kind { return KindI32 }
func (v I32) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// U32Scaled100 is a Modbus register mirror: uint32 LE divided by 100.
type U32Scaled100 struct {
	Raw   uint32  // the on-wire integer
	Value float64 // Raw / 100
}

func (U32Scaled100) Kind() Kind { return KindU32Scaled100 }
func (v U32Scaled100) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v.Raw)
	return b
}

// StrFixed is a fixed-length ASCII/UTF-8 string (e.g. the 15-byte IMEI).
type StrFixed string

func (StrFixed) Kind() Kind        { return KindStrFixed }
func (v StrFixed) Encode() []byte { return []byte(v) }

// DateTime is a UTC timestamp, seconds since the Unix epoch, stored as
// uint32 LE on the wire.
type DateTime struct {
	Epoch uint32
}

func (DateTime) Kind() Kind { return KindDateTime }
func (v DateTime) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v.Epoch)
	return b
}

// Coordinates is a packed GNSS fix: first byte splits low-nibble=satellites,
// high-nibble=correctness; then int32 LE latitude, int32 LE longitude, both
// scaled by 1e6 (§4.3 - NOT 1e7; that scaling is only used by Type-33 and
// the compressed record form).
type Coordinates struct {
	Lat          float64
	Lon          float64
	Satellites   uint8
	Correctness  uint8
	rawLat       int32
	rawLon       int32
}

func (Coordinates) Kind() Kind { return KindCoordinates }
func (v Coordinates) Encode() []byte {
	b := make([]byte, 9)
	b[0] = (v.Correctness << 4) | (v.Satellites & 0x0F)
	binary.LittleEndian.PutUint32(b[1:5], uint32(v.rawLat))
	binary.LittleEndian.PutUint32(b[5:9], uint32(v.rawLon))
	return b
}

// SpeedDirection is two uint16 LE values, each divided by 10.
type SpeedDirection struct {
	SpeedKMH     float32
	DirectionDeg float32
	rawSpeed     uint16
	rawDirection uint16
}

func (SpeedDirection) Kind() Kind { return KindSpeedDirection }
func (v SpeedDirection) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint16(b[0:2], v.rawSpeed)
	binary.LittleEndian.PutUint16(b[2:4], v.rawDirection)
	return b
}

// Status is the parsed device-status bitfield (§3).
type Status struct {
	Raw         uint16
	PowerSupply bool
	GPSValid    bool
	GSMValid    bool
	Alarm       bool
	Ignition    bool
	Movement    bool
	Charging    bool
	LowBattery  bool
	GSMSignal   uint8 // bits 8-9
	GPSSignal   uint8 // bits 10-11
	GSMAntenna  bool
	GPSAntenna  bool
	Output1     bool
	Output2     bool
}

func (Status) Kind() Kind { return KindStatus }
func (v Status) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v.Raw)
	return b
}

// DecodeStatus unpacks the Status bitfield from its raw uint16 (§3).
func DecodeStatus(raw uint16) Status {
	return Status{
		Raw:         raw,
		PowerSupply: raw&(1<<0) != 0,
		GPSValid:    raw&(1<<1) != 0,
		GSMValid:    raw&(1<<2) != 0,
		Alarm:       raw&(1<<3) != 0,
		Ignition:    raw&(1<<4) != 0,
		Movement:    raw&(1<<5) != 0,
		Charging:    raw&(1<<6) != 0,
		LowBattery:  raw&(1<<7) != 0,
		GSMSignal:   uint8((raw >> 8) & 0x03),
		GPSSignal:   uint8((raw >> 10) & 0x03),
		GSMAntenna:  raw&(1<<12) != 0,
		GPSAntenna:  raw&(1<<13) != 0,
		Output1:     raw&(1<<14) != 0,
		Output2:     raw&(1<<15) != 0,
	}
}

// Inputs is a 16-channel digital input bitfield, bit i = channel i.
type Inputs struct {
	Raw      uint16
	Channels [16]bool
}

func (Inputs) Kind() Kind { return KindInputs }
func (v Inputs) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v.Raw)
	return b
}

// Outputs is a 16-channel digital output bitfield, bit i = channel i.
type Outputs struct {
	Raw      uint16
	Channels [16]bool
}

func (Outputs) Kind() Kind { return KindOutputs }
func (v Outputs) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v.Raw)
	return b
}

func decodeChannels(raw uint16) [16]bool {
	var channels [16]bool
	for i := 0; i < 16; i++ {
		channels[i] = raw&(1<<uint(i)) != 0
	}
	return channels
}

// Acceleration is the packed x/y/z acceleration triple, encoded in a uint32
// LE: x=byte0-128, y=byte1-128, z=byte2-128 (byte3 reserved).
type Acceleration struct {
	X, Y, Z  int16
	reserved byte
}

func (Acceleration) Kind() Kind { return KindAcceleration }
func (v Acceleration) Encode() []byte {
	return []byte{
		byte(int16(v.X) + 128),
		byte(int16(v.Y) + 128),
		byte(int16(v.Z) + 128),
		v.reserved,
	}
}

// Raw is an unknown or unsupported tag's bytes, carried through verbatim.
type Raw []byte

func (Raw) Kind() Kind      { return KindRaw }
func (v Raw) Encode() []byte { return []byte(v) }
