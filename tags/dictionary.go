package tags

// ExtendedBlockTag is the sentinel primary tag id that introduces a nested
// extended-tag block (§3, §4.4): 0xFE | BlockLen(2 LE) | (TagId16 | Value)*.
const ExtendedBlockTag = 0xFE

// RecordBoundaryTag is tag 0x10, the record sequence number. Its presence
// marks the start of a new record once a payload is long enough to contain
// more than one (§3).
const RecordBoundaryTag = 0x10

// IMEITag is the tag carrying the device's 15-digit IMEI (§3, §4.4).
const IMEITag = 0x03

// modbusRangeLow and modbusRangeHigh bound the extended 16-bit ids that are
// Modbus register mirrors, decoded as uint32-LE/100 regardless of whether
// they appear in the dictionary under another kind (§3).
const modbusRangeLow = 0x0001
const modbusRangeHigh = 0x0031

// Def is one dictionary entry: {id, decoded kind, fixed byte length (only
// meaningful for StrFixed), human description}.
type Def struct {
	ID          uint16
	Kind        Kind
	FixedLen    int
	Description string
}

// fixedLength returns the wire length of a value of kind k, using def.FixedLen
// for StrFixed. Returns -1 if unknown (ExtendedBlockTag is handled outside
// the dictionary).
func fixedLength(k Kind, defFixedLen int) int {
	switch k {
	case KindU8, KindI8:
		return 1
	case KindU16, KindI16, KindStatus, KindInputs, KindOutputs:
		return 2
	case KindU32, KindI32, KindU32Scaled100, KindDateTime, KindSpeedDirection, KindAcceleration:
		return 4
	case KindCoordinates:
		return 9
	case KindStrFixed:
		return defFixedLen
	default:
		return -1
	}
}

// dictionary is the static tag table, built once at package init (§4.3).
// Primary (8-bit) tag ids and extended (16-bit) tag ids share one table,
// keyed by the widened uint16 id.
var dictionary = map[uint16]Def{
	0x01: {ID: 0x01, Kind: KindU8, Description: "hardware status byte"},
	0x02: {ID: 0x02, Kind: KindU16, Description: "battery voltage, mV"},
	IMEITag: {ID: IMEITag, Kind: KindStrFixed, FixedLen: 15, Description: "IMEI"},
	0x04: {ID: 0x04, Kind: KindU16, Description: "firmware version"},
	RecordBoundaryTag: {ID: RecordBoundaryTag, Kind: KindU16, Description: "record sequence number"},
	0x20: {ID: 0x20, Kind: KindDateTime, Description: "UTC timestamp"},
	0x30: {ID: 0x30, Kind: KindCoordinates, Description: "coordinates (1e6 scaled)"},
	0x33: {ID: 0x33, Kind: KindSpeedDirection, Description: "speed and direction"},
	0x34: {ID: 0x34, Kind: KindStatus, Description: "status bitfield"},
	0x35: {ID: 0x35, Kind: KindInputs, Description: "digital inputs bitmask"},
	0x36: {ID: 0x36, Kind: KindOutputs, Description: "digital outputs bitmask"},
	0x37: {ID: 0x37, Kind: KindAcceleration, Description: "acceleration x/y/z"},
	0x38: {ID: 0x38, Kind: KindU16, Description: "analog input 1"},
	0x39: {ID: 0x39, Kind: KindU16, Description: "analog input 2"},
	0x42: {ID: 0x42, Kind: KindU32, Description: "odometer, m"},

	// A handful of extended (16-bit) entries beyond the Modbus mirror range,
	// to exercise the 0xFE nested-block decoder with non-Modbus kinds.
	0x0050: {ID: 0x0050, Kind: KindI32, Description: "fuel level delta"},
	0x0051: {ID: 0x0051, Kind: KindU8, Description: "driver identifier length"},
	0x0100: {ID: 0x0100, Kind: KindStrFixed, FixedLen: 8, Description: "extended device tag"},
}

// Lookup returns the dictionary entry for id, or false if id is not known.
// The caller is responsible for the Modbus-range override (see
// IsModbusMirror) before falling back to this table for extended ids.
func Lookup(id uint16) (Def, bool) {
	d, ok := dictionary[id]
	return d, ok
}

// IsModbusMirror reports whether the 16-bit extended tag id denotes a
// Modbus register mirror, decoded as uint32-LE/100 regardless of any other
// dictionary entry (§3).
func IsModbusMirror(id uint16) bool {
	return id >= modbusRangeLow && id <= modbusRangeHigh
}
