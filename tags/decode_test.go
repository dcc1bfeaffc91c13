package tags

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDecodeTagRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		def  Def
		body []byte
	}{
		{"u8", Def{Kind: KindU8}, []byte{0x2A}},
		{"i8 negative", Def{Kind: KindI8}, []byte{0xFF}},
		{"u16", Def{Kind: KindU16}, []byte{0x34, 0x12}},
		{"i16 negative", Def{Kind: KindI16}, []byte{0xFF, 0xFF}},
		{"u32", Def{Kind: KindU32}, []byte{0x01, 0x02, 0x03, 0x04}},
		{"i32 negative", Def{Kind: KindI32}, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"u32scaled100", Def{Kind: KindU32Scaled100}, []byte{0x10, 0x27, 0x00, 0x00}},
		{"strfixed", Def{Kind: KindStrFixed, FixedLen: 5}, []byte("hello")},
		{"datetime", Def{Kind: KindDateTime}, []byte{0xBD, 0x34, 0x9C, 0x66}},
		{"status", Def{Kind: KindStatus}, []byte{0xFF, 0x0F}},
		{"inputs", Def{Kind: KindInputs}, []byte{0xAA, 0x55}},
		{"outputs", Def{Kind: KindOutputs}, []byte{0x01, 0x80}},
		{"acceleration", Def{Kind: KindAcceleration}, []byte{0x80, 0x7F, 0x00, 0x00}},
		{"speeddirection", Def{Kind: KindSpeedDirection}, []byte{0x64, 0x00, 0x2C, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := DecodeTag(tt.def, tt.body)
			if err != nil {
				t.Fatalf("DecodeTag: %v", err)
			}
			if n != len(tt.body) {
				t.Fatalf("consumed %d bytes, want %d", n, len(tt.body))
			}
			encoded := v.Encode()
			if !bytes.Equal(encoded, tt.body) {
				t.Errorf("round trip mismatch: got %x, want %x", encoded, tt.body)
			}
		})
	}
}

func TestDecodeCoordinates(t *testing.T) {
	body := make([]byte, 9)
	body[0] = (9 << 4) | 12 // correctness=9, satellites=12
	binary.LittleEndian.PutUint32(body[1:5], uint32(int32(55755800)))
	binary.LittleEndian.PutUint32(body[5:9], uint32(int32(37617300)))

	v, n, err := DecodeTag(Def{Kind: KindCoordinates}, body)
	if err != nil {
		t.Fatalf("DecodeTag: %v", err)
	}
	if n != 9 {
		t.Fatalf("consumed %d, want 9", n)
	}
	c := v.(Coordinates)
	if c.Satellites != 12 || c.Correctness != 9 {
		t.Errorf("satellites/correctness = %d/%d, want 12/9", c.Satellites, c.Correctness)
	}
	if c.Lat != 55.7558 || c.Lon != 37.6173 {
		t.Errorf("lat/lon = %v/%v, want 55.7558/37.6173", c.Lat, c.Lon)
	}
	if !bytes.Equal(c.Encode(), body) {
		t.Errorf("coordinates did not round-trip")
	}
}

func TestDecodeBufferExhausted(t *testing.T) {
	_, _, err := DecodeTag(Def{Kind: KindU32}, []byte{0x01, 0x02})
	if err != ErrBufferExhausted {
		t.Errorf("err = %v, want ErrBufferExhausted", err)
	}
}

func TestDecodeModbusMirror(t *testing.T) {
	body := []byte{0x10, 0x27, 0x00, 0x00} // 10000 -> 100.00
	v, n, err := DecodeModbusMirror(body)
	if err != nil {
		t.Fatalf("DecodeModbusMirror: %v", err)
	}
	if n != 4 {
		t.Fatalf("consumed %d, want 4", n)
	}
	scaled := v.(U32Scaled100)
	if scaled.Value != 100.0 {
		t.Errorf("value = %v, want 100.0", scaled.Value)
	}
}

func TestUnknownTagSkipHeuristic(t *testing.T) {
	tests := []struct {
		id   uint16
		want int
	}{
		{0x3A, 2},
		{0x3F, 2},
		{0x45, 4},
		{0x4F, 4},
		{0x50, 1},
		{0x7F, 1},
		{0x80, 4},
		{0xAB, 4},
	}
	for _, tt := range tests {
		if got := UnknownTagSkip(tt.id); got != tt.want {
			t.Errorf("UnknownTagSkip(0x%02x) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestDecodeUnknownTruncatesAtAvailableBytes(t *testing.T) {
	v, n, err := DecodeUnknown(0x45, []byte{0x01})
	if err != nil {
		t.Fatalf("DecodeUnknown: %v", err)
	}
	if n != 1 {
		t.Errorf("consumed %d, want 1 (truncated)", n)
	}
	if raw, ok := v.(Raw); !ok || len(raw) != 1 {
		t.Errorf("expected 1-byte Raw value, got %#v", v)
	}
}
