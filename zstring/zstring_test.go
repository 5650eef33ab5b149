package zstring

import (
	"bytes"
	"testing"

	"github.com/gruetools/grue/zcore"
)

// newTestCore builds a minimally valid V3 core of the given size so Decode/
// Encode have somewhere to read/write test payloads from/into.
func newTestCore(size int) *zcore.Core {
	buf := make([]uint8, size)
	buf[0] = 3 // version
	core := zcore.LoadCore(buf)
	return &core
}

var v3Core = newTestCore(0x100)
var v3Alphabets = LoadAlphabets(v3Core)

var zstringDecodingTests = []struct {
	name      string
	in        []uint8
	out       string
	bytesRead uint32
}{
	{"all lowercase, one word", []uint8{0x35, 0x51, 0xC6, 0x85}, "hello", 4},
	{"zscii escape", []uint8{0x14, 0xC1, 0xF8, 0xA5}, ">", 4},
	{"mixed alphabets", []uint8{0x11, 0xAE, 0x96, 0x85}, "Hi!", 4},
}

func TestDecode(t *testing.T) {
	for _, tt := range zstringDecodingTests {
		t.Run(tt.name, func(t *testing.T) {
			core := newTestCore(0x100)
			addr := uint32(0x40)
			for i, b := range tt.in {
				core.WriteByteUnchecked(addr+uint32(i), b)
			}

			str, bytesRead := Decode(addr, core.MemoryLength(), core, v3Alphabets, false)
			if str != tt.out {
				t.Fatalf("decoded %q, want %q", str, tt.out)
			}
			if bytesRead != tt.bytesRead {
				t.Fatalf("read %d bytes, want %d", bytesRead, tt.bytesRead)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	for _, tt := range zstringDecodingTests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode([]rune(tt.out), v3Core, v3Alphabets)
			if !bytes.Equal(got, tt.in) {
				t.Fatalf("encoded %v, want %v", got, tt.in)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{"xyzzy", "frotz plugh", "a b c", "zorkmid"}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			core := newTestCore(0x100)
			encoded := Encode([]rune(s), core, v3Alphabets)

			addr := uint32(0x40)
			for i, b := range encoded {
				core.WriteByteUnchecked(addr+uint32(i), b)
			}

			decoded, bytesRead := Decode(addr, core.MemoryLength(), core, v3Alphabets, false)
			if decoded != s {
				t.Fatalf("round trip %q -> %q", s, decoded)
			}
			if int(bytesRead) != len(encoded) {
				t.Fatalf("bytesRead %d, want %d", bytesRead, len(encoded))
			}
		})
	}
}

func TestDecodeWithAbbreviation(t *testing.T) {
	// Story memory layout for this test:
	//   0x18-0x19: header abbreviation table base pointer -> 0x40
	//   0x40-0x41: abbreviation table entry 0, word address of the
	//              abbreviation's Z-string (byte addr 0x50 -> word addr 0x28)
	//   0x50-0x53: the abbreviation text "hi" (alphabet 0)
	//   0x60-0x63: the string under test: abbreviation 0, then "!"
	buf := make([]uint8, 0x100)
	buf[0] = 3 // version
	buf[0x18] = 0x00
	buf[0x19] = 0x40 // abbreviation table base
	core := zcore.LoadCore(buf)

	hi := Encode([]rune("hi"), &core, v3Alphabets)
	copy(buf[0x50:], hi)
	buf[0x40] = 0x00
	buf[0x41] = 0x28 // word address 0x28 -> byte address 0x50

	// z-chars: [1 (abbrev escape, table 0), 0 (index 0), 5 (shift A2), 20 ('!'), pad, pad]
	zchrs := []uint8{1, 0, 5, 20, 5, 5}
	half1 := uint16(zchrs[0])<<10 | uint16(zchrs[1])<<5 | uint16(zchrs[2])
	half2 := uint16(zchrs[3])<<10 | uint16(zchrs[4])<<5 | uint16(zchrs[5]) | 0x8000
	buf[0x60] = uint8(half1 >> 8)
	buf[0x61] = uint8(half1)
	buf[0x62] = uint8(half2 >> 8)
	buf[0x63] = uint8(half2)

	str, bytesRead := Decode(0x60, core.MemoryLength(), &core, v3Alphabets, false)
	if str != "hi!" {
		t.Fatalf("decoded %q, want %q", str, "hi!")
	}
	if bytesRead != 4 {
		t.Fatalf("read %d bytes, want 4", bytesRead)
	}
}
