package dictionary_test

import (
	"testing"

	"github.com/gruetools/grue/dictionary"
	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

// buildV3Dictionary hand-assembles a two-entry, pre-sorted V3 dictionary at
// address 0x40: one separator (','), 6-byte entries (4-byte encoded word +
// 2 bytes of data), terminated z-char halfwords so Decode doesn't run past
// the entry into whatever follows it.
func buildV3Dictionary() (*zcore.Core, *zstring.Alphabets, uint32) {
	buf := make([]uint8, 0x100)
	buf[0] = 3 // version

	const baseAddress = 0x40
	buf[baseAddress+0] = 1    // separator count
	buf[baseAddress+1] = 0x2c // ','
	buf[baseAddress+2] = 6    // entry length
	buf[baseAddress+3] = 0x00
	buf[baseAddress+4] = 0x02 // entry count = 2

	entry0 := baseAddress + 5
	copy(buf[entry0:], []uint8{0x01, 0x00, 0x80, 0x00, 0xaa, 0xbb})

	entry1 := entry0 + 6
	copy(buf[entry1:], []uint8{0x18, 0x00, 0x80, 0x00, 0xcc, 0xdd})

	core := zcore.LoadCore(buf)
	alphabets := zstring.LoadAlphabets(&core)
	return &core, alphabets, baseAddress
}

func TestParseDictionaryHeader(t *testing.T) {
	core, alphabets, baseAddress := buildV3Dictionary()
	dict := dictionary.ParseDictionary(baseAddress, core, alphabets)

	if len(dict.Header.InputCodes) != 1 || dict.Header.InputCodes[0] != 0x2c {
		t.Fatalf("unexpected separator set %v", dict.Header.InputCodes)
	}
}

func TestFindExistingEntries(t *testing.T) {
	core, alphabets, baseAddress := buildV3Dictionary()
	dict := dictionary.ParseDictionary(baseAddress, core, alphabets)

	if addr := dict.Find([]uint8{0x01, 0x00, 0x80, 0x00}); addr != uint16(baseAddress+5) {
		t.Errorf("expected first entry at %#x, got %#x", baseAddress+5, addr)
	}
	if addr := dict.Find([]uint8{0x18, 0x00, 0x80, 0x00}); addr != uint16(baseAddress+11) {
		t.Errorf("expected second entry at %#x, got %#x", baseAddress+11, addr)
	}
}

func TestFindMissingEntry(t *testing.T) {
	core, alphabets, baseAddress := buildV3Dictionary()
	dict := dictionary.ParseDictionary(baseAddress, core, alphabets)

	if addr := dict.Find([]uint8{0x03, 0x00, 0x80, 0x00}); addr != 0 {
		t.Errorf("expected no match, got %#x", addr)
	}
}
