package stringenc

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

func v3Alphabets() *zstring.Alphabets {
	core := zcore.Core{Version: 3}
	return zstring.LoadAlphabets(&core)
}

func TestEncodeSingleWordPadsAndSetsEndBit(t *testing.T) {
	enc := New(v3Alphabets(), nil)
	got := enc.Encode("an")

	if len(got) != 2 {
		t.Fatalf("expected one halfword (2 bytes), got %d: %v", len(got), got)
	}
	if got[0]&0x80 == 0 {
		t.Fatalf("expected the end-of-string bit set on the only halfword, got %#x", got[0])
	}
}

func TestEncodeCaches(t *testing.T) {
	enc := New(v3Alphabets(), nil)
	first := enc.Encode("lantern")
	second := enc.Encode("lantern")

	if len(first) != len(second) {
		t.Fatalf("cached encode length mismatch")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached encode differs at byte %d", i)
		}
	}
}

func TestAbbreviationSubstitution(t *testing.T) {
	abbrevs := []Abbreviation{{Text: "the ", EscapeCode: 1, Index: 0}}
	enc := New(v3Alphabets(), abbrevs)

	withAbbrev := enc.Encode("the lamp")
	literal := enc.EncodeLiteral("the lamp")

	if len(withAbbrev) >= len(literal) {
		t.Fatalf("expected abbreviation substitution to shrink the encoding: with=%d bytes literal=%d bytes", len(withAbbrev), len(literal))
	}
}

func TestEncodeLiteralNeverSubstitutes(t *testing.T) {
	abbrevs := []Abbreviation{{Text: "lamp", EscapeCode: 1, Index: 0}}
	enc := New(v3Alphabets(), abbrevs)

	withAbbrev := enc.Encode("lamp")
	literal := enc.EncodeLiteral("lamp")

	if len(withAbbrev) >= len(literal) {
		t.Fatalf("expected Encode to substitute and EncodeLiteral not to: with=%d literal=%d", len(withAbbrev), len(literal))
	}
}

func TestPoolWritePreservesInsertionOrderAndReturnsOffsets(t *testing.T) {
	enc := New(v3Alphabets(), nil)
	pool := NewPool(enc)
	pool.Add(ir.Id(2), "second")
	pool.Add(ir.Id(1), "first")
	pool.Add(ir.Id(2), "ignored re-add")

	space := memspace.New(memspace.Strings)
	offsets := pool.Write(space)

	if offsets[ir.Id(2)] != 0 {
		t.Fatalf("expected id 2 (added first) at offset 0, got %d", offsets[ir.Id(2)])
	}
	secondLen := uint32(len(enc.Encode("second")))
	if offsets[ir.Id(1)] != secondLen {
		t.Fatalf("expected id 1 right after id 2's bytes at offset %d, got %d", secondLen, offsets[ir.Id(1)])
	}
}
