package objgen

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
	"github.com/gruetools/grue/stringenc"
	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

func v3Encoder() *stringenc.Encoder {
	core := zcore.Core{Version: 3}
	return stringenc.New(zstring.LoadAlphabets(&core), nil)
}

func TestGenerateV3EntrySizeAndDefaultsTable(t *testing.T) {
	prog := ir.NewProgram()
	a := ir.NewObject(ir.Id(1), "lamp")
	a.ShortName = "brass lantern"
	b := ir.NewObject(ir.Id(2), "box")
	b.ShortName = "box"
	prog.Objects = []*ir.Object{a, b}

	space := memspace.New(memspace.Objects)
	refs := resolve.NewTable()
	book := resolve.NewAddressBook(3)

	Generate(prog, 3, v3Encoder(), space, refs, book)

	if book.ObjectNumber[ir.Id(1)] != 1 || book.ObjectNumber[ir.Id(2)] != 2 {
		t.Fatalf("unexpected object numbering: %v", book.ObjectNumber)
	}

	defaultsBytes := v3Defaults * 2
	firstEntryStart := defaultsBytes
	secondEntryStart := firstEntryStart + v3EntrySize
	if int(space.Len()) < secondEntryStart+v3EntrySize {
		t.Fatalf("space too short: got %d bytes", space.Len())
	}

	// property pointer is the last 2 bytes of each 9-byte V3 entry, and must
	// have been patched away from the 0 it was written as.
	ptr1 := uint16(space.Bytes()[firstEntryStart+7])<<8 | uint16(space.Bytes()[firstEntryStart+8])
	if ptr1 == 0 {
		t.Fatal("expected the first object's property pointer to be patched to a non-zero offset")
	}
}

func TestWriteEntryAttributeBitPlacement(t *testing.T) {
	o := ir.NewObject(ir.Id(1), "thing")
	o.Attributes[0] = true // topmost bit of the 32-bit V3 flag field

	space := memspace.New(memspace.Objects)
	refs := resolve.NewTable()
	book := resolve.NewAddressBook(3)
	book.ObjectNumber[ir.Id(1)] = 1

	writeEntry(o, 3, v3EntrySize, space, refs, book)

	if space.Bytes()[0]&0x80 == 0 {
		t.Fatalf("expected attribute 0 to set the top bit of byte 0, got %#x", space.Bytes()[0])
	}
}

func TestWritePropertyHeaderV3Encoding(t *testing.T) {
	space := memspace.New(memspace.Objects)
	writePropertyHeader(3, 5, 3, space)

	want := uint8(((3 - 1) << 5) | 5)
	if space.Bytes()[0] != want {
		t.Fatalf("got %#x want %#x", space.Bytes()[0], want)
	}
}

func TestWritePropertyHeaderV4TwoByteForm(t *testing.T) {
	space := memspace.New(memspace.Objects)
	writePropertyHeader(4, 10, 5, space)

	if space.Bytes()[0] != (0x80 | 10) {
		t.Fatalf("expected two-byte form first byte 0x8A, got %#x", space.Bytes()[0])
	}
	if space.Bytes()[1] != 5 {
		t.Fatalf("expected length byte 5, got %d", space.Bytes()[1])
	}
}

func TestGenerateDictionarySortedByEncodedBytes(t *testing.T) {
	words := []DictionaryWord{{Text: "zebra"}, {Text: "apple"}, {Text: "mango"}}
	space := memspace.New(memspace.Dictionary)
	book := resolve.NewAddressBook(3)

	GenerateDictionary(words, []uint8{','}, 3, v3Encoder(), space, book)

	if book.DictWordAddr["apple"] >= book.DictWordAddr["mango"] || book.DictWordAddr["mango"] >= book.DictWordAddr["zebra"] {
		t.Fatalf("expected dictionary entries sorted ascending by encoded bytes: apple=%d mango=%d zebra=%d",
			book.DictWordAddr["apple"], book.DictWordAddr["mango"], book.DictWordAddr["zebra"])
	}
}

func TestGenerateDictionaryEntryLengthIncludesData(t *testing.T) {
	words := []DictionaryWord{{Text: "go", Data: []uint8{1, 2}}}
	space := memspace.New(memspace.Dictionary)
	book := resolve.NewAddressBook(3)

	GenerateDictionary(words, nil, 3, v3Encoder(), space, book)

	// header: 1 sep-count (0) + 0 sep bytes + 1 entry-length + 2 entry-count = 4 bytes
	entryLength := space.Bytes()[1]
	if entryLength != 4+2 { // 4-byte encoded word (V3) + 2 data bytes
		t.Fatalf("expected entry length 6, got %d", entryLength)
	}
}
