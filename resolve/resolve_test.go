package resolve

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
)

func newBookWithBases(version uint8) *AddressBook {
	book := NewAddressBook(version)
	book.SpaceBase[memspace.Code] = 0x40
	book.SpaceBase[memspace.Strings] = 0x100
	book.SpaceBase[memspace.Dictionary] = 0x200
	return book
}

func TestResolveStringRefPacked(t *testing.T) {
	book := newBookWithBases(3)
	book.StringAddr[ir.Id(1)] = 0x10 // final addr 0x110, packed/2 = 0x88

	table := NewTable()
	image := make([]uint8, 0x300)
	image[0x50] = PlaceholderHi
	image[0x51] = PlaceholderLo
	// Code offset 0x10, final image offset 0x50.
	table.Add(Reference{Type: StringRef, Location: 0x10, LocationSpace: memspace.Code, Target: 1, IsPackedAddress: true, OffsetSize: 2})

	Resolve(table, image, book)

	got := uint16(image[0x50])<<8 | uint16(image[0x51])
	if want := uint16(0x88); got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestResolveObjectNumberOneByte(t *testing.T) {
	book := newBookWithBases(3)
	book.ObjectNumber[ir.Id(7)] = 3

	table := NewTable()
	image := make([]uint8, 0x100)
	// Code offset 0x05, final image offset 0x45.
	table.Add(Reference{Type: ObjectNumber, Location: 0x05, LocationSpace: memspace.Code, Target: 7, OffsetSize: 1})

	Resolve(table, image, book)

	if image[0x45] != 3 {
		t.Fatalf("got %d want 3", image[0x45])
	}
}

func TestResolveDictionaryWord(t *testing.T) {
	book := newBookWithBases(3)
	book.DictWordAddr["north"] = 0x08 // final 0x208

	table := NewTable()
	image := make([]uint8, 0x300)
	// Code offset 0x20, final image offset 0x60.
	table.Add(Reference{Type: DictionaryWord, Location: 0x20, LocationSpace: memspace.Code, Word: "north", OffsetSize: 2})

	Resolve(table, image, book)

	got := uint16(image[0x60])<<8 | uint16(image[0x61])
	if want := uint16(0x208); got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestResolveBranchTrueSense(t *testing.T) {
	book := newBookWithBases(3)
	book.LabelAddr[ir.Id(2)] = 0x20 // final 0x60

	table := NewTable()
	image := make([]uint8, 0x100)
	loc := uint32(0x44)
	image[loc] = 0x3F | 0x80 // sense bit set in the unresolved placeholder
	image[loc+1] = 0xFF
	// loc is the final image offset; the reference records it Code-relative.
	table.Add(Reference{Type: Branch, Location: loc - book.SpaceBase[memspace.Code], LocationSpace: memspace.Code, Target: 2, OffsetSize: 2})

	Resolve(table, image, book)

	wantOffset := int32(0x60) - int32(loc+2)
	wantWord := uint16(wantOffset) & 0x3FFF
	wantB0 := uint8(wantWord>>8)&0x3F | 0x80 // sense preserved from the placeholder

	if image[loc] != wantB0 || image[loc+1] != uint8(wantWord) {
		t.Fatalf("got %#x %#x want %#x %#x", image[loc], image[loc+1], wantB0, uint8(wantWord))
	}
}

func TestResolveJump(t *testing.T) {
	book := newBookWithBases(3)
	book.LabelAddr[ir.Id(5)] = 0x30 // final 0x70

	table := NewTable()
	image := make([]uint8, 0x100)
	loc := uint32(0x48)
	// loc is the final image offset; the reference records it Code-relative.
	table.Add(Reference{Type: Jump, Location: loc - book.SpaceBase[memspace.Code], LocationSpace: memspace.Code, Target: 5, OffsetSize: 2})

	Resolve(table, image, book)

	word := uint16(image[loc])<<8 | uint16(image[loc+1])
	gotOffset := int32(int16(word))
	wantOffset := int32(0x70) - int32(loc+2)
	if gotOffset != wantOffset {
		t.Fatalf("got offset %d want %d", gotOffset, wantOffset)
	}
}

func TestPackUnalignedPanics(t *testing.T) {
	book := NewAddressBook(3)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic packing an unaligned address")
		}
	}()
	book.pack(3)
}

func TestVerifyNoPlaceholdersRemainCatchesUnresolved(t *testing.T) {
	book := newBookWithBases(3)

	table := NewTable()
	image := make([]uint8, 0x100)
	// Code offset 4, final image offset 0x44.
	image[0x44] = PlaceholderHi
	image[0x45] = PlaceholderLo
	// A reference registered but never actually patched, simulating a
	// resolver bug rather than calling Resolve normally.
	table.Add(Reference{Type: ObjectNumber, Location: 4, LocationSpace: memspace.Code, Target: 99, OffsetSize: 2})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic detecting a surviving placeholder")
		}
	}()
	verifyNoPlaceholdersRemain(table, image, book)
}
