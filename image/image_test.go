package image

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
)

func minimalSpaces() Spaces {
	objects := memspace.New(memspace.Objects)
	objects.AppendByte(1)
	dict := memspace.New(memspace.Dictionary)
	dict.AppendByte(2)
	code := memspace.New(memspace.Code)
	code.AppendByte(3)
	strings := memspace.New(memspace.Strings)
	strings.AppendByte(4)
	return Spaces{Objects: objects, Dictionary: dict, Code: code, Strings: strings}
}

func TestAssembleWritesVersionAndFillsGlobalsAndAbbreviationsWhenNil(t *testing.T) {
	book := resolve.NewAddressBook(3)
	img := Assemble(3, minimalSpaces(), resolve.NewTable(), book, 0, false)

	if img[0x00] != 3 {
		t.Fatalf("expected version byte 3, got %d", img[0x00])
	}
	if book.SpaceBase[memspace.Globals] != headerSize {
		t.Fatalf("expected globals to start right after the header, got %d", book.SpaceBase[memspace.Globals])
	}
}

func TestAssembleStaticBaseFollowsObjects(t *testing.T) {
	book := resolve.NewAddressBook(3)
	img := Assemble(3, minimalSpaces(), resolve.NewTable(), book, 0, false)

	staticBase := uint16(img[0x0e])<<8 | uint16(img[0x0f])
	afterObjects := book.SpaceBase[memspace.Dictionary]
	if uint32(staticBase) != afterObjects {
		t.Fatalf("expected static memory to begin right after the objects space, got %#x want %#x", staticBase, afterObjects)
	}
	highMemBase := uint16(img[0x04])<<8 | uint16(img[0x05])
	if highMemBase != staticBase {
		t.Fatalf("expected high memory base to match static base, got %#x want %#x", highMemBase, staticBase)
	}
}

func TestAssembleInitFuncWritesInitialPC(t *testing.T) {
	book := resolve.NewAddressBook(3)
	initId := ir.Id(1)
	book.FunctionAddr[initId] = 0 // entry at the very start of Code

	img := Assemble(3, minimalSpaces(), resolve.NewTable(), book, initId, true)

	pc := uint16(img[0x06])<<8 | uint16(img[0x07])
	wantPc := uint16(book.SpaceBase[memspace.Code])
	if pc != wantPc {
		t.Fatalf("expected initial PC %#x (code base + entry offset 0), got %#x", wantPc, pc)
	}
}

func TestAssembleMissingInitFuncAddrPanics(t *testing.T) {
	book := resolve.NewAddressBook(3)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when hasInit is true but the function has no recorded address")
		}
	}()
	Assemble(3, minimalSpaces(), resolve.NewTable(), book, ir.Id(99), true)
}

func TestAssembleFileLengthFieldUsesVersionDivisor(t *testing.T) {
	book := resolve.NewAddressBook(3)
	img := Assemble(3, minimalSpaces(), resolve.NewTable(), book, 0, false)

	want := uint16(len(img)) / lengthDivisor(3)
	got := uint16(img[0x1a])<<8 | uint16(img[0x1b])
	if got != want {
		t.Fatalf("got file length %d want %d", got, want)
	}
}

func TestAssembleChecksumSumsBytesAfterHeader(t *testing.T) {
	book := resolve.NewAddressBook(3)
	img := Assemble(3, minimalSpaces(), resolve.NewTable(), book, 0, false)

	var want uint16
	for i := headerSize; i < len(img); i++ {
		want += uint16(img[i])
	}
	got := uint16(img[0x1c])<<8 | uint16(img[0x1d])
	if got != want {
		t.Fatalf("got checksum %d want %d", got, want)
	}
}
