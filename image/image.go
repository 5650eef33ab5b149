// Package image implements the image assembler (component H): it lays the
// generated memory spaces out in their canonical order, writes the 64-byte
// header zcore.LoadCore expects to parse, resolves every unresolved
// reference against the concatenated result, and pads the file to its
// declared length.
package image

import (
	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
)

// Spaces holds one memspace.Space per component of the final file, built up
// during generation and lowering. Abbreviations may be nil - a story with
// no abbreviation table is common and legal.
type Spaces struct {
	Globals       *memspace.Space
	Abbreviations *memspace.Space
	Objects       *memspace.Space
	Dictionary    *memspace.Space
	Code          *memspace.Space
	Strings       *memspace.Space
}

const headerSize = 64
const globalsWordCount = 240

// lengthDivisor is the file-length field's scale factor (§6.1): the stored
// header value is the real byte length divided by this, matching
// zcore.Core.FileLength's own divisor table.
func lengthDivisor(version uint8) uint16 {
	switch {
	case version <= 3:
		return 2
	case version <= 5:
		return 4
	default:
		return 8
	}
}

func packedAlignment(version uint8) int {
	if version <= 3 {
		return 2
	}
	return 4
}

// Assemble concatenates every space in canonical order (Header | Globals |
// Abbreviations | Objects | Dictionary | Code | Strings), resolves all
// references, and writes the header fields that depend on the final
// layout. initFuncId names the function to run at startup; its byte address
// (Code base plus its recorded offset) becomes the header's initial-PC
// field for V1-5 (V6+'s
// call-to-main convention is out of scope here, matching the runtime's own
// V3-V5 focus).
func Assemble(version uint8, spaces Spaces, refs *resolve.Table, book *resolve.AddressBook, initFuncId ir.Id, hasInit bool) []uint8 {
	if spaces.Globals == nil {
		spaces.Globals = memspace.NewSized(memspace.Globals, globalsWordCount*2)
	}
	if spaces.Abbreviations == nil {
		spaces.Abbreviations = memspace.New(memspace.Abbreviations)
	}

	spaces.Objects.Pad(packedAlignment(version))
	spaces.Dictionary.Pad(packedAlignment(version))
	spaces.Code.Pad(packedAlignment(version))
	spaces.Strings.Pad(packedAlignment(version))

	header := make([]uint8, headerSize)

	offset := uint32(headerSize)
	book.SpaceBase[memspace.Header] = 0

	book.SpaceBase[memspace.Globals] = offset
	offset += uint32(spaces.Globals.Len())

	book.SpaceBase[memspace.Abbreviations] = offset
	abbrevBase := offset
	offset += uint32(spaces.Abbreviations.Len())

	book.SpaceBase[memspace.Objects] = offset
	objectsBase := offset
	offset += uint32(spaces.Objects.Len())

	// Static memory begins right after the object table: header, globals,
	// abbreviations and objects are dynamic, so a story can write object
	// attributes and tree links; dictionary, code and strings are
	// static-or-higher from here on.
	staticBase := offset

	book.SpaceBase[memspace.Dictionary] = offset
	dictBase := offset
	offset += uint32(spaces.Dictionary.Len())

	book.SpaceBase[memspace.Code] = offset
	offset += uint32(spaces.Code.Len())

	book.SpaceBase[memspace.Strings] = offset
	offset += uint32(spaces.Strings.Len())

	img := make([]uint8, 0, offset)
	img = append(img, header...)
	img = append(img, spaces.Globals.Bytes()...)
	img = append(img, spaces.Abbreviations.Bytes()...)
	img = append(img, spaces.Objects.Bytes()...)
	img = append(img, spaces.Dictionary.Bytes()...)
	img = append(img, spaces.Code.Bytes()...)
	img = append(img, spaces.Strings.Bytes()...)

	resolve.Resolve(refs, img, book)

	writeHeader(img, version, staticBase, objectsBase, dictBase, abbrevBase, book, initFuncId, hasInit)

	return img
}

func writeHeader(img []uint8, version uint8, staticBase, objectsBase, dictBase, abbrevBase uint32, book *resolve.AddressBook, initFuncId ir.Id, hasInit bool) {
	img[0x00] = version
	if version <= 3 {
		img[0x01] = 0b0010_0000 // split-screen-available, per zcore.LoadCore's own V1-3 flag set
	} else {
		img[0x01] = 0b0000_0001 // colours available
	}

	putWord(img, 0x04, uint16(staticBase)) // "base of high memory" == base of static memory here: code/strings are never read as dynamic
	putWord(img, 0x0e, uint16(staticBase))
	putWord(img, 0x08, uint16(dictBase))
	putWord(img, 0x0a, uint16(objectsBase))
	putWord(img, 0x0c, uint16(book.SpaceBase[memspace.Globals]))
	if abbrevBase != book.SpaceBase[memspace.Abbreviations] {
		panic("image: abbreviation base mismatch")
	}
	putWord(img, 0x18, uint16(abbrevBase))

	if hasInit {
		entryOffset, ok := book.FunctionAddr[initFuncId]
		if !ok {
			panic("image: init function has no assigned address")
		}
		entryAddr := book.SpaceBase[memspace.Code] + entryOffset
		if version <= 3 {
			// V1-3's initial PC points directly at the first instruction,
			// not a packed routine address - there is no implicit routine
			// header byte for the entry point (§9's open question, resolved
			// here: the compiler never synthesizes a dummy routine header).
			putWord(img, 0x06, uint16(entryAddr))
		} else {
			putWord(img, 0x06, uint16(entryAddr))
		}
	}

	img[0x1e] = 0x06
	img[0x1f] = 0x01
	img[0x20] = 25
	img[0x21] = 80
	putWord(img, 0x22, 80)
	putWord(img, 0x24, 25)
	img[0x26] = 1
	img[0x27] = 1
	putWord(img, 0x32, 0x0102)

	divisor := lengthDivisor(version)
	fileLength := uint16(len(img)) / divisor
	putWord(img, 0x1a, fileLength)

	checksum := computeChecksum(img, staticBase)
	putWord(img, 0x1c, checksum)
}

func putWord(img []uint8, offset int, v uint16) {
	img[offset] = uint8(v >> 8)
	img[offset+1] = uint8(v)
}

// computeChecksum sums every byte from 0x40 onward to the file's declared
// end (§3.6.1's verification field), matching how a real interpreter
// re-derives it for the `verify` opcode.
func computeChecksum(img []uint8, staticBase uint32) uint16 {
	var sum uint16
	for i := headerSize; i < len(img); i++ {
		sum += uint16(img[i])
	}
	return sum
}
