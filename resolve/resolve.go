// Package resolve implements the reference resolver (component G): after
// every space has been laid out and assigned a final base address, it
// translates the unresolved-reference table into patched bytes.
package resolve

import (
	"fmt"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
)

// Kind tags what a reference ultimately resolves to. Modeling this as a
// closed set (mirrored in Resolve's switch) rather than a free-form string
// is the same discipline §4.4.4 demands of opcodes: the one place a typo in
// a reference kind would otherwise silently mispatch an address.
type Kind int

const (
	StringRef Kind = iota
	FunctionCall
	Branch
	Jump
	ObjectNumber
	LabelAddr
	DictionaryWord
	GlobalsOffset
)

// Placeholder bytes an emitter writes before a reference is resolved. Using
// a visible sentinel (rather than zero) makes an unpatched reference easy
// to spot during debugging and is what the post-resolution scan looks for.
const (
	PlaceholderHi = 0xFF
	PlaceholderLo = 0xFF
)

// Reference records exactly where a placeholder was written and what it
// must ultimately hold. location is recorded before the placeholder bytes
// are emitted (§3.3's binding invariant) - every constructor in the emit
// package follows that order by construction, never by caller discipline.
type Reference struct {
	Type            Kind
	Location        uint32
	LocationSpace   memspace.Kind
	Target          ir.Id
	Word            string // DictionaryWord only: the dictionary word text being referenced
	Offset          uint32 // GlobalsOffset only: byte offset within the Globals space
	IsPackedAddress bool
	OffsetSize      int // 1 or 2 bytes
}

// Table accumulates references during lowering in the order they're
// created; resolution iterates it in that same order, which keeps
// resolution deterministic independent of any map's iteration order (§5).
type Table struct {
	refs []Reference
}

func NewTable() *Table { return &Table{} }

func (t *Table) Add(ref Reference) {
	t.refs = append(t.refs, ref)
}

func (t *Table) All() []Reference { return t.refs }

// AddressBook maps every resolvable IrId to its offset within its owning
// space, plus each space's final base address; resolveValue combines the
// two. Keeping these as space-relative offsets (rather than final
// addresses) means the book can be built incrementally, during generation,
// before the image assembler has decided where each space starts.
type AddressBook struct {
	Version      uint8
	SpaceBase    map[memspace.Kind]uint32
	FunctionAddr map[ir.Id]uint32 // offset within Code of the function's routine header (its local-count byte)
	LabelAddr    map[ir.Id]uint32 // offset within Code
	StringAddr   map[ir.Id]uint32 // offset within Strings
	ObjectNumber map[ir.Id]uint16 // 1-based object table slot, not an address
	DictWordAddr map[string]uint32 // offset within Dictionary
}

func NewAddressBook(version uint8) *AddressBook {
	return &AddressBook{
		Version:      version,
		SpaceBase:    map[memspace.Kind]uint32{},
		FunctionAddr: map[ir.Id]uint32{},
		LabelAddr:    map[ir.Id]uint32{},
		StringAddr:   map[ir.Id]uint32{},
		ObjectNumber: map[ir.Id]uint16{},
		DictWordAddr: map[string]uint32{},
	}
}

func (a *AddressBook) packedDivisor() uint32 {
	if a.Version <= 3 {
		return 2
	}
	return 4
}

// pack converts a byte address to its packed form, panicking - a compiler
// bug, not a runtime condition - if the address isn't aligned (§4.6.3).
func (a *AddressBook) pack(byteAddr uint32) uint16 {
	divisor := a.packedDivisor()
	if byteAddr%divisor != 0 {
		panic(fmt.Sprintf("resolve: packed address %#x is not aligned to %d", byteAddr, divisor))
	}
	return uint16(byteAddr / divisor)
}

// finalOffset translates a (space, offset) pair to its position in the
// concatenated final image.
func (a *AddressBook) finalOffset(space memspace.Kind, offset uint32) uint32 {
	base, ok := a.SpaceBase[space]
	if !ok {
		panic(fmt.Sprintf("resolve: no base address assigned for space %s", space))
	}
	return base + offset
}

// spaces is the set of assembled memspace.Space values a Reference's
// LocationSpace can name; Resolve writes directly into their byte slices.
type spaceSet map[memspace.Kind]*memspace.Space

// Resolve patches every reference in t against image, the final
// concatenated byte image, using book to look up target addresses. It
// panics (a compiler bug, not a recoverable error) on any reference whose
// target is unknown, matching §7's taxonomy: unresolved references are
// never propagated as a user-facing error.
func Resolve(t *Table, image []uint8, book *AddressBook) {
	for _, ref := range t.All() {
		location := book.finalOffset(ref.LocationSpace, ref.Location)

		switch ref.Type {
		case Branch:
			resolveBranch(image, location, ref, book)
		case Jump:
			resolveJump(image, location, ref, book)
		default:
			value := resolveValue(ref, book)
			if ref.OffsetSize == 1 {
				image[location] = uint8(value)
			} else {
				image[location] = uint8(value >> 8)
				image[location+1] = uint8(value)
			}
		}
	}

	verifyNoPlaceholdersRemain(t, image, book)
}

func resolveValue(ref Reference, book *AddressBook) uint16 {
	switch ref.Type {
	case StringRef:
		offset, ok := book.StringAddr[ref.Target]
		if !ok {
			panic(fmt.Sprintf("resolve: string %d has no assigned address", ref.Target))
		}
		byteAddr := book.finalOffset(memspace.Strings, offset)
		if ref.IsPackedAddress {
			return book.pack(byteAddr)
		}
		return uint16(byteAddr)

	case FunctionCall, LabelAddr:
		table := book.FunctionAddr
		if ref.Type == LabelAddr {
			table = book.LabelAddr
		}
		offset, ok := table[ref.Target]
		if !ok {
			panic(fmt.Sprintf("resolve: function/label %d has no assigned address", ref.Target))
		}
		byteAddr := book.finalOffset(memspace.Code, offset)
		if ref.IsPackedAddress {
			return book.pack(byteAddr)
		}
		return uint16(byteAddr)

	case ObjectNumber:
		num, ok := book.ObjectNumber[ref.Target]
		if !ok {
			panic(fmt.Sprintf("resolve: object %d has no assigned number", ref.Target))
		}
		return num

	case DictionaryWord:
		offset, ok := book.DictWordAddr[ref.Word]
		if !ok {
			panic(fmt.Sprintf("resolve: dictionary word %q has no assigned address", ref.Word))
		}
		return uint16(book.finalOffset(memspace.Dictionary, offset))

	case GlobalsOffset:
		// Unlike every other kind, the target is a literal offset fixed at
		// the moment the buffer bytes were appended to Globals, not an
		// ir.Id looked up in the book - there's nothing to look up.
		return uint16(book.finalOffset(memspace.Globals, ref.Offset))

	default:
		panic(fmt.Sprintf("resolve: unhandled reference type %v", ref.Type))
	}
}

// resolveBranch implements §4.6.4: recover the polarity bit the emitter
// encoded in the placeholder's bit 15, compute the 14-bit signed offset,
// and write the two-byte branch form.
func resolveBranch(image []uint8, location uint32, ref Reference, book *AddressBook) {
	placeholder := uint16(image[location])<<8 | uint16(image[location+1])
	sense := placeholder&0x8000 != 0

	target := resolveBranchOrJumpTarget(ref, book)
	offset := int32(target) - int32(location+2)

	if offset < -0x2000 || offset > 0x1FFF {
		panic(fmt.Sprintf("resolve: branch offset %d out of 14-bit signed range", offset))
	}

	word := uint16(offset) & 0x3FFF
	b0 := uint8(word>>8) & 0x3F
	if sense {
		b0 |= 0x80
	}
	image[location] = b0
	image[location+1] = uint8(word)
}

// resolveJump implements §4.6.5: jump's operand is a signed 16-bit offset
// from the byte after the operand word, with the same -2 correction.
func resolveJump(image []uint8, location uint32, ref Reference, book *AddressBook) {
	target := resolveBranchOrJumpTarget(ref, book)
	offset := int32(target) - int32(location+2)
	if offset < -0x8000 || offset > 0x7FFF {
		panic(fmt.Sprintf("resolve: jump offset %d out of 16-bit signed range", offset))
	}
	word := uint16(int16(offset))
	image[location] = uint8(word >> 8)
	image[location+1] = uint8(word)
}

func resolveBranchOrJumpTarget(ref Reference, book *AddressBook) uint32 {
	offset, ok := book.LabelAddr[ref.Target]
	if !ok {
		panic(fmt.Sprintf("resolve: branch/jump target label %d has no assigned address", ref.Target))
	}
	return book.finalOffset(memspace.Code, offset)
}

// verifyNoPlaceholdersRemain rescans every reference location and fails the
// build if a placeholder survived resolution (§4.6 closing invariant, §8.1).
func verifyNoPlaceholdersRemain(t *Table, image []uint8, book *AddressBook) {
	for _, ref := range t.All() {
		location := book.finalOffset(ref.LocationSpace, ref.Location)
		if ref.OffsetSize == 2 && image[location] == PlaceholderHi && image[location+1] == PlaceholderLo {
			panic(fmt.Sprintf("resolve: unresolved placeholder remains at offset %#x (space %s, target %d)", location, ref.LocationSpace, ref.Target))
		}
	}
}
