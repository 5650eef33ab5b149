// Package memspace implements the assembler-side memory spaces (component
// B): growable, disjoint byte vectors that the emitter and generators
// append into. There is deliberately no address-routed write that dispatches
// across spaces by address - a caller always names the space it means to
// write, which is what keeps a stray offset calculation from corrupting an
// unrelated table.
package memspace

// Kind names one of the five (really seven, counting the header and the
// optional abbreviations table separately) disjoint spaces an
// UnresolvedReference can point into.
type Kind int

const (
	Header Kind = iota
	Globals
	Abbreviations
	Objects
	Dictionary
	Strings
	Code
)

func (k Kind) String() string {
	switch k {
	case Header:
		return "Header"
	case Globals:
		return "Globals"
	case Abbreviations:
		return "Abbreviations"
	case Objects:
		return "Objects"
	case Dictionary:
		return "Dictionary"
	case Strings:
		return "Strings"
	case Code:
		return "Code"
	default:
		return "Unknown"
	}
}

// Space is one growable byte vector. Bytes are big-endian throughout, per
// §6.1.
type Space struct {
	Kind   Kind
	bytes  []uint8
	frozen bool
}

func New(kind Kind) *Space {
	return &Space{Kind: kind}
}

// NewSized pre-sizes a space (the header is always exactly 64 bytes, and
// Globals is always 240 words) and zero-fills it.
func NewSized(kind Kind, size int) *Space {
	return &Space{Kind: kind, bytes: make([]uint8, size)}
}

func (s *Space) Len() int { return len(s.bytes) }

// CurrentOffset is the offset the next append will land at.
func (s *Space) CurrentOffset() uint32 { return uint32(len(s.bytes)) }

func (s *Space) Bytes() []uint8 { return s.bytes }

// Freeze marks a space read-only from this point on. Object, string and
// dictionary spaces are frozen once code emission begins (§3.2) - nothing
// after that point may append to them, since the object/dictionary
// generator and string encoder run strictly before lowering. Pad is the one
// exception: image assembly still aligns a frozen space's end, which adds
// trailing zero bytes and moves no offset already recorded.
func (s *Space) Freeze() { s.frozen = true }

func (s *Space) checkWritable() {
	if s.frozen {
		panic("memspace: write to frozen " + s.Kind.String() + " space")
	}
}

// AppendByte appends one byte and returns the offset it was written at.
func (s *Space) AppendByte(b uint8) uint32 {
	s.checkWritable()
	offset := s.CurrentOffset()
	s.bytes = append(s.bytes, b)
	return offset
}

// AppendWord appends a big-endian 16-bit word and returns the offset of its
// first byte.
func (s *Space) AppendWord(w uint16) uint32 {
	s.checkWritable()
	offset := s.CurrentOffset()
	s.bytes = append(s.bytes, uint8(w>>8), uint8(w))
	return offset
}

// AppendBytes appends a raw byte run (e.g. an encoded Z-string) and returns
// the starting offset.
func (s *Space) AppendBytes(b []uint8) uint32 {
	s.checkWritable()
	offset := s.CurrentOffset()
	s.bytes = append(s.bytes, b...)
	return offset
}

// WriteByteAt overwrites a single already-appended byte; used to patch
// placeholders and to backfill length/count fields computed after the fact.
func (s *Space) WriteByteAt(offset uint32, b uint8) {
	s.bytes[offset] = b
}

// WriteWordAt overwrites a big-endian word at an already-appended offset.
func (s *Space) WriteWordAt(offset uint32, w uint16) {
	s.bytes[offset] = uint8(w >> 8)
	s.bytes[offset+1] = uint8(w)
}

// Pad appends zero bytes until the space's length is a multiple of n, even
// on a frozen space.
func (s *Space) Pad(n int) {
	for len(s.bytes)%n != 0 {
		s.bytes = append(s.bytes, 0)
	}
}
