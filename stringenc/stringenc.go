// Package stringenc implements the string encoder (component C): it turns
// every distinct source-text literal in an ir.Program into a Z-string,
// deduplicated by content, substituting any installed abbreviation, and
// appends the encoded bytes into the Strings space in a stable order.
//
// The alphabet lookup and ZSCII escape rules mirror zstring.Encode exactly
// - the runtime's decoder and the compiler's encoder must agree on every
// shift and escape, and implementing that twice independently is how the
// two halves of a toolchain drift apart. This package reimplements the
// rune-to-z-char step (rather than calling zstring.Encode directly) only
// because abbreviation substitution has to happen at the z-char level:
// an abbreviation is a two-z-char escape sequence with no printable rune
// representation, so it can't be spliced in above zstring.Encode's rune
// interface.
package stringenc

import (
	"sort"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/zstring"
)

// Abbreviation is one entry installed in the story's abbreviation table
// (§4.2's escape codes 1-3 cover 96 possible entries: 32 per escape code).
// Picking which substrings are worth abbreviating is a compression
// heuristic outside this package's job; Encoder only applies a fixed table
// once one is supplied.
type Abbreviation struct {
	Text       string
	EscapeCode uint8 // 1, 2 or 3
	Index      uint8 // 0-31 within that escape code
}

// Encoder assigns every interned ir.Id a position in the Strings space,
// deduplicating by the underlying text so two identical literals share one
// encoded copy (mirrors ir.Builder.Intern's content-based Id dedup).
type Encoder struct {
	alphabets *zstring.Alphabets

	abbrevsByLen []Abbreviation // sorted longest-text-first for greedy matching
	encoded      map[string][]uint8
}

func New(alphabets *zstring.Alphabets, abbrevs []Abbreviation) *Encoder {
	sorted := make([]Abbreviation, len(abbrevs))
	copy(sorted, abbrevs)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Text) > len(sorted[j].Text) })
	return &Encoder{alphabets: alphabets, abbrevsByLen: sorted, encoded: map[string][]uint8{}}
}

// Encode turns text into its Z-string bytes, substituting any installed
// abbreviation that appears literally in it. EncodeLiteral is the
// no-substitution path - an abbreviation's own stored text must never
// itself reference another abbreviation (§3.3), matching the restriction
// zstring.Decode enforces on the way back.
func (e *Encoder) Encode(text string) []uint8 {
	if cached, ok := e.encoded[text]; ok {
		return cached
	}
	bytes := e.encodeZChars(text, false)
	e.encoded[text] = bytes
	return bytes
}

// EncodeLiteral encodes text with no abbreviation substitution, for use
// when populating the abbreviation table itself.
func (e *Encoder) EncodeLiteral(text string) []uint8 {
	return e.encodeZChars(text, true)
}

func (e *Encoder) encodeZChars(text string, noAbbreviations bool) []uint8 {
	zchrs := e.toZChars(text, noAbbreviations)

	for len(zchrs)%3 != 0 {
		zchrs = append(zchrs, 5)
	}

	out := make([]uint8, 0, len(zchrs)/3*2)
	for i := 0; i < len(zchrs); i += 3 {
		halfWord := uint16(zchrs[i])<<10 | uint16(zchrs[i+1])<<5 | uint16(zchrs[i+2])
		if i+3 >= len(zchrs) {
			halfWord |= 0x8000
		}
		out = append(out, uint8(halfWord>>8), uint8(halfWord))
	}
	return out
}

// toZChars walks text left to right, greedily substituting the longest
// installed abbreviation at each position with its two-z-char escape
// sequence (escape z-char 1/2/3, then the table index), and encoding every
// other rune via the same alphabet-lookup / shift / ZSCII-escape rules as
// zstring.Encode.
func (e *Encoder) toZChars(text string, noAbbreviations bool) []uint8 {
	runes := []rune(text)
	var zchrs []uint8

	for i := 0; i < len(runes); {
		if !noAbbreviations {
			if ab, n, ok := e.matchAbbreviation(runes[i:]); ok {
				zchrs = append(zchrs, ab.EscapeCode, ab.Index)
				i += n
				continue
			}
		}

		r := runes[i]
		if r == ' ' {
			zchrs = append(zchrs, 0)
			i++
			continue
		}
		if idx, ok := indexOf(e.alphabets.A0, uint8(r)); ok {
			zchrs = append(zchrs, idx+6)
			i++
			continue
		}
		if idx, ok := indexOf(e.alphabets.A1, uint8(r)); ok {
			zchrs = append(zchrs, 4, idx+6)
			i++
			continue
		}
		if idx, ok := indexOf(e.alphabets.A2, uint8(r)); ok {
			zchrs = append(zchrs, 5, idx+6)
			i++
			continue
		}
		zscii := uint8(r)
		zchrs = append(zchrs, 5, 6, zscii>>5&0b11111, zscii&0b11111)
		i++
	}
	return zchrs
}

func (e *Encoder) matchAbbreviation(remaining []rune) (Abbreviation, int, bool) {
	for _, ab := range e.abbrevsByLen {
		abRunes := []rune(ab.Text)
		if len(abRunes) == 0 || len(abRunes) > len(remaining) {
			continue
		}
		if string(remaining[:len(abRunes)]) == ab.Text {
			return ab, len(abRunes), true
		}
	}
	return Abbreviation{}, 0, false
}

func indexOf(table [26]uint8, b uint8) (uint8, bool) {
	for i, c := range table {
		if c == b {
			return uint8(i), true
		}
	}
	return 0, false
}

// Pool accumulates every distinct string an ir.Program references and
// writes them into a Strings space in a stable, deterministic order (§5):
// the order Add first saw each id, so re-running the compiler on unchanged
// IR always lays strings out identically.
type Pool struct {
	enc   *Encoder
	order []ir.Id
	texts map[ir.Id]string
}

func NewPool(enc *Encoder) *Pool {
	return &Pool{enc: enc, texts: map[ir.Id]string{}}
}

// Add registers a string literal. Calling Add twice with the same id is a
// no-op; calling it with two different ids that happen to share text still
// produces two Strings-space entries, since ir.Builder.Intern is the layer
// responsible for ensuring identical text shares one Id.
func (p *Pool) Add(id ir.Id, text string) {
	if _, ok := p.texts[id]; ok {
		return
	}
	p.texts[id] = text
	p.order = append(p.order, id)
}

// Write encodes and appends every registered string into space in Add order,
// returning each string's offset so the caller can populate an
// AddressBook.StringAddr. Every returned offset is aligned to the
// encoding's own word boundary, so the caller need only verify the space's
// base address is itself aligned before packing (§4.6.3).
func (p *Pool) Write(space *memspace.Space) map[ir.Id]uint32 {
	offsets := make(map[ir.Id]uint32, len(p.order))
	for _, id := range p.order {
		bytes := p.enc.Encode(p.texts[id])
		offsets[id] = space.AppendBytes(bytes)
	}
	return offsets
}
