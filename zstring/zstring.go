// Package zstring implements the Z-character text encoding shared by the
// runtime and the compiler's string encoder: five-bit z-characters packed
// three to a half-word, three shiftable alphabets, abbreviation expansion
// and the ZSCII escape for characters outside the default alphabets.
package zstring

import "github.com/gruetools/grue/zcore"

var a0Default = [26]uint8{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1Default = [26]uint8{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}
var a2V1 = [26]uint8{0, '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '<', '-', ':', '(', ')'}
var a2Default = [26]uint8{0, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

type alphabet int

const (
	alphabetA0 alphabet = 0
	alphabetA1 alphabet = 1
	alphabetA2 alphabet = 2
)

// Alphabets holds the three 26-entry z-char-to-ZSCII tables in effect for a
// story. Entry 0 of alphabet 2 (z-char 6) is never looked up here - it's
// always the ZSCII escape. In versions 2 and up, entry 1 of alphabet 2
// (z-char 7) is the newline.
type Alphabets struct {
	A0 [26]uint8
	A1 [26]uint8
	A2 [26]uint8
}

// LoadAlphabets builds the alphabet tables for a story. Versions 1-4 always
// use the built-in tables (version 1's A2 differs slightly from v2+'s). V5+
// stories may replace all three tables with a custom 78-byte table pointed
// to by the header's alternative-character-set address.
func LoadAlphabets(core *zcore.Core) *Alphabets {
	a := &Alphabets{A0: a0Default, A1: a1Default}
	if core.Version == 1 {
		a.A2 = a2V1
	} else {
		a.A2 = a2Default
	}

	if core.Version >= 5 && core.AlternativeCharSetBaseAddress != 0 {
		base := uint32(core.AlternativeCharSetBaseAddress)
		copy(a.A0[:], core.ReadSlice(base, base+26))
		copy(a.A1[:], core.ReadSlice(base+26, base+52))
		copy(a.A2[:], core.ReadSlice(base+52, base+78))
		a.A2[0] = 0    // position 0 (z-char 6) is the ZSCII escape
		a.A2[1] = '\n' // position 1 (z-char 7) is still the newline
	}

	return a
}

func (a *Alphabets) table(which alphabet) [26]uint8 {
	switch which {
	case alphabetA1:
		return a.A1
	case alphabetA2:
		return a.A2
	default:
		return a.A0
	}
}

// Decode reads a Z-string starting at addr, expanding abbreviations and
// ZSCII escapes, and returns the decoded text plus the number of bytes
// consumed from memory (always a multiple of 2). noAbbreviations suppresses
// abbreviation expansion - the text of an abbreviation itself may never
// reference another abbreviation (S3.3), so the abbreviation lookup path
// decodes with it set.
func Decode(addr uint32, memoryLength uint32, core *zcore.Core, alphabets *Alphabets, noAbbreviations bool) (string, uint32) {
	version := core.Version
	var zchrStream []uint8
	ptr := addr

	for {
		halfWord := core.ReadHalfWord(ptr)
		isLastHalfWord := (halfWord >> 15) == 1

		zchrStream = append(zchrStream, uint8((halfWord>>10)&0b11111))
		zchrStream = append(zchrStream, uint8((halfWord>>5)&0b11111))
		zchrStream = append(zchrStream, uint8(halfWord&0b11111))

		ptr += 2
		if isLastHalfWord {
			break
		}
	}

	bytesRead := ptr - addr

	var out []byte
	baseAlphabet := alphabetA0
	nextAlphabet := alphabetA0

	for i := 0; i < len(zchrStream); i++ {
		zchr := zchrStream[i]
		currentAlphabet := nextAlphabet
		nextAlphabet = baseAlphabet

		isAbbreviationEscape := !noAbbreviations && ((version == 2 && zchr == 1) || (version >= 3 && zchr >= 1 && zchr <= 3))

		switch {
		case zchr == 0:
			out = append(out, ' ')
		case version == 1 && zchr == 1:
			out = append(out, '\n')
		case isAbbreviationEscape:
			if i+1 < len(zchrStream) {
				abbrevText := FindAbbreviation(core, alphabets, zchr, zchrStream[i+1])
				out = append(out, abbrevText...)
				i++
			}
		case version == 1 && zchr == 2:
			nextAlphabet = (currentAlphabet + 1) % 3
		case version == 1 && zchr == 3:
			nextAlphabet = (currentAlphabet + 2) % 3
		case zchr == 4:
			if version >= 3 {
				nextAlphabet = (currentAlphabet + 1) % 3
			} else {
				baseAlphabet = (baseAlphabet + 1) % 3
				nextAlphabet = baseAlphabet
			}
		case zchr == 5:
			if version >= 3 {
				nextAlphabet = (currentAlphabet + 2) % 3
			} else {
				baseAlphabet = (baseAlphabet + 2) % 3
				nextAlphabet = baseAlphabet
			}
		case currentAlphabet == alphabetA2 && zchr == 6:
			if i+2 < len(zchrStream) {
				out = append(out, uint8(zchrStream[i+1]<<5|zchrStream[i+2]))
				i += 2
			}
		default:
			table := alphabets.table(currentAlphabet)
			out = append(out, table[zchr-6])
		}
	}

	return string(out), bytesRead
}

// Encode packs runes into a Z-string using the default alphabets (plus the
// ZSCII escape for anything outside them), padding the final word with
// shift-5 characters and setting the end-of-string bit on the final
// half-word. It never substitutes abbreviations - that's a compression
// choice for a string pool builder, not a property of the encoding itself,
// and dictionary word lookup must never produce abbreviation-compressed
// bytes (S8.1).
func Encode(runes []rune, core *zcore.Core, alphabets *Alphabets) []uint8 {
	var zchrs []uint8

	for _, r := range runes {
		if r == ' ' {
			zchrs = append(zchrs, 0)
			continue
		}
		if idx, ok := indexOf(alphabets.A0, uint8(r)); ok {
			zchrs = append(zchrs, idx+6)
			continue
		}
		if idx, ok := indexOf(alphabets.A1, uint8(r)); ok {
			zchrs = append(zchrs, 4, idx+6)
			continue
		}
		if idx, ok := indexOf(alphabets.A2, uint8(r)); ok {
			zchrs = append(zchrs, 5, idx+6)
			continue
		}
		// ZSCII escape: alphabet-2 shift, escape char 6, then two 5-bit halves.
		zscii := uint8(r)
		if r > 126 {
			if translated, ok := unicodeToZscii(r, core); ok {
				zscii = translated
			}
		}
		zchrs = append(zchrs, 5, 6, zscii>>5&0b11111, zscii&0b11111)
	}

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

func indexOf(table [26]uint8, b uint8) (uint8, bool) {
	for i, c := range table {
		if c == b {
			return uint8(i), true
		}
	}
	return 0, false
}
