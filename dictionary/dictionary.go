// Package dictionary parses a story's word dictionary - the separator set,
// entry format and the word table itself - and looks words up in it. The
// table is sorted by the interpreter's own encoding rules (12.3), so lookup
// is a binary search, not a scan: that's the whole point of sorting it.
package dictionary

import (
	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

type DictionaryHeader struct {
	n          uint8
	InputCodes []uint8
	length     uint8
	count      int16
}

type DictionaryEntry struct {
	address     uint16
	encodedWord []uint8
	decodedWord string
	data        []uint8
}

type Dictionary struct {
	Header  DictionaryHeader
	entries []DictionaryEntry
}

func ParseDictionary(baseAddress uint32, core *zcore.Core, alphabets *zstring.Alphabets) *Dictionary {
	version := core.Version
	numInputCodes := core.ReadByte(baseAddress)

	header := DictionaryHeader{
		n:          numInputCodes,
		InputCodes: core.ReadSlice(baseAddress+1, baseAddress+uint32(numInputCodes)+1),
		length:     core.ReadByte(baseAddress + 1 + uint32(numInputCodes)),
		count:      int16(core.ReadHalfWord(baseAddress + 2 + uint32(numInputCodes))),
	}

	entryPtr := baseAddress + 4 + uint32(numInputCodes)

	// A negative count means the table is NOT sorted (12.4); that story is
	// rare enough in practice that falling back to a scan for it, rather
	// than carrying two lookup paths everywhere, is the pragmatic choice.
	unsorted := header.count < 0
	count := int(header.count)
	if unsorted {
		count = -count
	}
	entries := make([]DictionaryEntry, count)

	encodedWordLength := uint32(4)
	if version > 3 {
		encodedWordLength = 6
	}

	for ix := range count {
		encodedWord := core.ReadSlice(entryPtr, entryPtr+encodedWordLength)
		decodedWord, _ := zstring.Decode(entryPtr, core.MemoryLength(), core, alphabets, false)
		entries[ix] = DictionaryEntry{
			address:     uint16(entryPtr),
			encodedWord: encodedWord,
			decodedWord: decodedWord,
			data:        core.ReadSlice(entryPtr+encodedWordLength, entryPtr+uint32(header.length)),
		}

		entryPtr += uint32(header.length)
	}

	return &Dictionary{
		Header:  header,
		entries: entries,
	}
}

// Find looks up an encoded word by binary search over the sorted entry
// table, comparing encoded words as big-endian unsigned integers (the same
// ordering Inform's compiler and every real interpreter use to sort and
// search it). It falls back to a linear scan for the rare unsorted table.
func (d *Dictionary) Find(zstr []uint8) uint16 {
	if d.Header.count < 0 {
		for _, entry := range d.entries {
			if compareEncodedWords(entry.encodedWord, zstr) == 0 {
				return entry.address
			}
		}
		return 0
	}

	lo, hi := 0, len(d.entries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		cmp := compareEncodedWords(d.entries[mid].encodedWord, zstr)
		switch {
		case cmp == 0:
			return d.entries[mid].address
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}

	return 0
}

func compareEncodedWords(a, b []uint8) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	if len(b) > len(a) {
		return -1
	}
	return 0
}
