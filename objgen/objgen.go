// Package objgen implements the object/property/dictionary generator
// (component D): it lays out the object defaults table, the object entries
// themselves, their property tables, and the word dictionary, mirroring on
// the write side exactly what zobject.GetObject/GetProperty and
// dictionary.ParseDictionary read back on the other end of the pipeline.
package objgen

import (
	"fmt"
	"sort"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
	"github.com/gruetools/grue/stringenc"
)

const (
	v3Defaults  = 31
	v3EntrySize = 9
	v3MaxAttr   = 32

	v4Defaults  = 63
	v4EntrySize = 14
	v4MaxAttr   = 48
)

// Generate numbers every Room and Object (rooms first, then objects, in
// program order - an arbitrary but fixed tie-break so a rebuild of
// unchanged IR always assigns the same numbers, §5), writes the per-story
// property defaults table, one fixed-size entry per object, and each
// object's property table, into space. It registers the resulting numbers
// in book.ObjectNumber so later code generation (component F) can refer to
// an object before its table is built.
func Generate(prog *ir.Program, version uint8, enc *stringenc.Encoder, space *memspace.Space, refs *resolve.Table, book *resolve.AddressBook) {
	objects := collectObjects(prog)

	for i, o := range objects {
		book.ObjectNumber[o.Id] = uint16(i + 1)
	}
	applyExits(prog, book)

	numDefaults := v3Defaults
	entrySize := v3EntrySize
	if version >= 4 {
		numDefaults = v4Defaults
		entrySize = v4EntrySize
	}

	for i := 0; i < numDefaults; i++ {
		space.AppendWord(0)
	}

	entryOffsets := make([]uint32, len(objects))
	for _, o := range objects {
		entryOffsets[book.ObjectNumber[o.Id]-1] = writeEntry(o, version, entrySize, space, refs, book)
	}

	for i, o := range objects {
		propTableOffset := writePropertyTable(o, version, enc, space, refs, book)
		ptrFieldOffset := entryOffsets[i] + uint32(entrySize) - 2
		space.WriteWordAt(ptrFieldOffset, uint16(propTableOffset))
	}
}

// collectObjects returns every Room (as its embedded Object) followed by
// every plain Object, in program order.
func collectObjects(prog *ir.Program) []*ir.Object {
	out := make([]*ir.Object, 0, len(prog.Rooms)+len(prog.Objects))
	for _, r := range prog.Rooms {
		out = append(out, &r.Object)
	}
	out = append(out, prog.Objects...)
	return out
}

// exitMessageIDBase keeps the string ids synthesized for blocked-exit
// messages (below) well clear of anything a front end's builder would ever
// assign, since ExitTarget carries the message as raw text rather than an
// already-interned id.
const exitMessageIDBase ir.Id = 0x7fff0000

func exitMessageID(room ir.Id, propNum uint8) ir.Id {
	return exitMessageIDBase + ir.Id(room)*32 + ir.Id(propNum)
}

// applyExits folds each room's Exits (§6.5) into its property table as one
// of the twelve fixed direction properties: a room's object number for a
// normal exit, or a packed string address for a blocked exit's message. It
// runs after object numbering so exit.Room's number is already known,
// whichever order the rooms were declared in, and before any property
// table is written so the new entries sort into place alongside the rest.
func applyExits(prog *ir.Program, book *resolve.AddressBook) {
	for _, r := range prog.Rooms {
		for propNum, exit := range r.Exits {
			switch exit.Kind {
			case ir.ExitRoom:
				num, ok := book.ObjectNumber[exit.Room]
				if !ok {
					panic(fmt.Sprintf("objgen: exit property %d on %q targets an object with no assigned number", propNum, r.Identifier))
				}
				r.SetProperty(propNum, ir.PropertyValue{Kind: ir.PropWord, Word: num})
			case ir.ExitBlocked:
				id := exitMessageID(r.Id, propNum)
				prog.Strings[id] = exit.Message
				r.SetProperty(propNum, ir.PropertyValue{Kind: ir.PropString, StringId: id})
			default:
				panic(fmt.Sprintf("objgen: exit property %d on %q has unsupported kind %v", propNum, r.Identifier, exit.Kind))
			}
		}
	}
}

// writeEntry appends one fixed-size object record: attribute flags, then
// parent/sibling/child (byte-sized in V3, word-sized in V4+), then a
// two-byte property-table pointer left as a placeholder and patched once
// the property table's address is known.
func writeEntry(o *ir.Object, version uint8, entrySize int, space *memspace.Space, refs *resolve.Table, book *resolve.AddressBook) uint32 {
	maxAttr := v3MaxAttr
	attrBytes := 4
	if version >= 4 {
		maxAttr = v4MaxAttr
		attrBytes = 6
	}

	start := space.CurrentOffset()

	var flags uint64
	for attr, set := range o.Attributes {
		if !set {
			continue
		}
		if int(attr) >= maxAttr {
			panic(fmt.Sprintf("objgen: attribute %d exceeds the version's maximum of %d", attr, maxAttr))
		}
		flags |= uint64(1) << (63 - attr)
	}
	switch attrBytes {
	case 4:
		space.AppendWord(uint16(flags >> 48))
		space.AppendWord(uint16(flags >> 32))
	case 6:
		space.AppendWord(uint16(flags >> 48))
		space.AppendWord(uint16(flags >> 32))
		space.AppendWord(uint16(flags >> 16))
	}

	writeTreeField := func(id ir.Id, has bool) {
		var num uint16
		if has {
			var ok bool
			num, ok = book.ObjectNumber[id]
			if !ok {
				panic("objgen: object tree field refers to an object with no assigned number")
			}
		}
		if version >= 4 {
			space.AppendWord(num)
		} else {
			space.AppendByte(uint8(num))
		}
	}
	writeTreeField(o.Parent, o.HasParent)
	writeTreeField(o.Sibling, o.HasSibling)
	writeTreeField(o.Child, o.HasChild)

	space.AppendWord(0) // property-table pointer placeholder, patched by Generate
	return start
}

// writePropertyTable appends the object's short-name string and its
// property list (descending property number, per zobject.Object's read
// path), returning the table's offset within space.
func writePropertyTable(o *ir.Object, version uint8, enc *stringenc.Encoder, space *memspace.Space, refs *resolve.Table, book *resolve.AddressBook) uint32 {
	start := space.CurrentOffset()

	nameBytes := enc.Encode(o.ShortName)
	space.AppendByte(uint8(len(nameBytes) / 2))
	space.AppendBytes(nameBytes)

	writeNames := func() {
		writePropertyHeader(version, ir.PropNameDictAddrs, uint8(len(o.NounWords)*2), space)
		for _, word := range o.NounWords {
			writeDictWordPlaceholder(word, space, refs)
		}
	}

	entries := o.Properties()
	_, explicit18 := findExplicit(entries, ir.PropNameDictAddrs)
	pendingNames := !explicit18 && len(o.NounWords) > 0

	for _, e := range entries {
		if pendingNames && e.Num < ir.PropNameDictAddrs {
			writeNames()
			pendingNames = false
		}
		length := propertyLength(e.Value)
		writePropertyHeader(version, e.Num, length, space)
		writePropertyValue(e.Value, length, space, refs, book)
	}
	if pendingNames {
		writeNames()
	}

	space.AppendByte(0) // terminator
	return start
}

func findExplicit(entries []struct {
	Num   uint8
	Value ir.PropertyValue
}, num uint8) (ir.PropertyValue, bool) {
	for _, e := range entries {
		if e.Num == num {
			return e.Value, true
		}
	}
	return ir.PropertyValue{}, false
}

func propertyLength(v ir.PropertyValue) uint8 {
	switch v.Kind {
	case ir.PropByte:
		return 1
	case ir.PropWord, ir.PropString, ir.PropDictRef, ir.PropFunctionRef:
		return 2
	case ir.PropBytes:
		return uint8(len(v.Bytes))
	default:
		panic("objgen: unknown property value kind")
	}
}

// writePropertyHeader emits the size/number byte(s) preceding a property's
// data, per zobject.GetPropertyByAddress's decoding (inverted for
// generation): V3 packs both into one byte; V4+ uses a one-byte form for
// length 1-2 and a two-byte form otherwise.
func writePropertyHeader(version uint8, num uint8, length uint8, space *memspace.Space) {
	if version <= 3 {
		if length < 1 || length > 8 {
			panic(fmt.Sprintf("objgen: property %d has length %d, outside V3's 1-8 range", num, length))
		}
		space.AppendByte(((length - 1) << 5) | (num & 0b1_1111))
		return
	}

	if length <= 2 {
		space.AppendByte((num & 0b11_1111) | ((length - 1) << 6))
		return
	}
	if length > 64 {
		panic(fmt.Sprintf("objgen: property %d has length %d, exceeding the 64-byte maximum", num, length))
	}
	space.AppendByte(0x80 | (num & 0b11_1111))
	sizeField := length
	if sizeField == 64 {
		sizeField = 0
	}
	space.AppendByte(sizeField)
}

func writePropertyValue(v ir.PropertyValue, length uint8, space *memspace.Space, refs *resolve.Table, book *resolve.AddressBook) {
	switch v.Kind {
	case ir.PropByte:
		space.AppendByte(v.Byte)
	case ir.PropWord:
		space.AppendWord(v.Word)
	case ir.PropBytes:
		space.AppendBytes(v.Bytes)
	case ir.PropString:
		writeForwardRef(resolve.StringRef, v.StringId, true, space, refs)
	case ir.PropFunctionRef:
		writeForwardRef(resolve.FunctionCall, v.FuncId, true, space, refs)
	case ir.PropDictRef:
		writeDictWordPlaceholder(v.DictWord, space, refs)
	default:
		panic("objgen: unknown property value kind")
	}
}

func writeForwardRef(kind resolve.Kind, target ir.Id, packed bool, space *memspace.Space, refs *resolve.Table) {
	offset := space.CurrentOffset()
	refs.Add(resolve.Reference{
		Type:            kind,
		Location:        offset,
		LocationSpace:   space.Kind,
		Target:          target,
		IsPackedAddress: packed,
		OffsetSize:      2,
	})
	space.AppendWord(uint16(resolve.PlaceholderHi)<<8 | uint16(resolve.PlaceholderLo))
}

func writeDictWordPlaceholder(word string, space *memspace.Space, refs *resolve.Table) {
	offset := space.CurrentOffset()
	refs.Add(resolve.Reference{
		Type:          resolve.DictionaryWord,
		Location:      offset,
		LocationSpace: space.Kind,
		Word:          word,
		OffsetSize:    2,
	})
	space.AppendWord(uint16(resolve.PlaceholderHi)<<8 | uint16(resolve.PlaceholderLo))
}

// DictionaryWord is one word entry a caller (typically the object/grammar
// front end) wants included in the generated dictionary, along with
// whatever fixed data bytes follow its encoded text (parser flags, the
// grammar-verb table index, and so on - all opaque to the generator).
type DictionaryWord struct {
	Text string
	Data []uint8
}

// GenerateDictionary writes a dictionary table (separators, entry length,
// entry count, then each encoded word sorted by its encoded bytes so the
// runtime's binary search in dictionary.Dictionary.Find works unmodified)
// and registers every word's final offset in book.DictWordAddr.
func GenerateDictionary(words []DictionaryWord, separators []uint8, version uint8, enc *stringenc.Encoder, space *memspace.Space, book *resolve.AddressBook) {
	space.AppendByte(uint8(len(separators)))
	space.AppendBytes(separators)

	encodedWordLength := 4
	if version > 3 {
		encodedWordLength = 6
	}

	type built struct {
		text    string
		encoded []uint8
		data    []uint8
	}
	entries := make([]built, len(words))
	for i, w := range words {
		encodedText := enc.EncodeLiteral(w.Text)
		if len(encodedText) > encodedWordLength {
			encodedText = encodedText[:encodedWordLength]
		}
		for len(encodedText) < encodedWordLength {
			encodedText = append(encodedText, 0)
		}
		entries[i] = built{text: w.Text, encoded: encodedText, data: w.Data}
	}
	sort.Slice(entries, func(i, j int) bool {
		return compareEncoded(entries[i].encoded, entries[j].encoded) < 0
	})

	maxDataLen := 0
	for _, w := range words {
		if len(w.Data) > maxDataLen {
			maxDataLen = len(w.Data)
		}
	}
	entryLength := encodedWordLength + maxDataLen

	space.AppendByte(uint8(entryLength))
	space.AppendWord(uint16(len(entries)))

	for _, e := range entries {
		offset := space.AppendBytes(e.encoded)
		book.DictWordAddr[e.text] = offset
		data := make([]uint8, maxDataLen)
		copy(data, e.data)
		space.AppendBytes(data)
	}
}

func compareEncoded(a, b []uint8) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
