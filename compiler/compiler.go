// Package compiler ties every back-end component together: it runs the
// string encoder and object/dictionary generator ahead of lowering (so
// their spaces can be frozen before code generation begins, per §3.2),
// lowers every function, then hands the assembled spaces and reference
// table to the image assembler.
package compiler

import (
	"fmt"

	"github.com/gruetools/grue/emit"
	"github.com/gruetools/grue/image"
	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/lower"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/objgen"
	"github.com/gruetools/grue/resolve"
	"github.com/gruetools/grue/stringenc"
	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

// Options configures one compilation. Abbreviations and DictionaryExtras
// let a front end (or a test) supply the compression table and any
// dictionary entries - parser verbs, prepositions - beyond the noun words
// Compile collects automatically from each ir.Object's NounWords.
type Options struct {
	Version          uint8
	Abbreviations    []stringenc.Abbreviation
	DictionarySeps   []uint8
	DictionaryExtras []objgen.DictionaryWord
}

// globalsWordCount mirrors image.globalsWordCount (unexported there): the
// Z-machine's global variable table is always exactly 240 words, a fixed
// part of the format rather than a tunable constant, so duplicating it here
// to know where Globals' fixed region ends and scratch buffer bytes can
// start is safe.
const globalsWordCount = 240

// textBufferMaxChars and parseBufferMaxWords size the two dynamic-memory
// scratch buffers `sread` needs (§6.3) when a program has any verb grammar.
// Both are carved out of Globals, past its fixed 240-word table, since
// Dictionary/Code/Strings are static-or-higher (a runtime write there would
// panic) and Objects holds only the object table.
const (
	textBufferMaxChars  = 64
	parseBufferMaxWords = 16
)

// Compile runs the full back-end pipeline over prog and returns the
// assembled story file bytes.
func Compile(prog *ir.Program, opts Options) ([]byte, error) {
	if opts.Version < 3 || opts.Version > 5 {
		return nil, fmt.Errorf("compiler: unsupported version %d (only V3-V5 are implemented)", opts.Version)
	}
	if opts.DictionarySeps == nil {
		opts.DictionarySeps = []uint8{',', '.', '"'}
	}

	alphabets := defaultAlphabets(opts.Version)
	enc := stringenc.New(alphabets, opts.Abbreviations)

	refs := resolve.NewTable()
	book := resolve.NewAddressBook(opts.Version)

	objSpace := memspace.New(memspace.Objects)
	dictSpace := memspace.New(memspace.Dictionary)
	codeSpace := memspace.New(memspace.Code)
	stringsSpace := memspace.New(memspace.Strings)

	objgen.Generate(prog, opts.Version, enc, objSpace, refs, book)

	words := collectDictionaryWords(prog, opts.DictionaryExtras)
	objgen.GenerateDictionary(words, opts.DictionarySeps, opts.Version, enc, dictSpace, book)

	objSpace.Freeze()
	dictSpace.Freeze()

	emitter := emit.New(codeSpace, refs, opts.Version)
	lowerer := lower.New(emitter, book)
	for _, f := range prog.Functions {
		lowerer.LowerFunction(f)
	}

	entryFunc := prog.InitFunc
	hasEntry := prog.HasInit
	var globalsSpace *memspace.Space
	if len(prog.Grammars) > 0 {
		globalsSpace = memspace.NewSized(memspace.Globals, globalsWordCount*2)

		// Text buffer: a max-length byte, then that many character bytes plus
		// one for sread's terminating zero. The second appended byte becomes
		// the first character slot in V3 (where there's no length-prefix byte
		// ahead of the text) and the actual-length byte in V5+ - either way
		// sread (zmachine.go's read) only ever writes into it, never reads a
		// stale value out, so leaving it zero-initialized here is enough.
		textBufferOffset := globalsSpace.AppendByte(textBufferMaxChars)
		globalsSpace.AppendBytes(make([]uint8, 1+textBufferMaxChars))

		// Parse buffer: max-word-count byte, then a word-count byte sread
		// fills in, then one 4-byte entry (dictionary address, length,
		// text position) per word, per §6.3.
		parseBufferOffset := globalsSpace.AppendByte(parseBufferMaxWords)
		globalsSpace.AppendBytes(make([]uint8, 1+parseBufferMaxWords*4))

		entryFunc = lowerer.LowerGrammarDispatch(prog, textBufferOffset, parseBufferOffset)
		hasEntry = true
	}
	codeSpace.Freeze()

	pool := stringenc.NewPool(enc)
	for id, text := range prog.Strings {
		pool.Add(id, text)
	}
	stringOffsets := pool.Write(stringsSpace)
	for id, off := range stringOffsets {
		book.StringAddr[id] = off
	}
	stringsSpace.Freeze()

	img := image.Assemble(opts.Version, image.Spaces{
		Globals:    globalsSpace,
		Objects:    objSpace,
		Dictionary: dictSpace,
		Code:       codeSpace,
		Strings:    stringsSpace,
	}, refs, book, entryFunc, hasEntry)

	return img, nil
}

// collectDictionaryWords gathers every unique noun word referenced by an
// object's property-18 list, plus whatever extra entries (verbs,
// prepositions) the caller supplies - the grammar/parser side of dictionary
// population is a front-end concern this package only aggregates for.
func collectDictionaryWords(prog *ir.Program, extra []objgen.DictionaryWord) []objgen.DictionaryWord {
	seen := map[string]bool{}
	var words []objgen.DictionaryWord

	add := func(w objgen.DictionaryWord) {
		if seen[w.Text] {
			return
		}
		seen[w.Text] = true
		words = append(words, w)
	}

	for _, o := range prog.Objects {
		for _, n := range o.NounWords {
			add(objgen.DictionaryWord{Text: n})
		}
	}
	for _, r := range prog.Rooms {
		for _, n := range r.NounWords {
			add(objgen.DictionaryWord{Text: n})
		}
	}
	for _, w := range extra {
		add(w)
	}
	return words
}

func defaultAlphabets(version uint8) *zstring.Alphabets {
	core := zcore.Core{Version: version}
	return zstring.LoadAlphabets(&core)
}
