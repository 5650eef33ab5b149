// Package lower implements IR lowering (component F): translating each
// ir.Function's instruction list into Z-machine instructions via the emit
// package, deciding where every IR value lives (a named local, a spilled
// global, or - for instructions the Z-machine itself fuses compare-and-
// branch - no storage at all) and synthesizing the label/jump structure
// object-tree walks and boolean materialization need.
package lower

import (
	"fmt"

	"github.com/gruetools/grue/emit"
	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/resolve"
)

// Reserved global variable indices (added to 16 to get the operand byte):
// 0 is the player's score, 1 the turn counter, 2 the current player object,
// 16 the current room. 100-119 is scratch space the runtime's own parser
// support routines may use. Nothing generated here ever allocates a spill
// slot in those ranges - spilling starts at 120 and runs up to 239.
const (
	globalScore      = 0
	globalTurns      = 1
	globalPlayerObj  = 2
	globalRoom       = 16
	spillGlobalStart = 120
	spillGlobalEnd   = 239
)

func globalOperandByte(index int) uint8 { return uint8(16 + index) }

// slot names where one IR value lives: a Z-machine local (1-15) or a
// spilled global (translated to its operand byte via globalOperandByte).
type slot struct {
	isGlobal bool
	number   uint8 // local number (1-15) or global operand byte (16-255)
}

func (s slot) operand() emit.Operand { return emit.Var(s.number) }

// Lowerer lowers one Function at a time, reusing the same Emitter (and
// therefore the same Code space and reference table) across all of them so
// addresses accumulate correctly.
type Lowerer struct {
	emitter *emit.Emitter
	book    *resolve.AddressBook
	synth   ir.Id
}

func New(e *emit.Emitter, book *resolve.AddressBook) *Lowerer {
	return &Lowerer{emitter: e, book: book, synth: 0xFFFF0000}
}

// newSynthetic mints an Id for a compiler-internal label (the two-way
// branches every comparison and InstrBranch lowers into need one), from a
// range reserved far above any Id a front end or ir.Builder would assign.
func (l *Lowerer) newSynthetic() ir.Id {
	l.synth++
	return l.synth
}

// funcCtx tracks per-function variable assignment: params and declared
// locals get Z-machine locals 1-15 in order; any other Id lowering
// encounters (an instruction's Target) is assigned lazily, spilling to a
// global once 15 locals are in use.
type funcCtx struct {
	slots      map[ir.Id]slot
	nextLocal  uint8
	nextSpill  int
	localCount uint8 // final local_count for the routine header
}

func newFuncCtx() *funcCtx {
	return &funcCtx{slots: map[ir.Id]slot{}, nextLocal: 1, nextSpill: spillGlobalStart}
}

func (c *funcCtx) declare(id ir.Id) slot {
	if s, ok := c.slots[id]; ok {
		return s
	}
	var s slot
	if c.nextLocal <= 15 {
		s = slot{number: c.nextLocal}
		c.nextLocal++
		if c.nextLocal-1 > c.localCount {
			c.localCount = c.nextLocal - 1
		}
	} else {
		if c.nextSpill > spillGlobalEnd {
			panic("lower: spill global pool exhausted")
		}
		s = slot{isGlobal: true, number: globalOperandByte(c.nextSpill)}
		c.nextSpill++
	}
	c.slots[id] = s
	return s
}

// LowerFunction emits one routine: the local-count header byte, each
// declared local's initial value (always 0 - Grue has no local
// initializers in this IR), then the lowered body. It records the
// function's entry offset in book.FunctionAddr.
func (l *Lowerer) LowerFunction(f *ir.Function) {
	ctx := newFuncCtx()
	for _, p := range f.Params {
		ctx.declare(p)
	}
	for _, lo := range f.Locals {
		ctx.declare(lo)
	}

	entry := l.emitter.Code.CurrentOffset()
	l.book.FunctionAddr[f.Id] = entry

	localCountOffset := l.emitter.Code.AppendByte(0)
	for range f.Params {
		l.emitter.Code.AppendWord(0)
	}
	for range f.Locals {
		l.emitter.Code.AppendWord(0)
	}

	for _, instr := range f.Body {
		l.lowerInstruction(ctx, instr)
	}

	l.emitter.Code.WriteByteAt(localCountOffset, ctx.localCount)
}

func (l *Lowerer) operand(ctx *funcCtx, id ir.Id) emit.Operand {
	return ctx.declare(id).operand()
}

func (l *Lowerer) lowerInstruction(ctx *funcCtx, instr ir.Instruction) {
	switch instr.Kind {
	case ir.InstrLoadImmediate:
		l.lowerLoadImmediate(ctx, instr)

	case ir.InstrBinaryOp:
		l.lowerBinaryOp(ctx, instr)

	case ir.InstrUnaryOp:
		l.lowerUnaryOp(ctx, instr)

	case ir.InstrCall:
		l.lowerCall(ctx, instr.Function, instr.Args, instr.Target, instr.HasTarget, false)

	case ir.InstrCallIndirect:
		l.lowerCallIndirect(ctx, instr)

	case ir.InstrReturn:
		l.lowerReturn(ctx, instr)

	case ir.InstrBranch:
		l.lowerBranch(ctx, instr)

	case ir.InstrJump:
		l.emitter.EmitJump(instr.JumpLabel)

	case ir.InstrLabel:
		l.book.LabelAddr[instr.LabelId] = l.emitter.Code.CurrentOffset()

	case ir.InstrLoadVar:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, instr.Target), l.operand(ctx, instr.Var)}, 0, false, 0, true, false)

	case ir.InstrStoreVar:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, instr.Var), l.operand(ctx, instr.StoreValue)}, 0, false, 0, true, false)

	case ir.InstrGetProperty, ir.InstrGetPropertyByNumber:
		l.lowerGetProperty(ctx, instr)

	case ir.InstrSetProperty, ir.InstrSetPropertyByNumber:
		l.lowerSetProperty(ctx, instr)

	case ir.InstrGetPropertyAddr:
		l.emit2Store(emit.GetPropAddr, ctx, instr.Target, instr.Object, emit.Small(instr.PropertyNum))

	case ir.InstrGetNextProperty:
		l.emit2Store(emit.GetNextProp, ctx, instr.Target, instr.Object, emit.Small(instr.PropertyNum))

	case ir.InstrTestAttribute:
		l.lowerTestAttribute(ctx, instr)

	case ir.InstrSetAttribute:
		l.emitter.Emit(emit.SetAttr, []emit.Operand{l.operand(ctx, instr.Object), emit.Small(instr.PropertyNum)}, 0, false, 0, true, false)

	case ir.InstrClearAttribute:
		l.emitter.Emit(emit.ClearAttr, []emit.Operand{l.operand(ctx, instr.Object), emit.Small(instr.PropertyNum)}, 0, false, 0, true, false)

	case ir.InstrGetObjectChild:
		l.lowerGetTreeField(ctx, emit.GetChild, instr)

	case ir.InstrGetObjectSibling:
		l.lowerGetTreeField(ctx, emit.GetSibling, instr)

	case ir.InstrGetObjectParent:
		l.emit1Store(emit.GetParent, ctx, instr.Target, instr.Object)

	case ir.InstrInsertObject:
		l.emitter.Emit(emit.InsertObj, []emit.Operand{l.operand(ctx, instr.Object), l.operand(ctx, instr.StoreVal)}, 0, false, 0, true, false)

	case ir.InstrRemoveObject:
		l.emitter.Emit(emit.RemoveObj, []emit.Operand{l.operand(ctx, instr.Object)}, 0, false, 0, true, false)

	case ir.InstrPrint:
		l.emitter.Emit(emit.PrintPaddr, []emit.Operand{emit.LargeRef(resolve.StringRef, instr.StringId, true)}, 0, false, 0, true, false)

	case ir.InstrPrintNum:
		l.emitter.Emit(emit.PrintNum, []emit.Operand{l.operand(ctx, instr.Src)}, 0, false, 0, true, false)

	case ir.InstrPrintChar:
		l.emitter.Emit(emit.PrintChar, []emit.Operand{l.operand(ctx, instr.Src)}, 0, false, 0, true, false)

	case ir.InstrNewLine:
		l.emitter.Emit(emit.NewLine, nil, 0, false, 0, true, false)

	case ir.InstrRead:
		l.emitter.Emit(emit.Sread, []emit.Operand{l.operand(ctx, instr.Lhs), l.operand(ctx, instr.Rhs)}, 0, false, 0, true, false)

	case ir.InstrArrayNew, ir.InstrArrayAdd, ir.InstrGetArrayElement, ir.InstrArrayLength:
		l.lowerArrayOp(ctx, instr)

	default:
		panic(fmt.Sprintf("lower: unhandled instruction kind %v", instr.Kind))
	}
}

func (l *Lowerer) lowerLoadImmediate(ctx *funcCtx, instr ir.Instruction) {
	dst := l.operand(ctx, instr.Target)
	switch instr.Value.Kind {
	case ir.ValueInteger:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(uint16(instr.Value.Integer))}, 0, false, 0, true, false)
	case ir.ValueBoolean:
		v := uint16(0)
		if instr.Value.Boolean {
			v = 1
		}
		l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(v)}, 0, false, 0, true, false)
	case ir.ValueStringRef:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.LargeRef(resolve.StringRef, instr.Value.StringRef, true)}, 0, false, 0, true, false)
	case ir.ValueObjectRef:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.LargeRef(resolve.ObjectNumber, instr.Value.ObjectRef, false)}, 0, false, 0, true, false)
	case ir.ValueNil:
		l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(0)}, 0, false, 0, true, false)
	default:
		panic("lower: unhandled Value kind in LoadImmediate")
	}
}

var arithMnemonic = map[ir.BinOp]emit.Mnemonic{
	ir.Add: emit.Add,
	ir.Sub: emit.Sub,
	ir.Mul: emit.Mul,
	ir.Div: emit.Div,
	ir.Mod: emit.Mod,
	ir.And: emit.And,
	ir.Or:  emit.Or,
}

var compareMnemonic = map[ir.BinOp]emit.Mnemonic{
	ir.Eq: emit.JE,
	ir.Ne: emit.JE, // sense inverted below
	ir.Lt: emit.JL,
	ir.Ge: emit.JL, // sense inverted below
	ir.Gt: emit.JG,
	ir.Le: emit.JG, // sense inverted below
}

// lowerBinaryOp emits a direct storing instruction for arithmetic/bitwise
// ops (the Z-machine opcode stores its result natively), and for a
// comparison materializes a 0/1 boolean by branching around a pair of
// `store` instructions - the Z-machine's compare opcodes only branch, they
// never produce a stored truth value on their own.
func (l *Lowerer) lowerBinaryOp(ctx *funcCtx, instr ir.Instruction) {
	if m, ok := arithMnemonic[instr.Op]; ok {
		l.emit2Store(m, ctx, instr.Target, instr.Lhs, l.operand(ctx, instr.Rhs))
		return
	}

	m, ok := compareMnemonic[instr.Op]
	if !ok {
		panic(fmt.Sprintf("lower: unhandled BinOp %v", instr.Op))
	}
	inverted := instr.Op == ir.Ne || instr.Op == ir.Ge || instr.Op == ir.Le

	trueLabel := l.newSynthetic()
	doneLabel := l.newSynthetic()

	l.emitter.Emit(m, []emit.Operand{l.operand(ctx, instr.Lhs), l.operand(ctx, instr.Rhs)}, 0, false, trueLabel, false, true)
	// branch placeholder above targets trueLabel when the comparison holds;
	// its recorded sense is "true", so falling through means the comparison
	// failed. Flip below if this BinOp is the negated form of its opcode.
	dst := l.operand(ctx, instr.Target)
	falseVal, trueVal := uint16(0), uint16(1)
	if inverted {
		falseVal, trueVal = 1, 0
	}
	l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(falseVal)}, 0, false, 0, true, false)
	l.emitter.EmitJump(doneLabel)
	l.book.LabelAddr[trueLabel] = l.emitter.Code.CurrentOffset()
	l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(trueVal)}, 0, false, 0, true, false)
	l.book.LabelAddr[doneLabel] = l.emitter.Code.CurrentOffset()
}

func (l *Lowerer) lowerUnaryOp(ctx *funcCtx, instr ir.Instruction) {
	switch instr.UOp {
	case ir.Neg:
		l.emit2Store(emit.Sub, ctx, instr.Target, 0, l.operand(ctx, instr.Src))
	case ir.Not:
		l.emit1Store(emit.Not, ctx, instr.Target, instr.Src)
	default:
		panic(fmt.Sprintf("lower: unhandled UnOp %v", instr.UOp))
	}
}

// emit2Store emits a 2OP arithmetic instruction storing into target. When
// lhs is the zero Id (unary negation's "0 - x" idiom) it's encoded as the
// literal constant 0 rather than a variable read.
func (l *Lowerer) emit2Store(m emit.Mnemonic, ctx *funcCtx, target ir.Id, lhs ir.Id, rhsOperand emit.Operand) {
	var lhsOperand emit.Operand
	if lhs == 0 {
		lhsOperand = emit.Small(0)
	} else {
		lhsOperand = l.operand(ctx, lhs)
	}
	l.emitter.Emit(m, []emit.Operand{lhsOperand, rhsOperand}, ctx.declare(target).number, true, 0, true, false)
}

func (l *Lowerer) emit1Store(m emit.Mnemonic, ctx *funcCtx, target ir.Id, src ir.Id) {
	l.emitter.Emit(m, []emit.Operand{l.operand(ctx, src)}, ctx.declare(target).number, true, 0, true, false)
}

func (l *Lowerer) lowerCall(ctx *funcCtx, function ir.Id, args []ir.Id, target ir.Id, hasTarget bool, indirect bool) {
	operands := make([]emit.Operand, 0, len(args)+1)
	operands = append(operands, emit.LargeRef(resolve.FunctionCall, function, true))
	for _, a := range args {
		operands = append(operands, l.operand(ctx, a))
	}
	if len(operands) > 8 {
		panic("lower: call has more than 8 arguments, exceeding call_vs2/call_vn2's limit")
	}

	m := emit.CallVN
	var storeVar uint8
	if hasTarget {
		m = emit.CallVS
		storeVar = ctx.declare(target).number
	}
	if len(operands) > 4 {
		if hasTarget {
			m = emit.CallVS2
		} else {
			m = emit.CallVN2
		}
	}
	l.emitter.Emit(m, operands, storeVar, hasTarget, 0, true, false)
}

func (l *Lowerer) lowerCallIndirect(ctx *funcCtx, instr ir.Instruction) {
	operands := make([]emit.Operand, 0, len(instr.Args)+1)
	operands = append(operands, l.operand(ctx, instr.FuncAddr))
	for _, a := range instr.Args {
		operands = append(operands, l.operand(ctx, a))
	}
	m := emit.CallVN
	var storeVar uint8
	if instr.HasTarget {
		m = emit.CallVS
		storeVar = ctx.declare(instr.Target).number
	}
	l.emitter.Emit(m, operands, storeVar, instr.HasTarget, 0, true, false)
}

func (l *Lowerer) lowerReturn(ctx *funcCtx, instr ir.Instruction) {
	if !instr.HasReturnValue {
		l.emitter.Emit(emit.RTrue, nil, 0, false, 0, true, false)
		return
	}
	l.emitter.Emit(emit.Ret, []emit.Operand{l.operand(ctx, instr.ReturnValue)}, 0, false, 0, true, false)
}

// lowerBranch implements the generic two-way branch every IR conditional
// compiles to: jz branches to falseLabel when condition is zero; otherwise
// falls through to an unconditional jump to trueLabel. Always emitting
// both keeps the pattern uniform regardless of which arm the surrounding
// control structure happens to fall through to in source order.
func (l *Lowerer) lowerBranch(ctx *funcCtx, instr ir.Instruction) {
	l.emitter.Emit(emit.JZ, []emit.Operand{l.operand(ctx, instr.Condition)}, 0, false, instr.FalseLabel, false, true)
	l.emitter.EmitJump(instr.TrueLabel)
}

func (l *Lowerer) lowerGetProperty(ctx *funcCtx, instr ir.Instruction) {
	if instr.Kind == ir.InstrGetPropertyByNumber {
		l.emit2Store(emit.GetProp, ctx, instr.Target, instr.Object, emit.Small(instr.PropertyNum))
		return
	}
	// Dynamic property number (instr.Property is an Id, not a compile-time
	// constant): read it into the rhs operand as a variable instead of a
	// SmallConstant.
	l.emit2Store(emit.GetProp, ctx, instr.Target, instr.Object, l.operand(ctx, instr.Property))
}

func (l *Lowerer) lowerSetProperty(ctx *funcCtx, instr ir.Instruction) {
	if instr.Kind == ir.InstrSetPropertyByNumber {
		l.emitter.Emit(emit.PutProp, []emit.Operand{l.operand(ctx, instr.Object), emit.Small(instr.PropertyNum), l.operand(ctx, instr.StoreVal)}, 0, false, 0, true, false)
		return
	}
	l.emitter.Emit(emit.PutProp, []emit.Operand{l.operand(ctx, instr.Object), l.operand(ctx, instr.Property), l.operand(ctx, instr.StoreVal)}, 0, false, 0, true, false)
}

// lowerTestAttribute materializes test_attr's branch into a stored 0/1,
// the same pattern lowerBinaryOp uses for comparisons.
func (l *Lowerer) lowerTestAttribute(ctx *funcCtx, instr ir.Instruction) {
	trueLabel := l.newSynthetic()
	doneLabel := l.newSynthetic()
	dst := l.operand(ctx, instr.Target)

	l.emitter.Emit(emit.TestAttr, []emit.Operand{l.operand(ctx, instr.Object), emit.Small(instr.PropertyNum)}, 0, false, trueLabel, false, true)
	l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(0)}, 0, false, 0, true, false)
	l.emitter.EmitJump(doneLabel)
	l.book.LabelAddr[trueLabel] = l.emitter.Code.CurrentOffset()
	l.emitter.Emit(emit.StoreVar, []emit.Operand{dst, emit.Large(1)}, 0, false, 0, true, false)
	l.book.LabelAddr[doneLabel] = l.emitter.Code.CurrentOffset()
}

// lowerGetTreeField implements object-tree iteration the Z-machine's own
// way (§4.5's "not array-based" requirement): get_child/get_sibling branch
// on whether the result is object 0, which this lowering exposes to the
// caller as a plain stored value by unconditionally falling through - the
// branch target is a synthetic label immediately following the
// instruction, used only to satisfy get_child/get_sibling's mandatory
// branch operand; the caller decides what "no more children" means via a
// subsequent jz on the stored result.
func (l *Lowerer) lowerGetTreeField(ctx *funcCtx, m emit.Mnemonic, instr ir.Instruction) {
	after := l.newSynthetic()
	l.emitter.Emit(m, []emit.Operand{l.operand(ctx, instr.Object)}, ctx.declare(instr.Target).number, true, after, true, true)
	l.book.LabelAddr[after] = l.emitter.Code.CurrentOffset()
}

// jumpIf emits a branch that jumps to label when the condition holds and
// falls through to the next instruction otherwise.
func (l *Lowerer) jumpIf(m emit.Mnemonic, operands []emit.Operand, label ir.Id) {
	l.emitter.Emit(m, operands, 0, false, label, false, true)
}

// jumpUnless emits a branch that jumps to label when the condition is false
// and falls through (continuing a match in progress) when it holds - the
// mismatch-jumps-away shape every step of grammar dispatch needs.
func (l *Lowerer) jumpUnless(m emit.Mnemonic, operands []emit.Operand, label ir.Id) {
	l.emitter.Emit(m, operands, 0, false, label, true, true)
}

// LowerGrammarDispatch emits the program's turn loop: read one command with
// sread, try each verb pattern's word sequence against the parsed tokens in
// turn (§4.5), and call whichever pattern's handler fully matches, resolving
// each noun token against the object table on the way (§4.3/§6.3 - scanning
// property 18, the dictionary-address list, starting at object 1). Falls
// back to printing "I don't understand that." when nothing matches. It runs
// prog.InitFunc once before entering the loop, and returns the new routine's
// Id to use as the story's entry point in place of InitFunc directly.
//
// textBufferOffset and parseBufferOffset are byte offsets into the Globals
// space where the caller has already carved out and initialized a text and
// a parse buffer (§6.3) - dynamic memory, since sread must write into them
// at runtime.
func (l *Lowerer) LowerGrammarDispatch(prog *ir.Program, textBufferOffset, parseBufferOffset uint32) ir.Id {
	dispatchID := l.newSynthetic()
	ctx := newFuncCtx()

	entry := l.emitter.Code.CurrentOffset()
	l.book.FunctionAddr[dispatchID] = entry
	localCountOffset := l.emitter.Code.AppendByte(0)

	if prog.HasInit {
		l.lowerCall(ctx, prog.InitFunc, nil, 0, false, false)
	}

	textBuffer := l.newSynthetic()
	parseBuffer := l.newSynthetic()
	l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, textBuffer), emit.GlobalsOffsetRef(textBufferOffset)}, 0, false, 0, true, false)
	l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, parseBuffer), emit.GlobalsOffsetRef(parseBufferOffset)}, 0, false, 0, true, false)

	noUnderstandID := l.newSynthetic()
	prog.Strings[noUnderstandID] = "I don't understand that."

	maxNouns := 0
	for _, g := range prog.Grammars {
		for _, pat := range g.Patterns {
			n := 0
			for _, tok := range pat.Pattern {
				if tok.Kind == ir.TokenNoun {
					n++
				}
			}
			if n > maxNouns {
				maxNouns = n
			}
		}
	}
	nounSlots := make([]ir.Id, maxNouns)
	for i := range nounSlots {
		nounSlots[i] = l.newSynthetic()
	}

	totalObjects := len(prog.Rooms) + len(prog.Objects)

	mainLoop := l.newSynthetic()
	l.book.LabelAddr[mainLoop] = l.emitter.Code.CurrentOffset()

	l.emitter.Emit(emit.Sread, []emit.Operand{l.operand(ctx, textBuffer), l.operand(ctx, parseBuffer)}, 0, false, 0, true, false)

	wordCount := l.newSynthetic()
	l.emit2Store(emit.Loadb, ctx, wordCount, parseBuffer, emit.Small(1))

	for _, g := range prog.Grammars {
		for _, pat := range g.Patterns {
			l.lowerGrammarPattern(ctx, g, pat, parseBuffer, wordCount, totalObjects, nounSlots, mainLoop)
		}
	}

	l.emitter.Emit(emit.PrintPaddr, []emit.Operand{emit.LargeRef(resolve.StringRef, noUnderstandID, true)}, 0, false, 0, true, false)
	l.emitter.Emit(emit.NewLine, nil, 0, false, 0, true, false)
	l.emitter.EmitJump(mainLoop)

	l.emitter.Code.WriteByteAt(localCountOffset, ctx.localCount)
	return dispatchID
}

// lowerGrammarPattern matches one verb pattern's fixed word sequence: an
// arity check, then one dictionary-address comparison per token (nouns
// resolved via resolveNoun instead of a literal comparison), falling through
// to calling pat.Handler and returning to mainLoop on a full match, or
// jumping to nextPattern - the next candidate this turn - on any mismatch.
func (l *Lowerer) lowerGrammarPattern(ctx *funcCtx, g *ir.Grammar, pat ir.GrammarPattern, parseBuffer, wordCount ir.Id, totalObjects int, nounSlots []ir.Id, mainLoop ir.Id) {
	nextPattern := l.newSynthetic()

	l.jumpUnless(emit.JE, []emit.Operand{l.operand(ctx, wordCount), emit.Large(uint16(len(pat.Pattern)))}, nextPattern)

	nounIdx := 0
	for i, tok := range pat.Pattern {
		wordVal := l.newSynthetic()
		l.emit2Store(emit.Loadw, ctx, wordVal, parseBuffer, emit.Large(uint16(1+2*i)))

		switch tok.Kind {
		case ir.TokenVerb:
			l.jumpUnless(emit.JE, []emit.Operand{l.operand(ctx, wordVal), emit.DictWordRef(g.Verb)}, nextPattern)
		case ir.TokenLiteral, ir.TokenPreposition:
			l.jumpUnless(emit.JE, []emit.Operand{l.operand(ctx, wordVal), emit.DictWordRef(tok.Literal)}, nextPattern)
		case ir.TokenNoun:
			if nounIdx >= len(nounSlots) {
				panic("lower: more noun tokens than slots allocated")
			}
			l.resolveNoun(ctx, totalObjects, wordVal, nounSlots[nounIdx], nextPattern)
			nounIdx++
		default:
			panic(fmt.Sprintf("lower: unhandled grammar token kind %v", tok.Kind))
		}
	}

	l.lowerCall(ctx, pat.Handler, nounSlots[:nounIdx], 0, false, false)
	l.emitter.EmitJump(mainLoop)

	l.book.LabelAddr[nextPattern] = l.emitter.Code.CurrentOffset()
}

// resolveNoun implements the noun resolver (§4.3/§6.3): walk every object
// number from 1 to totalObjects, and for each one whose property 18 is
// present, scan its packed list of dictionary addresses (get_prop_len/2
// words, read via loadw) for targetWord. Stores the first match's object
// number into destSlot and falls through; jumps to notFound, owned by the
// caller, if no object matches.
func (l *Lowerer) resolveNoun(ctx *funcCtx, totalObjects int, targetWord ir.Id, destSlot ir.Id, notFound ir.Id) {
	objId := l.newSynthetic()
	addrId := l.newSynthetic()
	lenId := l.newSynthetic()
	countId := l.newSynthetic()
	kId := l.newSynthetic()
	candidateId := l.newSynthetic()

	loopTop := l.newSynthetic()
	nextObj := l.newSynthetic()
	innerTop := l.newSynthetic()
	found := l.newSynthetic()
	done := l.newSynthetic()

	l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, objId), emit.Small(1)}, 0, false, 0, true, false)

	l.book.LabelAddr[loopTop] = l.emitter.Code.CurrentOffset()
	l.jumpIf(emit.JG, []emit.Operand{l.operand(ctx, objId), emit.Large(uint16(totalObjects))}, notFound)

	l.emit2Store(emit.GetPropAddr, ctx, addrId, objId, emit.Small(ir.PropNameDictAddrs))
	l.jumpIf(emit.JZ, []emit.Operand{l.operand(ctx, addrId)}, nextObj)

	l.emit1Store(emit.GetPropLen, ctx, lenId, addrId)
	l.emit2Store(emit.Div, ctx, countId, lenId, emit.Small(2))

	l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, kId), emit.Small(0)}, 0, false, 0, true, false)

	l.book.LabelAddr[innerTop] = l.emitter.Code.CurrentOffset()
	l.jumpUnless(emit.JL, []emit.Operand{l.operand(ctx, kId), l.operand(ctx, countId)}, nextObj)

	l.emit2Store(emit.Loadw, ctx, candidateId, addrId, l.operand(ctx, kId))
	l.jumpIf(emit.JE, []emit.Operand{l.operand(ctx, candidateId), l.operand(ctx, targetWord)}, found)

	l.emit2Store(emit.Add, ctx, kId, kId, emit.Small(1))
	l.emitter.EmitJump(innerTop)

	l.book.LabelAddr[nextObj] = l.emitter.Code.CurrentOffset()
	l.emit2Store(emit.Add, ctx, objId, objId, emit.Small(1))
	l.emitter.EmitJump(loopTop)

	l.book.LabelAddr[found] = l.emitter.Code.CurrentOffset()
	l.emitter.Emit(emit.StoreVar, []emit.Operand{l.operand(ctx, destSlot), l.operand(ctx, objId)}, 0, false, 0, true, false)
	l.emitter.EmitJump(done)

	l.book.LabelAddr[done] = l.emitter.Code.CurrentOffset()
}

// lowerArrayOp lowers Grue's dynamic arrays onto the Z-machine's flat
// addressable memory: ArrayNew reserves maxLen+1 words in a dedicated
// region of Globals-adjacent memory addressed via storew/loadw with word 0
// holding the live element count, matching the same table layout the
// runtime's dictionary and object tables use (a length-prefixed word
// table) rather than inventing a new shape.
func (l *Lowerer) lowerArrayOp(ctx *funcCtx, instr ir.Instruction) {
	switch instr.Kind {
	case ir.InstrArrayNew:
		base := ctx.declare(instr.ArrayId)
		l.emitter.Emit(emit.StoreVar, []emit.Operand{base.operand(), emit.Large(0)}, 0, false, 0, true, false)

	case ir.InstrArrayAdd:
		arr := l.operand(ctx, instr.ArrayId)
		val := l.operand(ctx, instr.ElemVal)

		// Append at the live count, then write the incremented count back to
		// word 0, rather than always overwriting index 0.
		countId := l.newSynthetic()
		l.emit2Store(emit.Loadw, ctx, countId, instr.ArrayId, emit.Small(0))

		nextId := l.newSynthetic()
		l.emit2Store(emit.Add, ctx, nextId, countId, emit.Small(1))

		l.emitter.Emit(emit.Storew, []emit.Operand{arr, l.operand(ctx, nextId), val}, 0, false, 0, true, false)
		l.emitter.Emit(emit.Storew, []emit.Operand{arr, emit.Small(0), l.operand(ctx, nextId)}, 0, false, 0, true, false)

	case ir.InstrGetArrayElement:
		l.emit2Store(emit.Loadw, ctx, instr.Target, instr.ArrayId, l.operand(ctx, instr.ElemIdx))

	case ir.InstrArrayLength:
		l.emit2Store(emit.Loadw, ctx, instr.Target, instr.ArrayId, emit.Small(0))

	default:
		panic("lower: unhandled array instruction")
	}
}
