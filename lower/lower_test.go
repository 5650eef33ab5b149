package lower

import (
	"testing"

	"github.com/gruetools/grue/emit"
	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
)

func newLowerer() *Lowerer {
	e := emit.New(memspace.New(memspace.Code), resolve.NewTable(), 3)
	return New(e, resolve.NewAddressBook(3))
}

func TestDeclareAssignsLocalsThenSpillsToGlobals(t *testing.T) {
	ctx := newFuncCtx()
	for i := 0; i < 15; i++ {
		s := ctx.declare(ir.Id(i + 1))
		if s.isGlobal || s.number != uint8(i+1) {
			t.Fatalf("id %d: expected local %d, got %+v", i+1, i+1, s)
		}
	}
	spilled := ctx.declare(ir.Id(16))
	if !spilled.isGlobal || spilled.number != globalOperandByte(spillGlobalStart) {
		t.Fatalf("expected 16th id to spill to the first spill global, got %+v", spilled)
	}
	if ctx.localCount != 15 {
		t.Fatalf("expected localCount 15, got %d", ctx.localCount)
	}
}

func TestDeclareIsIdempotent(t *testing.T) {
	ctx := newFuncCtx()
	first := ctx.declare(ir.Id(1))
	second := ctx.declare(ir.Id(1))
	if first != second {
		t.Fatalf("expected the same slot on re-declare, got %+v and %+v", first, second)
	}
	if ctx.nextLocal != 2 {
		t.Fatalf("re-declaring an existing id should not consume another local, nextLocal=%d", ctx.nextLocal)
	}
}

func TestDeclareSpillPoolExhaustedPanics(t *testing.T) {
	ctx := newFuncCtx()
	ctx.nextLocal = 16 // force every further declare to spill
	ctx.nextSpill = spillGlobalEnd + 1

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when the spill pool is exhausted")
		}
	}()
	ctx.declare(ir.Id(1))
}

func TestLowerBinaryOpArithmeticEmitsSingleStoringInstruction(t *testing.T) {
	l := newLowerer()
	ctx := newFuncCtx()
	lhs, rhs, target := ir.Id(1), ir.Id(2), ir.Id(3)
	ctx.declare(lhs)
	ctx.declare(rhs)

	l.lowerBinaryOp(ctx, ir.Instruction{Kind: ir.InstrBinaryOp, Op: ir.Add, Lhs: lhs, Rhs: rhs, Target: target})

	got := l.emitter.Code.Bytes()
	want := []uint8{0x74, 1, 2, 3} // Add's Opcode2 0x14 in Long form with both variable-operand bits set (two locals), store into local 3
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

// TestLowerBinaryOpComparisonMaterializesZeroOneBoolean exercises the
// branch-around-store pattern every comparison lowers into: a je/jl/jg that
// only branches, followed by store 0 / jump done / label / store 1 / label.
func TestLowerBinaryOpComparisonMaterializesZeroOneBoolean(t *testing.T) {
	l := newLowerer()
	ctx := newFuncCtx()
	lhs, rhs, target := ir.Id(1), ir.Id(2), ir.Id(3)
	ctx.declare(lhs)
	ctx.declare(rhs)

	l.lowerBinaryOp(ctx, ir.Instruction{Kind: ir.InstrBinaryOp, Op: ir.Eq, Lhs: lhs, Rhs: rhs, Target: target})

	if len(l.book.LabelAddr) != 2 {
		t.Fatalf("expected trueLabel and doneLabel recorded, got %d labels", len(l.book.LabelAddr))
	}
	refs := l.emitter.Refs.All()
	var branches, jumps int
	for _, r := range refs {
		switch r.Type {
		case resolve.Branch:
			branches++
		case resolve.Jump:
			jumps++
		}
	}
	if branches != 1 || jumps != 1 {
		t.Fatalf("expected one branch and one jump reference, got branches=%d jumps=%d", branches, jumps)
	}
}

// TestLowerBinaryOpInvertedComparisonSwapsStoredValues confirms Ne (the
// negated form of Eq) stores the flipped pair of constants.
func TestLowerBinaryOpInvertedComparisonSwapsStoredValues(t *testing.T) {
	l := newLowerer()
	ctx := newFuncCtx()
	lhs, rhs, target := ir.Id(1), ir.Id(2), ir.Id(3)
	ctx.declare(lhs)
	ctx.declare(rhs)

	l.lowerBinaryOp(ctx, ir.Instruction{Kind: ir.InstrBinaryOp, Op: ir.Ne, Lhs: lhs, Rhs: rhs, Target: target})

	// The first store (fall-through / "comparison failed") should write 1 for
	// Ne, where failing je (lhs == rhs is false) means the values differ.
	got := l.emitter.Code.Bytes()
	// je instruction is long-form: opcode, lhs, rhs, branch byte(s) -> 2 bytes
	// of branch placeholder follow (offset size 2 for a forward synthetic
	// label). Then comes the store instruction for the false arm.
	storeOffset := 1 + 1 + 1 + 2 // opcode + 2 operands + 2-byte branch placeholder
	if got[storeOffset] == 0 {
		t.Fatalf("expected a non-zero store opcode byte at %d, got %#x", storeOffset, got[storeOffset])
	}
	// store in Variable form: opcode, type byte, target variable, then the
	// stored value as a large constant.
	if v := uint16(got[storeOffset+3])<<8 | uint16(got[storeOffset+4]); v != 1 {
		t.Fatalf("expected the fall-through store to write 1 for Ne, got %d", v)
	}
}

func TestLowerArrayAddAppendsRatherThanOverwriting(t *testing.T) {
	l := newLowerer()
	ctx := newFuncCtx()
	arrayId, elemVal := ir.Id(1), ir.Id(2)
	ctx.declare(arrayId)
	ctx.declare(elemVal)

	l.lowerArrayOp(ctx, ir.Instruction{Kind: ir.InstrArrayAdd, ArrayId: arrayId, ElemVal: elemVal})

	// loadw (count), add (count+1), storew (value at new index), storew
	// (count back to word 0) - four 2OP/store instructions, none of which is
	// a bare overwrite of index 0 using the original elemVal operand alone.
	refs := l.emitter.Refs.All()
	if len(refs) != 0 {
		t.Fatalf("array append shouldn't need any forward references, got %d", len(refs))
	}
	got := l.emitter.Code.Bytes()
	if len(got) == 0 {
		t.Fatal("expected ArrayAdd to emit instructions")
	}
	// First instruction must be loadw (Opcode2 0x0F), not storew - confirms
	// the count is read before anything is written. It is in Long form with a
	// variable first operand (the array) and a small constant second, so the
	// opcode byte is 0x4F.
	if got[0] != 0x4F {
		t.Fatalf("expected the first emitted opcode to be loadw (0x4F), got %#x", got[0])
	}
}

func TestLowerFunctionRecordsEntryAndLocalCount(t *testing.T) {
	l := newLowerer()
	target := ir.Id(10)
	f := &ir.Function{
		Id:     ir.Id(1),
		Name:   "f",
		Params: []ir.Id{ir.Id(2), ir.Id(3)},
		Locals: []ir.Id{ir.Id(4)},
		Body: ir.Block{
			{Kind: ir.InstrLoadImmediate, Target: target, Value: ir.Int(7)},
			{Kind: ir.InstrReturn, HasReturnValue: true, ReturnValue: target},
		},
	}

	l.LowerFunction(f)

	entry, ok := l.book.FunctionAddr[f.Id]
	if !ok {
		t.Fatal("expected the function's entry offset to be recorded")
	}
	got := l.emitter.Code.Bytes()
	if got[entry] != 4 {
		t.Fatalf("expected local_count byte 4 (2 params + 1 local + the LoadImmediate target), got %d", got[entry])
	}
}

func TestLowerGetTreeFieldFallsThroughToSyntheticLabel(t *testing.T) {
	l := newLowerer()
	ctx := newFuncCtx()
	obj, target := ir.Id(1), ir.Id(2)
	ctx.declare(obj)

	l.lowerGetTreeField(ctx, emit.GetChild, ir.Instruction{Object: obj, Target: target})

	if len(l.book.LabelAddr) != 1 {
		t.Fatalf("expected exactly one synthetic label recorded, got %d", len(l.book.LabelAddr))
	}
	for _, addr := range l.book.LabelAddr {
		if addr != l.emitter.Code.CurrentOffset() {
			t.Fatalf("expected the synthetic label to point right after the instruction, got %d want %d", addr, l.emitter.Code.CurrentOffset())
		}
	}
}
