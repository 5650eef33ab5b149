package emit

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
)

func newEmitter() *Emitter {
	return New(memspace.New(memspace.Code), resolve.NewTable(), 3)
}

func TestEmitLongFormTwoSmallOperands(t *testing.T) {
	e := newEmitter()
	e.Emit(Add, []Operand{Small(1), Small(2)}, 5, true, 0, true, false)

	got := e.Code.Bytes()
	// Long form: opcode byte, two small operand bytes, store-var byte.
	want := []uint8{0x14, 1, 2, 5} // Add's Opcode2 is 0x14, both operands small => bits 6,5 clear
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

func TestEmitLongFormVariableOperandSetsTypeBits(t *testing.T) {
	e := newEmitter()
	e.Emit(JE, []Operand{Var(1), Small(2)}, 0, false, 0, true, true)

	got := e.Code.Bytes()
	if got[0]&0b0100_0000 == 0 {
		t.Fatalf("expected bit6 set for a Variable first operand, got %#x", got[0])
	}
	if got[0]&0b0010_0000 != 0 {
		t.Fatalf("expected bit5 clear for a Small second operand, got %#x", got[0])
	}
}

func TestEmitWidensToVariableFormForLargeConstant(t *testing.T) {
	e := newEmitter()
	e.Emit(Add, []Operand{Large(1000), Small(1)}, 3, true, 0, true, false)

	got := e.Code.Bytes()
	// Variable-form 2OP: top two bits 11, bit5 clear (2OP-in-VAR), opcode in low 5 bits.
	if got[0]&0b1100_0000 != 0b1100_0000 {
		t.Fatalf("expected Variable-form prefix bits, got %#x", got[0])
	}
	if got[0]&0b0010_0000 != 0 {
		t.Fatalf("expected the 2OP-in-VAR bit clear (bit5), got %#x", got[0])
	}
}

func TestEmitShortForm1OPWithBranch(t *testing.T) {
	e := newEmitter()
	layout := e.Emit(JZ, []Operand{Var(3)}, 0, false, ir.Id(99), false, true)

	if !layout.HasBranch {
		t.Fatal("expected HasBranch true")
	}
	got := e.Code.Bytes()
	if got[0]&0b1000_0000 == 0 {
		t.Fatalf("expected Short-form top bit set, got %#x", got[0])
	}
	// Branch placeholder sense bit: branchFalseIsNext=false means senseTrue=true -> bit15 set.
	placeholder := uint16(got[layout.BranchLocation])<<8 | uint16(got[layout.BranchLocation+1])
	if placeholder&0x8000 == 0 {
		t.Fatalf("expected sense bit set in branch placeholder, got %#x", placeholder)
	}
}

func TestEmitStoreOnNonStoringPanics(t *testing.T) {
	e := newEmitter()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic storing from a non-storing mnemonic")
		}
	}()
	e.Emit(SetAttr, []Operand{Small(1), Small(2)}, 0, true, 0, true, false)
}

func TestEmitBranchOnNonBranchingPanics(t *testing.T) {
	e := newEmitter()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic branching from a non-branching mnemonic")
		}
	}()
	e.Emit(Add, []Operand{Small(1), Small(2)}, 0, false, 0, true, true)
}

func TestEmitLargeOperandForwardReferenceRecordsLocationBeforePlaceholder(t *testing.T) {
	e := newEmitter()
	e.Emit(StoreVar, []Operand{Var(1), LargeRef(resolve.StringRef, ir.Id(42), true)}, 0, false, 0, true, false)

	refs := e.Refs.All()
	if len(refs) != 1 {
		t.Fatalf("expected exactly one reference, got %d", len(refs))
	}
	ref := refs[0]
	if ref.Target != 42 || ref.Type != resolve.StringRef || !ref.IsPackedAddress {
		t.Fatalf("unexpected reference: %+v", ref)
	}

	got := e.Code.Bytes()
	if got[ref.Location] != resolve.PlaceholderHi || got[ref.Location+1] != resolve.PlaceholderLo {
		t.Fatalf("placeholder bytes not written at recorded location: %#x %#x", got[ref.Location], got[ref.Location+1])
	}
}

func TestEmitJumpRecordsJumpReference(t *testing.T) {
	e := newEmitter()
	layout := e.EmitJump(ir.Id(7))

	refs := e.Refs.All()
	if len(refs) != 1 || refs[0].Type != resolve.Jump || refs[0].Target != 7 {
		t.Fatalf("unexpected jump reference: %+v", refs)
	}
	if len(layout.OperandLocations) != 1 {
		t.Fatalf("expected one operand location, got %d", len(layout.OperandLocations))
	}
}

func TestEmitPrintStringWritesInlineBytes(t *testing.T) {
	e := newEmitter()
	e.EmitPrintString([]uint8{0x12, 0x34})

	got := e.Code.Bytes()
	want := []uint8{0xB2, 0x12, 0x34} // 0b1011_0010: short form, tag 11 (0OP), opcode 0x02 (print)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}
