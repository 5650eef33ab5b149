package disasm

import (
	"testing"

	"github.com/gruetools/grue/emit"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
	"github.com/gruetools/grue/zcore"
)

// buildCore assembles a minimal, well-formed header followed by the given
// code bytes, and parses the result through zcore.LoadCore the same way a
// real story file would be loaded.
func buildCore(code []uint8) zcore.Core {
	buf := make([]uint8, 64+len(code))
	buf[0] = 3
	copy(buf[64:], code)
	return zcore.LoadCore(buf)
}

func TestDisassembleDecodesLongFormTwoOperandStoringInstruction(t *testing.T) {
	e := emit.New(memspace.New(memspace.Code), resolve.NewTable(), 3)
	e.Emit(emit.Add, []emit.Operand{emit.Small(1), emit.Small(2)}, 5, true, 0, true, false)
	e.Emit(emit.RTrue, nil, 0, false, 0, true, false)

	core := buildCore(e.Code.Bytes())
	instrs := Disassemble(&core, 64, 10)

	if len(instrs) != 2 {
		t.Fatalf("expected decoding to stop right after rtrue, got %d instructions: %v", len(instrs), instrs)
	}
	add := instrs[0]
	if add.Mnemonic != "add" {
		t.Fatalf("expected mnemonic add, got %q", add.Mnemonic)
	}
	if len(add.Operands) != 2 || add.Operands[0] != "#01" || add.Operands[1] != "#02" {
		t.Fatalf("unexpected operands: %v", add.Operands)
	}
	if add.Store != "local5" {
		t.Fatalf("expected store target local5, got %q", add.Store)
	}
	if instrs[1].Mnemonic != "rtrue" {
		t.Fatalf("expected the second instruction to be rtrue, got %q", instrs[1].Mnemonic)
	}
}

func TestDisassembleDecodesVariableFormCallWithVariableOperand(t *testing.T) {
	e := emit.New(memspace.New(memspace.Code), resolve.NewTable(), 3)
	e.Emit(emit.CallVS, []emit.Operand{emit.Large(0x0400), emit.Var(3)}, 1, true, 0, true, false)
	e.Emit(emit.RTrue, nil, 0, false, 0, true, false)

	core := buildCore(e.Code.Bytes())
	instrs := Disassemble(&core, 64, 10)

	call := instrs[0]
	if call.Mnemonic != "call_vs" {
		t.Fatalf("expected mnemonic call_vs, got %q", call.Mnemonic)
	}
	if len(call.Operands) != 2 {
		t.Fatalf("expected 2 operands, got %v", call.Operands)
	}
	if call.Operands[1] != "local3" {
		t.Fatalf("expected the second operand to decode as a variable, got %q", call.Operands[1])
	}
	if call.Store != "local1" {
		t.Fatalf("expected store target local1, got %q", call.Store)
	}
}

func TestDisassembleDecodesShortFormBranchWithSense(t *testing.T) {
	e := emit.New(memspace.New(memspace.Code), resolve.NewTable(), 3)
	layout := e.Emit(emit.JZ, []emit.Operand{emit.Var(2)}, 0, false, 0, false, true)
	// Resolve the branch manually to a known forward target without going
	// through resolve.Resolve: a two-byte placeholder targeting "offset 1"
	// (a taken branch returns true, the canonical "?true" encoding).
	code := e.Code
	code.WriteWordAt(layout.BranchLocation, 0x8001) // sense bit + 14-bit offset 1
	e.Emit(emit.RTrue, nil, 0, false, 0, true, false)

	core := buildCore(code.Bytes())
	instrs := Disassemble(&core, 64, 10)

	jz := instrs[0]
	if jz.Mnemonic != "jz" {
		t.Fatalf("expected mnemonic jz, got %q", jz.Mnemonic)
	}
	if jz.Branch != "?true" {
		t.Fatalf("expected branch %q, got %q", "?true", jz.Branch)
	}
}

func TestDisassembleStopsAtMemoryEnd(t *testing.T) {
	e := emit.New(memspace.New(memspace.Code), resolve.NewTable(), 3)
	e.Emit(emit.RTrue, nil, 0, false, 0, true, false)

	core := buildCore(e.Code.Bytes())
	instrs := Disassemble(&core, 64, 1000)

	if len(instrs) != 1 {
		t.Fatalf("expected exactly one instruction (rtrue is an unconditional exit), got %d", len(instrs))
	}
}
