package emit

import (
	"fmt"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/memspace"
	"github.com/gruetools/grue/resolve"
)

// OperandKind tags an Operand the way §4.4.1 requires.
type OperandKind int

const (
	SmallConstant OperandKind = iota
	LargeConstant
	Variable
	Omitted
)

// Operand is one operand to Emit. A LargeConstant operand whose value isn't
// known yet (a forward reference to a string, function or label) is
// represented by setting Unresolved and naming what the reference is for;
// Emit creates the UnresolvedReference at the correct offset itself.
type Operand struct {
	Kind  OperandKind
	Value uint16 // meaningful for SmallConstant/LargeConstant/Variable

	Unresolved     bool
	RefType        resolve.Kind
	RefTarget      ir.Id
	RefWord        string
	RefOffset      uint32
	RefPacked      bool
}

func Small(v uint8) Operand  { return Operand{Kind: SmallConstant, Value: uint16(v)} }
func Large(v uint16) Operand { return Operand{Kind: LargeConstant, Value: v} }
func Var(v uint8) Operand    { return Operand{Kind: Variable, Value: uint16(v)} }

// LargeRef is a LargeConstant operand whose value is a forward reference -
// a string address, a function's packed address, or an object number -
// resolved after layout by component G.
func LargeRef(refType resolve.Kind, target ir.Id, packed bool) Operand {
	return Operand{Kind: LargeConstant, Unresolved: true, RefType: refType, RefTarget: target, RefPacked: packed}
}

func DictWordRef(word string) Operand {
	return Operand{Kind: LargeConstant, Unresolved: true, RefType: resolve.DictionaryWord, RefWord: word}
}

// GlobalsOffsetRef is a LargeConstant operand resolving to the absolute
// runtime address of a byte offset within the Globals space - how a
// lowering reaches a dynamic-memory scratch buffer (e.g. a text or parse
// buffer) whose position was fixed when the buffer was carved out, not
// looked up by ir.Id.
func GlobalsOffsetRef(offset uint32) Operand {
	return Operand{Kind: LargeConstant, Unresolved: true, RefType: resolve.GlobalsOffset, RefOffset: offset}
}

// Layout is what Emit returns: where each part of the emitted instruction
// landed, per §4.4.7's contract.
type Layout struct {
	InstructionStart uint32
	OperandLocations []uint32
	StoreVarLocation uint32
	HasStoreVar      bool
	BranchLocation   uint32
	HasBranch        bool
}

// Emitter appends instructions into a Code space, creating unresolved
// references in refs for any forward-referencing operand or branch/jump
// target.
type Emitter struct {
	Code    *memspace.Space
	Refs    *resolve.Table
	Version uint8
}

func New(code *memspace.Space, refs *resolve.Table, version uint8) *Emitter {
	return &Emitter{Code: code, Refs: refs, Version: version}
}

// chooseForm picks Long/Short/Variable per §4.4.3: a 2OP instruction prefers Long
// form when every operand is SmallConstant or Variable, and only widens to
// Variable form (the 2OP-in-Variable-form bit) when an operand needs 16
// bits. 1OP/0OP instructions always use Short form; VAR-native instructions
// always use Variable form.
type instrForm int

const (
	formLong instrForm = iota
	formShort
	formVariable
	formExtended
)

func chooseForm(s spec, operands []Operand) instrForm {
	switch {
	case s.IsVAR:
		return formVariable
	case s.Has0OP, s.Has1OP:
		return formShort
	case s.Has2OP:
		for _, op := range operands {
			if op.Kind == LargeConstant {
				return formVariable
			}
		}
		return formLong
	default:
		panic("emit: mnemonic has no valid form")
	}
}

// Emit writes one instruction: opcode byte(s), operand-type byte for
// Variable/Extended forms, operand bytes, store-variable byte, and branch
// bytes, in that order - matching the on-disk layout the decoder expects.
// storeVar and branch are optional; pass hasStoreVar/hasBranch false when
// the instruction doesn't store or branch.
func (e *Emitter) Emit(m Mnemonic, operands []Operand, storeVar uint8, hasStoreVar bool, branchTrueLabel ir.Id, branchFalseIsNext bool, hasBranch bool) Layout {
	s := lookup(m)

	if hasStoreVar && !s.Stores {
		panic(fmt.Sprintf("emit: %v does not store a value", m))
	}
	if hasBranch && !s.Branches {
		panic(fmt.Sprintf("emit: %v does not branch", m))
	}

	form := chooseForm(s, operands)
	layout := Layout{InstructionStart: e.Code.CurrentOffset()}

	switch form {
	case formLong:
		if s.Opcode2 == 0 {
			panic("emit: 2OP opcode 0 is invalid (Long 2OP:0x00)")
		}
		if len(operands) != 2 {
			panic(fmt.Sprintf("emit: %v in Long form needs exactly 2 operands, got %d", m, len(operands)))
		}
		b := s.Opcode2 & 0b0001_1111
		if operands[0].Kind == Variable {
			b |= 0b0100_0000
		}
		if operands[1].Kind == Variable {
			b |= 0b0010_0000
		}
		e.Code.AppendByte(b)
		for _, op := range operands {
			layout.OperandLocations = append(layout.OperandLocations, e.emitSmallOrVarOperand(op))
		}

	case formShort:
		var opcodeNum uint8
		typeTag := uint8(0b11) // omitted = 0-operand
		if s.Has1OP {
			opcodeNum = s.Opcode1
			if len(operands) != 1 {
				panic(fmt.Sprintf("emit: %v in Short form needs exactly 1 operand, got %d", m, len(operands)))
			}
			typeTag = shortOperandTypeTag(operands[0].Kind)
		} else {
			opcodeNum = s.Opcode0
			if len(operands) != 0 {
				panic(fmt.Sprintf("emit: %v in Short form takes no operands, got %d", m, len(operands)))
			}
		}
		b := uint8(0b1000_0000) | (typeTag << 4) | (opcodeNum & 0b1111)
		e.Code.AppendByte(b)
		for _, op := range operands {
			if op.Kind == LargeConstant {
				layout.OperandLocations = append(layout.OperandLocations, e.emitLargeOperand(op))
			} else {
				layout.OperandLocations = append(layout.OperandLocations, e.emitSmallOrVarOperand(op))
			}
		}

	case formVariable:
		opcodeNum := s.Opcode2
		varBit := uint8(0)
		if s.IsVAR {
			opcodeNum = s.OpcodeVAR
			varBit = 0b0010_0000
		}
		b := 0b1100_0000 | varBit | (opcodeNum & 0b0001_1111)
		e.Code.AppendByte(b)

		if len(operands) > 4 {
			panic(fmt.Sprintf("emit: %v has %d operands, more than 4 needs two type bytes (not yet supported)", m, len(operands)))
		}

		typeByte := uint8(0xFF) // all-omitted default
		for i := 0; i < 4; i++ {
			tag := uint8(0b11)
			if i < len(operands) {
				tag = variableOperandTypeTag(operands[i].Kind)
			}
			typeByte = (typeByte &^ (0b11 << uint(6-2*i))) | (tag << uint(6-2*i))
		}
		e.Code.AppendByte(typeByte)

		for _, op := range operands {
			switch op.Kind {
			case LargeConstant:
				layout.OperandLocations = append(layout.OperandLocations, e.emitLargeOperand(op))
			default:
				layout.OperandLocations = append(layout.OperandLocations, e.emitSmallOrVarOperand(op))
			}
		}

	default:
		panic("emit: extended form not implemented")
	}

	if hasStoreVar {
		layout.StoreVarLocation = e.Code.AppendByte(storeVar)
		layout.HasStoreVar = true
	}

	if hasBranch {
		layout.BranchLocation = e.emitBranchPlaceholder(branchTrueLabel, !branchFalseIsNext)
		layout.HasBranch = true
	}

	return layout
}

func shortOperandTypeTag(k OperandKind) uint8 {
	switch k {
	case LargeConstant:
		return 0b00
	case SmallConstant:
		return 0b01
	case Variable:
		return 0b10
	default:
		return 0b11
	}
}

func variableOperandTypeTag(k OperandKind) uint8 {
	switch k {
	case LargeConstant:
		return 0b00
	case SmallConstant:
		return 0b01
	case Variable:
		return 0b10
	default:
		return 0b11
	}
}

// emitSmallOrVarOperand writes a SmallConstant or Variable operand (always
// one byte) and returns its offset.
func (e *Emitter) emitSmallOrVarOperand(op Operand) uint32 {
	return e.Code.AppendByte(uint8(op.Value))
}

// emitLargeOperand writes a two-byte operand. If it's a forward reference,
// the offset is recorded in the reference table BEFORE the placeholder
// bytes are appended (§4.4.6/§3.3's binding invariant) - AppendWord returns
// the offset it wrote at, so the reference records that same offset, never
// one computed after the fact.
func (e *Emitter) emitLargeOperand(op Operand) uint32 {
	if !op.Unresolved {
		return e.Code.AppendWord(op.Value)
	}

	offset := e.Code.CurrentOffset()
	e.Refs.Add(resolve.Reference{
		Type:            op.RefType,
		Location:        offset,
		LocationSpace:   memspace.Code,
		Target:          op.RefTarget,
		Word:            op.RefWord,
		Offset:          op.RefOffset,
		IsPackedAddress: op.RefPacked,
		OffsetSize:      2,
	})
	e.Code.AppendWord(uint16(resolve.PlaceholderHi)<<8 | uint16(resolve.PlaceholderLo))
	return offset
}

// emitBranchPlaceholder always emits the two-byte branch form (§4.4.5's
// compiler policy), encoding the intended sense in bit 15 of the
// placeholder word so the resolver can recover it without a side channel.
func (e *Emitter) emitBranchPlaceholder(target ir.Id, senseTrue bool) uint32 {
	offset := e.Code.CurrentOffset()
	e.Refs.Add(resolve.Reference{
		Type:          resolve.Branch,
		Location:      offset,
		LocationSpace: memspace.Code,
		Target:        target,
		OffsetSize:    2,
	})
	placeholder := uint16(0x3FFF) // offset bits all in the placeholder's "unused" low bits; sense lives in bit 15
	if senseTrue {
		placeholder |= 0x8000
	} else {
		placeholder = 0x3FFF &^ 0x8000 // explicit: bit 15 clear means branch-on-FALSE
	}
	e.Code.AppendWord(placeholder)
	return offset
}

// EmitJump emits a 1OP `jump` instruction with an unresolved Jump reference
// at its operand (§4.6.5). jump is always 1OP form with a LargeConstant
// operand (the offset needs the full 16-bit signed range).
func (e *Emitter) EmitJump(target ir.Id) Layout {
	s := lookup(JumpOp)
	layout := Layout{InstructionStart: e.Code.CurrentOffset()}

	b := uint8(0b1000_0000) | (0b00 << 4) | (s.Opcode1 & 0b1111) // type tag 00 = Large
	e.Code.AppendByte(b)

	offset := e.Code.CurrentOffset()
	e.Refs.Add(resolve.Reference{
		Type:          resolve.Jump,
		Location:      offset,
		LocationSpace: memspace.Code,
		Target:        target,
		OffsetSize:    2,
	})
	e.Code.AppendWord(0xFFFF)
	layout.OperandLocations = []uint32{offset}
	return layout
}

// EmitPrintString emits `print` (0OP) immediately followed by the inline
// Z-string bytes - the one instruction whose operand is not an
// operand-table value but raw trailing bytes (§4.8's decoder note).
func (e *Emitter) EmitPrintString(zstring []uint8) Layout {
	s := lookup(PrintInline)
	layout := Layout{InstructionStart: e.Code.CurrentOffset()}
	b := uint8(0b1000_0000) | (0b11 << 4) | (s.Opcode0 & 0b1111)
	e.Code.AppendByte(b)
	e.Code.AppendBytes(zstring)
	return layout
}
