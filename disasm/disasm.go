// Package disasm implements linear instruction disassembly: starting at a
// given address (the header's initial PC by default), it decodes one
// instruction after another until an unconditional control transfer, an
// instruction-count limit or the end of memory, with no routine-discovery
// heuristics - recovering
// routine boundaries from a raw image is a separate, harder problem this
// package deliberately leaves alone.
package disasm

import (
	"fmt"
	"strings"

	"github.com/gruetools/grue/emit"
	"github.com/gruetools/grue/zcore"
)

// Instruction is one decoded instruction: its address, mnemonic text,
// operands in source order, and - when present - its store target and
// branch description.
type Instruction struct {
	Address  uint32
	Length   uint32
	Mnemonic string
	Operands []string
	Store    string // empty if the instruction doesn't store
	Branch   string // empty if the instruction doesn't branch
}

func (i Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%05x: %-14s %s", i.Address, i.Mnemonic, strings.Join(i.Operands, ", "))
	if i.Store != "" {
		fmt.Fprintf(&b, " -> %s", i.Store)
	}
	if i.Branch != "" {
		fmt.Fprintf(&b, " %s", i.Branch)
	}
	return b.String()
}

// opcodeEntry names an instruction recognized at one specific (form,
// opcode-number) pair - the inverse of emit's Mnemonic-to-number table,
// rebuilt once so decode is a direct lookup rather than a linear scan.
type opcodeEntry struct {
	name     string
	stores   bool
	branches bool
}

type formKey struct {
	form int // 0=2OP/Long-or-VAR2, 1=1OP, 2=0OP, 3=VAR
	num  uint8
}

var byFormOpcode map[formKey]opcodeEntry

func init() {
	byFormOpcode = map[formKey]opcodeEntry{}
	for _, o := range emit.AllOpcodes() {
		entry := opcodeEntry{o.Name, o.Stores, o.Branches}
		if o.Has2OP {
			byFormOpcode[formKey{0, o.Opcode2}] = entry
		}
		if o.Has1OP {
			byFormOpcode[formKey{1, o.Opcode1}] = entry
		}
		if o.Has0OP {
			byFormOpcode[formKey{2, o.Opcode0}] = entry
		}
		if o.IsVAR {
			byFormOpcode[formKey{3, o.OpcodeVAR}] = entry
		}
	}
}

// Disassemble decodes instructions forward from addr until it has produced
// maxInstructions entries, hits an unconditional control transfer (rtrue,
// rfalse, ret, ret_popped, quit, jump) or reads past memory's end -
// whichever comes first.
func Disassemble(core *zcore.Core, addr uint32, maxInstructions int) []Instruction {
	var out []Instruction
	limit := core.MemoryLength()

	for len(out) < maxInstructions && addr < limit {
		instr, next := decodeOne(core, addr)
		out = append(out, instr)
		addr = next
		if isUnconditionalExit(instr.Mnemonic) {
			break
		}
	}
	return out
}

func isUnconditionalExit(mnemonic string) bool {
	switch mnemonic {
	case "rtrue", "rfalse", "ret", "ret_popped", "quit", "jump":
		return true
	}
	return false
}

type operandType int

const (
	opLarge operandType = iota
	opSmall
	opVariable
	opOmitted
)

func decodeOne(core *zcore.Core, addr uint32) (Instruction, uint32) {
	start := addr
	first := core.ReadByte(addr)
	addr++

	var form int
	var opcodeNum uint8
	var types []operandType

	switch {
	case first == 0xBE:
		// Extended form: not used by anything this compiler emits, but
		// recognized so a future V5 extension opcode doesn't desync the
		// decoder on the rest of the routine.
		opcodeNum = core.ReadByte(addr)
		addr++
		typeByte := core.ReadByte(addr)
		addr++
		types = decodeVarTypeByte(typeByte)
		form = 3

	case first&0b1100_0000 == 0b1100_0000:
		form = 0
		if first&0b0010_0000 != 0 {
			form = 3 // VAR-native
		}
		opcodeNum = first & 0b0001_1111
		typeByte := core.ReadByte(addr)
		addr++
		types = decodeVarTypeByte(typeByte)

	case first&0b1000_0000 != 0:
		opcodeNum = first & 0b0000_1111
		tag := (first >> 4) & 0b11
		if tag == 0b11 {
			form = 2
			types = nil
		} else {
			form = 1
			types = []operandType{operandType(tag)}
		}

	default:
		form = 0
		opcodeNum = first & 0b0001_1111
		t0, t1 := opSmall, opSmall
		if first&0b0100_0000 != 0 {
			t0 = opVariable
		}
		if first&0b0010_0000 != 0 {
			t1 = opVariable
		}
		types = []operandType{t0, t1}
	}

	entry, known := byFormOpcode[formKey{form, opcodeNum}]
	name := entry.name
	if !known {
		name = fmt.Sprintf("unknown(form=%d,op=%#x)", form, opcodeNum)
	}

	var operands []string
	for _, t := range types {
		if t == opOmitted {
			break
		}
		switch t {
		case opLarge:
			v := uint16(core.ReadByte(addr))<<8 | uint16(core.ReadByte(addr+1))
			addr += 2
			operands = append(operands, fmt.Sprintf("#%04x", v))
		case opSmall:
			v := core.ReadByte(addr)
			addr++
			operands = append(operands, fmt.Sprintf("#%02x", v))
		case opVariable:
			v := core.ReadByte(addr)
			addr++
			operands = append(operands, varName(v))
		}
	}

	store := ""
	if entry.stores {
		v := core.ReadByte(addr)
		addr++
		store = varName(v)
	}

	branch := ""
	if entry.branches {
		b0 := core.ReadByte(addr)
		sense := b0&0x80 != 0
		var offset int32
		if b0&0x40 != 0 {
			offset = int32(b0 & 0x3F)
			addr++
		} else {
			b1 := core.ReadByte(addr + 1)
			raw := uint16(b0&0x3F)<<8 | uint16(b1)
			if raw&0x2000 != 0 {
				raw |= 0xC000 // sign-extend the 14-bit field
			}
			offset = int32(int16(raw))
			addr += 2
		}
		sign := "?"
		if !sense {
			sign = "?~"
		}
		switch offset {
		case 0:
			branch = fmt.Sprintf("%sfalse", sign)
		case 1:
			branch = fmt.Sprintf("%strue", sign)
		default:
			target := int32(addr) + offset - 2
			branch = fmt.Sprintf("%s%05x", sign, target)
		}
	}

	if name == "print" {
		// print's operand is inline Z-string bytes, not an operand-table
		// value - decode defensively by scanning halfwords for the
		// end-of-string bit rather than re-entering zstring.Decode, since
		// disassembly only needs to know where the instruction ends.
		for {
			hw := uint16(core.ReadByte(addr))<<8 | uint16(core.ReadByte(addr+1))
			addr += 2
			if hw&0x8000 != 0 {
				break
			}
		}
		operands = []string{"(inline string)"}
	}

	return Instruction{
		Address:  start,
		Length:   addr - start,
		Mnemonic: name,
		Operands: operands,
		Store:    store,
		Branch:   branch,
	}, addr
}

func decodeVarTypeByte(b uint8) []operandType {
	var types []operandType
	for shift := 6; shift >= 0; shift -= 2 {
		tag := (b >> uint(shift)) & 0b11
		if tag == 0b11 {
			break
		}
		types = append(types, operandType(tag))
	}
	return types
}

func varName(v uint8) string {
	switch {
	case v == 0:
		return "sp"
	case v <= 15:
		return fmt.Sprintf("local%d", v)
	default:
		return fmt.Sprintf("g%d", int(v)-16)
	}
}
