package emit

// Mnemonic is a closed tagged enum with one variant per instruction the
// compiler actually emits - never a raw opcode byte threaded through the
// emitter. §4.4.4 and the design notes in §9 are explicit about why: the
// same 5-bit opcode field means different instructions depending on form
// (2OP:0x01 `je` vs VAR:0x01 `storew`, 2OP:0x0D `store` vs VAR:0x0D
// `output_stream`, 2OP:0x14 `add` vs VAR:0x14 `call_vs`, 2OP:0x13
// `get_next_prop` vs VAR:0x13 `output_stream`). Keying everything off
// Mnemonic instead of a number makes that collision unrepresentable.
type Mnemonic int

const (
	JE Mnemonic = iota
	JL
	JG
	JZ
	Inc
	Dec
	TestAttr
	SetAttr
	ClearAttr
	StoreVar
	InsertObj
	Loadw
	Loadb
	GetProp
	GetPropAddr
	GetNextProp
	Add
	Sub
	Mul
	Div
	Mod
	And
	Or
	Not
	GetSibling
	GetChild
	GetParent
	GetPropLen
	PrintAddr
	RemoveObj
	Ret
	JumpOp
	PrintPaddr
	RTrue
	RFalse
	PrintInline
	PrintRet
	RetPopped
	Quit
	NewLine
	CallVS
	CallVN
	CallVS2
	CallVN2
	Storew
	Storeb
	PutProp
	Sread
	PrintChar
	PrintNum
	Random
	Push
	Pull
)

// spec names an instruction's opcode number under whichever fixed form it
// is emitted in. A 2OP-capable instruction (Has2OP) can ALSO be emitted in
// Variable form (the 2OP-in-Variable-form bit, §4.4.3) when an operand
// doesn't fit Long form; that reuses the same Opcode2 value, since the
// 2OP-in-VAR opcode field is the same 5-bit number as the Long-form one.
type spec struct {
	Has2OP bool
	Opcode2 uint8

	Has1OP bool
	Opcode1 uint8

	Has0OP bool
	Opcode0 uint8

	IsVAR   bool // VAR-native: not reachable as 2OP/1OP/0OP at all
	OpcodeVAR uint8

	Stores     bool
	Branches   bool
	MinVersion uint8
}

// specs is the single table translating a Mnemonic to its opcode numbers.
// Building the instruction byte from this table - never from a raw number
// passed in by a caller - is what §9 calls "opcode identity vs. opcode
// byte."
var specs = map[Mnemonic]spec{
	JE:          {Has2OP: true, Opcode2: 0x01, Branches: true, MinVersion: 3},
	JL:          {Has2OP: true, Opcode2: 0x02, Branches: true, MinVersion: 3},
	JG:          {Has2OP: true, Opcode2: 0x03, Branches: true, MinVersion: 3},
	Or:          {Has2OP: true, Opcode2: 0x08, Stores: true, MinVersion: 3},
	And:         {Has2OP: true, Opcode2: 0x09, Stores: true, MinVersion: 3},
	TestAttr:    {Has2OP: true, Opcode2: 0x0A, Branches: true, MinVersion: 3},
	SetAttr:     {Has2OP: true, Opcode2: 0x0B, MinVersion: 3},
	ClearAttr:   {Has2OP: true, Opcode2: 0x0C, MinVersion: 3},
	StoreVar:    {Has2OP: true, Opcode2: 0x0D, MinVersion: 3},
	InsertObj:   {Has2OP: true, Opcode2: 0x0E, MinVersion: 3},
	Loadw:       {Has2OP: true, Opcode2: 0x0F, Stores: true, MinVersion: 3},
	Loadb:       {Has2OP: true, Opcode2: 0x10, Stores: true, MinVersion: 3},
	GetProp:     {Has2OP: true, Opcode2: 0x11, Stores: true, MinVersion: 3},
	GetPropAddr: {Has2OP: true, Opcode2: 0x12, Stores: true, MinVersion: 3},
	GetNextProp: {Has2OP: true, Opcode2: 0x13, Stores: true, MinVersion: 3},
	Add:         {Has2OP: true, Opcode2: 0x14, Stores: true, MinVersion: 3},
	Sub:         {Has2OP: true, Opcode2: 0x15, Stores: true, MinVersion: 3},
	Mul:         {Has2OP: true, Opcode2: 0x16, Stores: true, MinVersion: 3},
	Div:         {Has2OP: true, Opcode2: 0x17, Stores: true, MinVersion: 3},
	Mod:         {Has2OP: true, Opcode2: 0x18, Stores: true, MinVersion: 3},

	JZ:         {Has1OP: true, Opcode1: 0x00, Branches: true, MinVersion: 3},
	GetSibling: {Has1OP: true, Opcode1: 0x01, Stores: true, Branches: true, MinVersion: 3},
	GetChild:   {Has1OP: true, Opcode1: 0x02, Stores: true, Branches: true, MinVersion: 3},
	GetParent:  {Has1OP: true, Opcode1: 0x03, Stores: true, MinVersion: 3},
	GetPropLen: {Has1OP: true, Opcode1: 0x04, Stores: true, MinVersion: 3},
	Inc:        {Has1OP: true, Opcode1: 0x05, MinVersion: 3},
	Dec:        {Has1OP: true, Opcode1: 0x06, MinVersion: 3},
	PrintAddr:  {Has1OP: true, Opcode1: 0x07, MinVersion: 3},
	RemoveObj:  {Has1OP: true, Opcode1: 0x09, MinVersion: 3},
	Ret:        {Has1OP: true, Opcode1: 0x0B, MinVersion: 3},
	JumpOp:     {Has1OP: true, Opcode1: 0x0C, MinVersion: 3},
	PrintPaddr: {Has1OP: true, Opcode1: 0x0D, MinVersion: 3},

	RTrue:      {Has0OP: true, Opcode0: 0x00, MinVersion: 3},
	RFalse:     {Has0OP: true, Opcode0: 0x01, MinVersion: 3},
	PrintInline: {Has0OP: true, Opcode0: 0x02, MinVersion: 3},
	PrintRet:   {Has0OP: true, Opcode0: 0x03, MinVersion: 3},
	RetPopped:  {Has0OP: true, Opcode0: 0x08, MinVersion: 3},
	Quit:       {Has0OP: true, Opcode0: 0x0A, MinVersion: 3},
	NewLine:    {Has0OP: true, Opcode0: 0x0B, MinVersion: 3},

	CallVS:  {IsVAR: true, OpcodeVAR: 0x00, Stores: true, MinVersion: 3},
	Storew:  {IsVAR: true, OpcodeVAR: 0x01, MinVersion: 3},
	Storeb:  {IsVAR: true, OpcodeVAR: 0x02, MinVersion: 3},
	PutProp: {IsVAR: true, OpcodeVAR: 0x03, MinVersion: 3},
	Sread:   {IsVAR: true, OpcodeVAR: 0x04, MinVersion: 3},
	PrintChar: {IsVAR: true, OpcodeVAR: 0x05, MinVersion: 3},
	PrintNum:  {IsVAR: true, OpcodeVAR: 0x06, MinVersion: 3},
	Random:    {IsVAR: true, OpcodeVAR: 0x07, Stores: true, MinVersion: 3},
	Push:      {IsVAR: true, OpcodeVAR: 0x08, MinVersion: 3},
	Pull:      {IsVAR: true, OpcodeVAR: 0x09, MinVersion: 3},
	CallVS2:   {IsVAR: true, OpcodeVAR: 0x0C, Stores: true, MinVersion: 4},
	Not:       {IsVAR: true, OpcodeVAR: 0x18, Stores: true, MinVersion: 5},
	CallVN:    {IsVAR: true, OpcodeVAR: 0x19, MinVersion: 5},
	CallVN2:   {IsVAR: true, OpcodeVAR: 0x1A, MinVersion: 5},
}

func lookup(m Mnemonic) spec {
	s, ok := specs[m]
	if !ok {
		panic("emit: unknown mnemonic")
	}
	return s
}

// mnemonicNames gives disasm a human-readable label per Mnemonic without
// exposing the enum's Go identifier (which doesn't always match the
// canonical opcode name, e.g. JumpOp vs. "jump").
var mnemonicNames = map[Mnemonic]string{
	JE: "je", JL: "jl", JG: "jg", JZ: "jz", Inc: "inc", Dec: "dec",
	TestAttr: "test_attr", SetAttr: "set_attr", ClearAttr: "clear_attr",
	StoreVar: "store", InsertObj: "insert_obj", Loadw: "loadw", Loadb: "loadb",
	GetProp: "get_prop", GetPropAddr: "get_prop_addr", GetNextProp: "get_next_prop",
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Mod: "mod", And: "and", Or: "or",
	Not: "not", GetSibling: "get_sibling", GetChild: "get_child", GetParent: "get_parent",
	GetPropLen: "get_prop_len", PrintAddr: "print_addr", RemoveObj: "remove_obj", Ret: "ret", JumpOp: "jump",
	PrintPaddr: "print_paddr", RTrue: "rtrue", RFalse: "rfalse", PrintInline: "print",
	PrintRet: "print_ret", RetPopped: "ret_popped", Quit: "quit", NewLine: "new_line",
	CallVS: "call_vs", CallVN: "call_vn", CallVS2: "call_vs2", CallVN2: "call_vn2",
	Storew: "storew", Storeb: "storeb", PutProp: "put_prop", Sread: "sread",
	PrintChar: "print_char", PrintNum: "print_num", Random: "random", Push: "push", Pull: "pull",
}

// OpcodeInfo is the same spec data exported for a consumer outside this
// package - the disassembler builds its decode table from it rather than
// duplicating the opcode-number assignments.
type OpcodeInfo struct {
	Name                         string
	Has2OP, Has1OP, Has0OP, IsVAR bool
	Opcode2, Opcode1, Opcode0, OpcodeVAR uint8
	Stores, Branches bool
}

// AllOpcodes returns one OpcodeInfo per Mnemonic, in an unspecified but
// stable-within-a-process order.
func AllOpcodes() []OpcodeInfo {
	out := make([]OpcodeInfo, 0, len(specs))
	for m, s := range specs {
		out = append(out, OpcodeInfo{
			Name: mnemonicNames[m],
			Has2OP: s.Has2OP, Has1OP: s.Has1OP, Has0OP: s.Has0OP, IsVAR: s.IsVAR,
			Opcode2: s.Opcode2, Opcode1: s.Opcode1, Opcode0: s.Opcode0, OpcodeVAR: s.OpcodeVAR,
			Stores: s.Stores, Branches: s.Branches,
		})
	}
	return out
}
