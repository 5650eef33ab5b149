// Package ir defines the typed intermediate representation the compiler
// back-end consumes. A front end (lexer/parser/semantic analyzer) is
// responsible for producing a valid Program; this package only models the
// contract and offers a Builder so tests and tooling can construct one by
// hand without a front end.
package ir

import "encoding/json"

// Id identifies any IR entity - a value, label, function, object, string or
// property - monotonically and uniquely across one compilation unit.
type Id uint32

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	ValueInteger ValueKind = iota
	ValueBoolean
	ValueStringRef
	ValueObjectRef
	ValueNil
)

type Value struct {
	Kind      ValueKind
	Integer   int16
	Boolean   bool
	StringRef Id
	ObjectRef Id
}

func Int(v int16) Value           { return Value{Kind: ValueInteger, Integer: v} }
func Bool(v bool) Value           { return Value{Kind: ValueBoolean, Boolean: v} }
func StringValue(id Id) Value     { return Value{Kind: ValueStringRef, StringRef: id} }
func ObjectValue(id Id) Value     { return Value{Kind: ValueObjectRef, ObjectRef: id} }
func Nil() Value                  { return Value{Kind: ValueNil} }

type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

type UnOp int

const (
	Neg UnOp = iota
	Not
)

// Instruction is a tagged union over every IR opcode. Exactly one of the
// Kind-specific fields is meaningful for a given Kind; lowering switches on
// Kind the same way the runtime switches on an opcode number.
type InstrKind int

const (
	InstrLoadImmediate InstrKind = iota
	InstrBinaryOp
	InstrUnaryOp
	InstrCall
	InstrCallIndirect
	InstrReturn
	InstrBranch
	InstrJump
	InstrLabel
	InstrLoadVar
	InstrStoreVar
	InstrGetProperty
	InstrSetProperty
	InstrGetPropertyByNumber
	InstrSetPropertyByNumber
	InstrGetPropertyAddr
	InstrGetNextProperty
	InstrTestAttribute
	InstrSetAttribute
	InstrClearAttribute
	InstrGetObjectChild
	InstrGetObjectSibling
	InstrGetObjectParent
	InstrInsertObject
	InstrRemoveObject
	InstrPrint
	InstrPrintNum
	InstrPrintChar
	InstrNewLine
	InstrRead
	InstrArrayNew
	InstrArrayAdd
	InstrGetArrayElement
	InstrArrayLength
)

// Instruction carries every field any InstrKind might need. Unused fields
// are zero for a given Kind; Target/Args name IR ids, not runtime locations
// - lowering (component F) decides where each Id actually lives.
type Instruction struct {
	Kind InstrKind

	Target Id    // destination IrId, for instructions that produce a value
	HasTarget bool

	Value Value // LoadImmediate

	Op    BinOp // BinaryOp
	UOp   UnOp  // UnaryOp
	Lhs   Id
	Rhs   Id
	Src   Id

	Function Id   // Call
	FuncAddr Id   // CallIndirect
	Args     []Id

	ReturnValue    Id // Return
	HasReturnValue bool

	Condition  Id // Branch
	TrueLabel  Id
	FalseLabel Id

	JumpLabel Id // Jump
	LabelId   Id // Label

	Var Id // LoadVar/StoreVar
	StoreValue Id

	Object       Id // object/property ops
	Property     Id
	PropertyNum  uint8
	StoreVal     Id

	Text string // Print (compile-time constant) or StringRef via Value
	StringId Id
	HasStringId bool

	ArrayId  Id // array ops
	MaxLen   int
	ElemIdx  Id
	ElemVal  Id
}

type Block []Instruction

type Function struct {
	Id         Id
	Name       string
	Params     []Id
	Locals     []Id // local_count <= 15, enforced by lowering
	Body       Block
}

type PropertyValueKind int

const (
	PropByte PropertyValueKind = iota
	PropWord
	PropBytes
	PropString
	PropDictRef
	PropFunctionRef
)

type PropertyValue struct {
	Kind     PropertyValueKind
	Byte     uint8
	Word     uint16
	Bytes    []uint8 // <= 8 bytes in V3
	StringId Id
	DictWord string
	FuncId   Id
}

// Object models IrObject. Property values live in a map, with their
// insertion order kept in a separate slice; Properties() returns them by
// descending property number, so generation order - and therefore the
// generated bytes - is deterministic across builds (§5).
type Object struct {
	Id         Id
	Identifier string
	ShortName  string
	Names      []Id // StringRef ids used as the object's noun names
	NounWords  []string // the dictionary words backing Names, for property 18

	Attributes map[uint8]bool

	propertyOrder []uint8
	properties    map[uint8]PropertyValue

	Parent  Id
	Sibling Id
	Child   Id
	HasParent, HasSibling, HasChild bool
}

// objectJSON mirrors Object's exported fields plus an ordered view of its
// unexported property map, so a Program built by a front end can round-trip
// through JSON without losing property insertion order.
type objectJSON struct {
	Id         Id
	Identifier string
	ShortName  string
	Names      []Id
	NounWords  []string
	Attributes map[uint8]bool
	Properties []struct {
		Num   uint8
		Value PropertyValue
	}
	Parent, Sibling, Child                Id
	HasParent, HasSibling, HasChild bool
}

func (o *Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(objectJSON{
		Id: o.Id, Identifier: o.Identifier, ShortName: o.ShortName,
		Names: o.Names, NounWords: o.NounWords, Attributes: o.Attributes,
		Properties: o.Properties(),
		Parent:     o.Parent, Sibling: o.Sibling, Child: o.Child,
		HasParent: o.HasParent, HasSibling: o.HasSibling, HasChild: o.HasChild,
	})
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var j objectJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*o = Object{
		Id: j.Id, Identifier: j.Identifier, ShortName: j.ShortName,
		Names: j.Names, NounWords: j.NounWords, Attributes: j.Attributes,
		properties: map[uint8]PropertyValue{},
		Parent:     j.Parent, Sibling: j.Sibling, Child: j.Child,
		HasParent: j.HasParent, HasSibling: j.HasSibling, HasChild: j.HasChild,
	}
	if o.Attributes == nil {
		o.Attributes = map[uint8]bool{}
	}
	for _, p := range j.Properties {
		o.SetProperty(p.Num, p.Value)
	}
	return nil
}

func NewObject(id Id, identifier string) *Object {
	return &Object{
		Id:         id,
		Identifier: identifier,
		Attributes: map[uint8]bool{},
		properties: map[uint8]PropertyValue{},
	}
}

// SetProperty records a property value, preserving first-insertion order so
// that a later re-set of the same number does not reorder it.
func (o *Object) SetProperty(num uint8, v PropertyValue) {
	if _, exists := o.properties[num]; !exists {
		o.propertyOrder = append(o.propertyOrder, num)
	}
	o.properties[num] = v
}

func (o *Object) Property(num uint8) (PropertyValue, bool) {
	v, ok := o.properties[num]
	return v, ok
}

// Properties returns (number, value) pairs in descending property number,
// the order the object/property generator (component D) requires on disk.
func (o *Object) Properties() []struct {
	Num   uint8
	Value PropertyValue
} {
	nums := make([]uint8, len(o.propertyOrder))
	copy(nums, o.propertyOrder)
	// insertion-sort by descending number; tables are small (<=63 entries)
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j] > nums[j-1]; j-- {
			nums[j], nums[j-1] = nums[j-1], nums[j]
		}
	}
	out := make([]struct {
		Num   uint8
		Value PropertyValue
	}, len(nums))
	for i, n := range nums {
		out[i] = struct {
			Num   uint8
			Value PropertyValue
		}{n, o.properties[n]}
	}
	return out
}

type ExitKind int

const (
	ExitRoom ExitKind = iota
	ExitBlocked
	ExitConditional
)

type ExitTarget struct {
	Kind    ExitKind
	Room    Id
	Message string
	Cond    Id
}

// Direction property numbers, fixed per §6.5 (exit_north .. exit_down,
// exit_in, exit_out). Grue's front end is expected to assign these via the
// same table so the runtime's get_exit lowering and the generator agree.
const (
	PropExitNorth     uint8 = 20
	PropExitSouth     uint8 = 21
	PropExitEast      uint8 = 22
	PropExitWest      uint8 = 23
	PropExitNortheast uint8 = 24
	PropExitNorthwest uint8 = 25
	PropExitSoutheast uint8 = 26
	PropExitSouthwest uint8 = 27
	PropExitUp        uint8 = 28
	PropExitDown      uint8 = 29
	PropExitIn        uint8 = 30
	PropExitOut       uint8 = 31

	// PropNameDictAddrs is the "property 18" convention (§4.3): the
	// big-endian concatenation of dictionary addresses for an object's
	// noun names, scanned by the parser's noun resolver.
	PropNameDictAddrs uint8 = 18
)

type Room struct {
	Object
	Exits       map[uint8]ExitTarget // keyed by the direction property number
	OnEnter     Id
	OnExit      Id
	OnLook      Id
	HasOnEnter, HasOnExit, HasOnLook bool
}

// roomJSON flattens Room's embedded Object alongside its own fields - Object
// already defines MarshalJSON/UnmarshalJSON, which Go would otherwise
// promote verbatim and use in place of Room's, silently dropping Exits and
// the on-enter/exit/look hooks.
type roomJSON struct {
	Object      *Object
	Exits       map[uint8]ExitTarget
	OnEnter     Id
	OnExit      Id
	OnLook      Id
	HasOnEnter, HasOnExit, HasOnLook bool
}

func (r *Room) MarshalJSON() ([]byte, error) {
	return json.Marshal(roomJSON{
		Object: &r.Object, Exits: r.Exits,
		OnEnter: r.OnEnter, OnExit: r.OnExit, OnLook: r.OnLook,
		HasOnEnter: r.HasOnEnter, HasOnExit: r.HasOnExit, HasOnLook: r.HasOnLook,
	})
}

func (r *Room) UnmarshalJSON(data []byte) error {
	var j roomJSON
	j.Object = &Object{}
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Room{
		Object: *j.Object, Exits: j.Exits,
		OnEnter: j.OnEnter, OnExit: j.OnExit, OnLook: j.OnLook,
		HasOnEnter: j.HasOnEnter, HasOnExit: j.HasOnExit, HasOnLook: j.HasOnLook,
	}
	if r.Exits == nil {
		r.Exits = map[uint8]ExitTarget{}
	}
	return nil
}

type TokenKind int

const (
	TokenVerb TokenKind = iota
	TokenNoun
	TokenLiteral
	TokenPreposition
)

type PatternToken struct {
	Kind    TokenKind
	Literal string
}

type GrammarPattern struct {
	Pattern []PatternToken
	Handler Id
}

type Grammar struct {
	Verb     string
	Patterns []GrammarPattern
}

// Program is the complete compilation unit a lowering pass consumes.
type Program struct {
	Functions []*Function
	Objects   []*Object
	Rooms     []*Room
	Grammars  []*Grammar
	Strings   map[Id]string // deduplicated string pool, keyed by the id assigned at intern time
	InitFunc  Id            // entry point function, run once at startup
	HasInit   bool
}

func NewProgram() *Program {
	return &Program{Strings: map[Id]string{}}
}
