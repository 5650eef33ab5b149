package ir

// Builder assigns monotonically increasing Ids and interns strings by
// content, standing in for the front end described in §6.4 so tests and
// other tooling can construct a Program directly in Go (the same way
// zobject_test.go builds object-table fixtures by hand instead of parsing a
// story file end to end).
type Builder struct {
	next    Id
	program *Program
	byText  map[string]Id
}

func NewBuilder() *Builder {
	return &Builder{next: 1, program: NewProgram(), byText: map[string]Id{}}
}

func (b *Builder) NewId() Id {
	id := b.next
	b.next++
	return id
}

// Intern deduplicates a string by content (§4.2): the same text always
// yields the same Id, so every use site shares one StringRef unresolved
// reference target.
func (b *Builder) Intern(text string) Id {
	if id, ok := b.byText[text]; ok {
		return id
	}
	id := b.NewId()
	b.program.Strings[id] = text
	b.byText[text] = id
	return id
}

func (b *Builder) NewFunction(name string) *Function {
	f := &Function{Id: b.NewId(), Name: name}
	b.program.Functions = append(b.program.Functions, f)
	return f
}

func (b *Builder) NewObject(identifier string) *Object {
	o := NewObject(b.NewId(), identifier)
	b.program.Objects = append(b.program.Objects, o)
	return o
}

func (b *Builder) NewRoom(identifier string) *Room {
	r := &Room{Object: *NewObject(b.NewId(), identifier), Exits: map[uint8]ExitTarget{}}
	b.program.Rooms = append(b.program.Rooms, r)
	return r
}

func (b *Builder) NewGrammar(verb string) *Grammar {
	g := &Grammar{Verb: verb}
	b.program.Grammars = append(b.program.Grammars, g)
	return g
}

func (f *Function) NewLocal(b *Builder) Id {
	id := b.NewId()
	f.Locals = append(f.Locals, id)
	return id
}

func (b *Builder) Program() *Program {
	return b.program
}

// Append helpers - one per InstrKind - keep call sites in lowering/tests
// terse and avoid hand-filling irrelevant struct fields.

func (f *Function) Emit(instr Instruction) {
	f.Body = append(f.Body, instr)
}

func LoadImmediate(target Id, v Value) Instruction {
	return Instruction{Kind: InstrLoadImmediate, Target: target, HasTarget: true, Value: v}
}

func BinaryOp(target Id, op BinOp, lhs, rhs Id) Instruction {
	return Instruction{Kind: InstrBinaryOp, Target: target, HasTarget: true, Op: op, Lhs: lhs, Rhs: rhs}
}

func UnaryOp(target Id, op UnOp, src Id) Instruction {
	return Instruction{Kind: InstrUnaryOp, Target: target, HasTarget: true, UOp: op, Src: src}
}

func CallFunc(target Id, hasTarget bool, function Id, args []Id) Instruction {
	return Instruction{Kind: InstrCall, Target: target, HasTarget: hasTarget, Function: function, Args: args}
}

func CallIndirect(target Id, hasTarget bool, funcAddr Id, args []Id) Instruction {
	return Instruction{Kind: InstrCallIndirect, Target: target, HasTarget: hasTarget, FuncAddr: funcAddr, Args: args}
}

func Return(value Id, hasValue bool) Instruction {
	return Instruction{Kind: InstrReturn, ReturnValue: value, HasReturnValue: hasValue}
}

func BranchOn(condition, trueLabel, falseLabel Id) Instruction {
	return Instruction{Kind: InstrBranch, Condition: condition, TrueLabel: trueLabel, FalseLabel: falseLabel}
}

func JumpTo(label Id) Instruction {
	return Instruction{Kind: InstrJump, JumpLabel: label}
}

func LabelAt(id Id) Instruction {
	return Instruction{Kind: InstrLabel, LabelId: id}
}

func LoadVar(target, v Id) Instruction {
	return Instruction{Kind: InstrLoadVar, Target: target, HasTarget: true, Var: v}
}

func StoreVar(v, value Id) Instruction {
	return Instruction{Kind: InstrStoreVar, Var: v, StoreValue: value}
}

func GetProperty(target, object, property Id) Instruction {
	return Instruction{Kind: InstrGetProperty, Target: target, HasTarget: true, Object: object, Property: property}
}

func SetProperty(object, property, value Id) Instruction {
	return Instruction{Kind: InstrSetProperty, Object: object, Property: property, StoreVal: value}
}

func GetPropertyByNumber(target, object Id, num uint8) Instruction {
	return Instruction{Kind: InstrGetPropertyByNumber, Target: target, HasTarget: true, Object: object, PropertyNum: num}
}

func SetPropertyByNumber(object Id, num uint8, value Id) Instruction {
	return Instruction{Kind: InstrSetPropertyByNumber, Object: object, PropertyNum: num, StoreVal: value}
}

func GetPropertyAddr(target, object Id, num uint8) Instruction {
	return Instruction{Kind: InstrGetPropertyAddr, Target: target, HasTarget: true, Object: object, PropertyNum: num}
}

func GetNextProperty(target, object Id, num uint8) Instruction {
	return Instruction{Kind: InstrGetNextProperty, Target: target, HasTarget: true, Object: object, PropertyNum: num}
}

func TestAttribute(target, object Id, num uint8) Instruction {
	return Instruction{Kind: InstrTestAttribute, Target: target, HasTarget: true, Object: object, PropertyNum: num}
}

func SetAttribute(object Id, num uint8) Instruction {
	return Instruction{Kind: InstrSetAttribute, Object: object, PropertyNum: num}
}

func ClearAttribute(object Id, num uint8) Instruction {
	return Instruction{Kind: InstrClearAttribute, Object: object, PropertyNum: num}
}

func GetObjectChild(target, object Id) Instruction {
	return Instruction{Kind: InstrGetObjectChild, Target: target, HasTarget: true, Object: object}
}

func GetObjectSibling(target, object Id) Instruction {
	return Instruction{Kind: InstrGetObjectSibling, Target: target, HasTarget: true, Object: object}
}

func GetObjectParent(target, object Id) Instruction {
	return Instruction{Kind: InstrGetObjectParent, Target: target, HasTarget: true, Object: object}
}

func InsertObject(object, destination Id) Instruction {
	return Instruction{Kind: InstrInsertObject, Object: object, StoreVal: destination}
}

func RemoveObject(object Id) Instruction {
	return Instruction{Kind: InstrRemoveObject, Object: object}
}

func Print(stringId Id) Instruction {
	return Instruction{Kind: InstrPrint, StringId: stringId, HasStringId: true}
}

func PrintNum(value Id) Instruction {
	return Instruction{Kind: InstrPrintNum, Src: value}
}

func PrintChar(value Id) Instruction {
	return Instruction{Kind: InstrPrintChar, Src: value}
}

func NewLine() Instruction {
	return Instruction{Kind: InstrNewLine}
}

func Read(textBuffer, parseBuffer Id) Instruction {
	return Instruction{Kind: InstrRead, Lhs: textBuffer, Rhs: parseBuffer}
}

func ArrayNew(arrayId Id, maxLen int) Instruction {
	return Instruction{Kind: InstrArrayNew, ArrayId: arrayId, MaxLen: maxLen}
}

func ArrayAdd(arrayId, value Id) Instruction {
	return Instruction{Kind: InstrArrayAdd, ArrayId: arrayId, ElemVal: value}
}

func GetArrayElement(target, arrayId, index Id) Instruction {
	return Instruction{Kind: InstrGetArrayElement, Target: target, HasTarget: true, ArrayId: arrayId, ElemIdx: index}
}

func ArrayLength(target, arrayId Id) Instruction {
	return Instruction{Kind: InstrArrayLength, Target: target, HasTarget: true, ArrayId: arrayId}
}
