// Package zobject decodes and mutates the Z-machine object table: the
// attribute flags, parent/sibling/child tree and property list that make up
// every in-game object. The shape of an entry (9 bytes/31 attributes/32
// properties in V3, 14 bytes/48 attributes/63 properties in V4+) is fixed by
// the story's version, so every accessor here branches on it once and then
// works in terms of a flat byte offset from the object's base address.
package zobject

import (
	"encoding/binary"

	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zstring"
)

type Object struct {
	BaseAddress     uint32
	Id              uint16
	Name            string
	Attributes      uint64 // Bytes 0-3 are valid in all versions, 4-5 only in V4+
	Parent          uint16 // uint8 on v1-3
	Sibling         uint16 // uint8 on v1-3
	Child           uint16 // uint8 on v1-3
	PropertyPointer uint16
}

// GetObject decodes the object table entry for objId. Object 0 is never a
// valid object (it's the "no object" sentinel used by Parent/Sibling/Child),
// so requesting it is an invariant violation, not a recoverable condition.
func GetObject(objId uint16, core *zcore.Core, alphabets *zstring.Alphabets) Object {
	if objId == 0 {
		panic("object 0 does not exist")
	}

	base := core.ObjectTableBase
	version := core.Version

	if version >= 4 {
		objectBase := uint32(base) + 63*2 + uint32(objId-1)*14
		raw := core.ReadSlice(objectBase, objectBase+8)
		propertyPtr := core.ReadHalfWord(objectBase + 12)

		return Object{
			Id:              objId,
			Name:            readObjectName(core, alphabets, propertyPtr),
			Attributes:      (binary.BigEndian.Uint64(raw) >> 16) << 16,
			Parent:          core.ReadHalfWord(objectBase + 6),
			Sibling:         core.ReadHalfWord(objectBase + 8),
			Child:           core.ReadHalfWord(objectBase + 10),
			PropertyPointer: propertyPtr,
			BaseAddress:     objectBase,
		}
	}

	objectBase := uint32(base) + 31*2 + uint32(objId-1)*9
	raw := core.ReadSlice(objectBase, objectBase+8)
	propertyPtr := core.ReadHalfWord(objectBase + 7)

	return Object{
		Id:              objId,
		Name:            readObjectName(core, alphabets, propertyPtr),
		Attributes:      (binary.BigEndian.Uint64(raw) >> 32) << 32,
		Parent:          uint16(core.ReadByte(objectBase + 4)),
		Sibling:         uint16(core.ReadByte(objectBase + 5)),
		Child:           uint16(core.ReadByte(objectBase + 6)),
		PropertyPointer: propertyPtr,
		BaseAddress:     objectBase,
	}
}

func readObjectName(core *zcore.Core, alphabets *zstring.Alphabets, propertyPtr uint16) string {
	nameLength := core.ReadByte(uint32(propertyPtr))
	if nameLength == 0 {
		return ""
	}
	name, _ := zstring.Decode(uint32(propertyPtr)+1, core.MemoryLength(), core, alphabets, false)
	return name
}

func (o *Object) TestAttribute(attribute uint16) bool {
	mask := uint64(1) << (63 - attribute)
	return (o.Attributes & mask) == mask
}

func (o *Object) SetAttribute(attribute uint16, core *zcore.Core) {
	mask := uint64(1) << (63 - attribute)
	o.Attributes |= mask
	o.writeAttributes(core)
}

func (o *Object) ClearAttribute(attribute uint16, core *zcore.Core) {
	mask := uint64(1) << (63 - attribute)
	o.Attributes &^= mask
	o.writeAttributes(core)
}

func (o *Object) writeAttributes(core *zcore.Core) {
	core.WriteWord(o.BaseAddress, uint32(o.Attributes>>32))
	if core.Version >= 4 {
		core.WriteHalfWord(o.BaseAddress+4, uint16(o.Attributes>>16))
	}
}

func (o *Object) SetParent(parent uint16, core *zcore.Core) {
	if core.Version >= 4 {
		core.WriteHalfWord(o.BaseAddress+6, parent)
	} else {
		core.WriteByte(o.BaseAddress+4, uint8(parent))
	}
	o.Parent = parent
}

func (o *Object) SetSibling(sibling uint16, core *zcore.Core) {
	if core.Version >= 4 {
		core.WriteHalfWord(o.BaseAddress+8, sibling)
	} else {
		core.WriteByte(o.BaseAddress+5, uint8(sibling))
	}
	o.Sibling = sibling
}

func (o *Object) SetChild(child uint16, core *zcore.Core) {
	if core.Version >= 4 {
		core.WriteHalfWord(o.BaseAddress+10, child)
	} else {
		core.WriteByte(o.BaseAddress+6, uint8(child))
	}
	o.Child = child
}
