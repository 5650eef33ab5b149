package zobject

import (
	"fmt"

	"github.com/gruetools/grue/zcore"
)

type Property struct {
	Id                   uint8
	Length               uint8
	Data                 []uint8
	PropertyHeaderLength uint8
	Address              uint32
	DataAddress          uint32
}

// GetPropertyLength is requested by the address of the first byte of a
// property's data. It works backward from that address to the size
// byte(s) that precede it, per the version-dependent size/number encodings
// in 12.4.
func GetPropertyLength(core *zcore.Core, addr uint32) uint16 {
	if addr == 0 {
		return 0 // required by get_prop_len called with address 0
	}

	prevByte := core.ReadByte(addr - 1)
	if core.Version <= 3 {
		return uint16(prevByte>>5) + 1
	}
	if prevByte&0b1000_0000 != 0 {
		length := prevByte & 0b11_1111
		if length == 0 {
			return 64 // [1.0]: a 0 data-length byte means 64
		}
		return uint16(length)
	}
	return uint16(((prevByte >> 6) & 1) + 1)
}

func (o *Object) propertyTableStart(core *zcore.Core) uint32 {
	nameLength := core.ReadByte(uint32(o.PropertyPointer))
	return uint32(o.PropertyPointer) + 1 + uint32(nameLength)*2
}

func (o *Object) SetProperty(propertyId uint8, value uint16, core *zcore.Core) {
	currentPtr := o.propertyTableStart(core)

	for core.ReadByte(currentPtr) != 0 {
		property := o.GetPropertyByAddress(currentPtr, core)

		if property.Id == propertyId {
			switch property.Length {
			case 1:
				core.WriteByte(currentPtr+uint32(property.PropertyHeaderLength), uint8(value))
			case 2:
				core.WriteHalfWord(currentPtr+uint32(property.PropertyHeaderLength), value)
			default:
				panic(fmt.Sprintf("invalid property length %d, can't set value", property.Length))
			}
			return
		}

		currentPtr += uint32(property.Length) + uint32(property.PropertyHeaderLength)
	}

	panic(fmt.Sprintf("invalid property (%d) requested for object (%d)", propertyId, o.Id))
}

func (o *Object) GetProperty(propertyId uint8, core *zcore.Core) Property {
	currentPtr := o.propertyTableStart(core)

	for core.ReadByte(currentPtr) != 0 {
		property := o.GetPropertyByAddress(currentPtr, core)

		if property.Id == propertyId {
			return property
		}

		currentPtr += uint32(property.Length) + uint32(property.PropertyHeaderLength)
	}

	// Not found on the object: fall back to the table of per-story defaults,
	// indexed by (propertyId - 1) per S4.3.
	defaultAddr := uint32(core.ObjectTableBase) + 2*uint32(propertyId-1)
	return Property{
		Id:   propertyId,
		Data: core.ReadSlice(defaultAddr, defaultAddr+2),
	}
}

func (o *Object) GetPropertyByAddress(propertyAddr uint32, core *zcore.Core) Property {
	sizeByte := core.ReadByte(propertyAddr)
	length := (sizeByte >> 5) + 1
	id := sizeByte & 0b1_1111
	headerLength := uint8(1)

	if core.Version >= 4 {
		if sizeByte>>7 == 1 {
			length = core.ReadByte(propertyAddr+1) & 0b11_1111
			if length == 0 {
				length = 64 // [1.0]
			}
			id = sizeByte & 0b11_1111
			headerLength = 2
		} else {
			length = ((sizeByte >> 6) & 1) + 1
			id = sizeByte & 0b11_1111
		}
	}

	dataAddress := propertyAddr + uint32(headerLength)

	return Property{
		Id:                   id,
		Length:               length,
		Data:                 core.ReadSlice(dataAddress, dataAddress+uint32(length)),
		PropertyHeaderLength: headerLength,
		Address:              propertyAddr,
		DataAddress:          dataAddress,
	}
}

func (o *Object) GetNextProperty(propertyId uint8, core *zcore.Core) uint8 {
	if propertyId == 0 {
		currentPtr := o.propertyTableStart(core)
		if core.ReadByte(currentPtr) == 0 {
			return 0
		}
		return o.GetPropertyByAddress(currentPtr, core).Id
	}

	property := o.GetProperty(propertyId, core)
	if property.DataAddress == 0 {
		panic(fmt.Sprintf("get_next_prop called with invalid property id (object %d, prop %d)", o.Id, propertyId))
	}

	nextPropertyPtr := property.DataAddress + uint32(property.Length)
	return o.GetPropertyByAddress(nextPropertyPtr, core).Id
}
