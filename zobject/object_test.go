package zobject_test

import (
	"testing"

	"github.com/gruetools/grue/zcore"
	"github.com/gruetools/grue/zobject"
	"github.com/gruetools/grue/zstring"
)

// buildV3Story assembles a minimal V3 object table by hand: property
// defaults table at 0x40, a single object entry at 0x7e (31 words further
// on), and its property list at 0x90. Attributes 2, 3 and 19 are set on the
// object; property 9 is absent so it falls back to the per-story default
// at word index 8 (0x50).
func buildV3Story() (*zcore.Core, *zstring.Alphabets) {
	buf := make([]uint8, 0x200)
	buf[0] = 3                     // version
	buf[0x0a], buf[0x0b] = 0x00, 0x40 // object table base
	buf[0x0e], buf[0x0f] = 0x02, 0x00 // static memory base: the whole buffer is dynamic

	// Property defaults table: 31 words starting at 0x40.
	buf[0x50], buf[0x51] = 0x00, 0x05 // default for property 9 (index 8)

	// Object 1 at 0x7e: attributes 2, 3, 19 set; parent 5, sibling 6, child 0;
	// property pointer -> 0x90.
	objBase := 0x7e
	buf[objBase+0] = 0x30 // attr 2, attr 3
	buf[objBase+1] = 0x00
	buf[objBase+2] = 0x10 // attr 19
	buf[objBase+3] = 0x00
	buf[objBase+4] = 5 // parent
	buf[objBase+5] = 6 // sibling
	buf[objBase+6] = 0 // child
	buf[objBase+7] = 0x00
	buf[objBase+8] = 0x90 // property pointer

	// Property table at 0x90: no short name, then property 11 (len 2),
	// property 6 (len 1), terminator.
	buf[0x90] = 0 // name length in words
	buf[0x91] = (2-1)<<5 | 11
	buf[0x92] = 0x88
	buf[0x93] = 0xe5
	buf[0x94] = (1-1)<<5 | 6
	buf[0x95] = 0x85
	buf[0x96] = 0x00

	core := zcore.LoadCore(buf)
	alphabets := zstring.LoadAlphabets(&core)
	return &core, alphabets
}

func TestZerothObjectRetrieval(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Retrieving object with id 0 should panic")
		}
	}()

	core, alphabets := buildV3Story()
	zobject.GetObject(0, core, alphabets)
}

func TestObjectRetrieval(t *testing.T) {
	core, alphabets := buildV3Story()
	obj := zobject.GetObject(1, core, alphabets)

	if obj.Parent != 5 {
		t.Errorf("Incorrect parent %d", obj.Parent)
	}
	if obj.Sibling != 6 {
		t.Errorf("Incorrect sibling %d", obj.Sibling)
	}
	if obj.Child != 0 {
		t.Errorf("Incorrect child %d", obj.Child)
	}
	if obj.PropertyPointer != 0x90 {
		t.Errorf("Incorrect property pointer %x", obj.PropertyPointer)
	}
}

func TestPropertyRetrieval(t *testing.T) {
	core, alphabets := buildV3Story()
	obj := zobject.GetObject(1, core, alphabets)

	prop6 := obj.GetProperty(6, core)
	if prop6.Length != 1 {
		t.Errorf("Incorrect property length %d", prop6.Length)
	}
	if prop6.Data[0] != 0x85 {
		t.Errorf("Incorrect property data %x", prop6.Data[0])
	}

	prop11 := obj.GetProperty(11, core)
	if prop11.Length != 2 {
		t.Errorf("Incorrect property length %d", prop11.Length)
	}
	if prop11.Data[0] != 0x88 || prop11.Data[1] != 0xe5 {
		t.Errorf("Incorrect property data %x%x", prop11.Data[0], prop11.Data[1])
	}

	// Non-existent property, no default data set: falls back to a zeroed
	// default entry with no data address.
	prop1 := obj.GetProperty(1, core)
	if prop1.DataAddress != 0 {
		t.Error("Property 1 shouldn't exist on object 1")
	}

	// Non-existent property that does have default data.
	prop9 := obj.GetProperty(9, core)
	if prop9.DataAddress != 0 {
		t.Error("Property 9 shouldn't exist on object 1")
	}
	if prop9.Data[0] != 0x00 || prop9.Data[1] != 0x05 {
		t.Errorf("Incorrect property data %x%x", prop9.Data[0], prop9.Data[1])
	}
}

func TestAttributesV3(t *testing.T) {
	core, alphabets := buildV3Story()
	obj := zobject.GetObject(1, core, alphabets)

	if obj.TestAttribute(1) || obj.TestAttribute(4) || obj.TestAttribute(10) {
		t.Error("object should not have attributes 1, 4, 10 set")
	}
	if !(obj.TestAttribute(2) && obj.TestAttribute(3) && obj.TestAttribute(19)) {
		t.Error("object should have attributes 2, 3, 19 set")
	}

	obj.SetAttribute(10, core)
	if !obj.TestAttribute(10) {
		t.Error("setting attribute 10 didn't work")
	}

	obj.ClearAttribute(10, core)
	if obj.TestAttribute(10) {
		t.Error("clearing attribute 10 didn't work")
	}
}
