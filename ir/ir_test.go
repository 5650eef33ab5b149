package ir

import (
	"encoding/json"
	"testing"
)

func TestBuilderInternDeduplicatesByContent(t *testing.T) {
	b := NewBuilder()
	a := b.Intern("north")
	c := b.Intern("north")
	d := b.Intern("south")

	if a != c {
		t.Fatalf("expected interning the same text twice to return the same id, got %d and %d", a, c)
	}
	if a == d {
		t.Fatal("expected distinct text to get distinct ids")
	}
	if len(b.Program().Strings) != 2 {
		t.Fatalf("expected 2 distinct pooled strings, got %d", len(b.Program().Strings))
	}
}

func TestBuilderNewIdIsMonotonic(t *testing.T) {
	b := NewBuilder()
	prev := b.NewId()
	for i := 0; i < 5; i++ {
		id := b.NewId()
		if id <= prev {
			t.Fatalf("expected strictly increasing ids, got %d after %d", id, prev)
		}
		prev = id
	}
}

func TestObjectPropertiesPreserveInsertionOrderPerNumberDescendingOnRead(t *testing.T) {
	o := NewObject(Id(1), "lamp")
	o.SetProperty(3, PropertyValue{Kind: PropByte, Byte: 1})
	o.SetProperty(7, PropertyValue{Kind: PropByte, Byte: 2})
	o.SetProperty(5, PropertyValue{Kind: PropByte, Byte: 3})
	// Re-setting an existing number must not reorder it.
	o.SetProperty(3, PropertyValue{Kind: PropByte, Byte: 9})

	props := o.Properties()
	var nums []uint8
	for _, p := range props {
		nums = append(nums, p.Num)
	}
	want := []uint8{7, 5, 3}
	if len(nums) != len(want) {
		t.Fatalf("got %v want %v", nums, want)
	}
	for i := range want {
		if nums[i] != want[i] {
			t.Fatalf("got %v want %v", nums, want)
		}
	}
	if props[2].Value.Byte != 9 {
		t.Fatalf("expected the re-set value to stick, got %d", props[2].Value.Byte)
	}
}

func TestObjectJSONRoundTripPreservesProperties(t *testing.T) {
	o := NewObject(Id(1), "lamp")
	o.ShortName = "brass lantern"
	o.Attributes[2] = true
	o.SetProperty(18, PropertyValue{Kind: PropBytes, Bytes: []uint8{0x01, 0x02}})
	o.SetProperty(5, PropertyValue{Kind: PropWord, Word: 0x1234})
	o.Parent, o.HasParent = Id(9), true

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Object
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ShortName != o.ShortName || got.Parent != o.Parent || !got.HasParent {
		t.Fatalf("basic fields didn't round-trip: %+v", got)
	}
	if !got.Attributes[2] {
		t.Fatal("expected attribute 2 to round-trip")
	}
	v, ok := got.Property(18)
	if !ok || len(v.Bytes) != 2 || v.Bytes[0] != 0x01 {
		t.Fatalf("expected property 18 to survive the round-trip, got %+v ok=%v", v, ok)
	}
	if _, ok := got.Property(5); !ok {
		t.Fatal("expected property 5 to survive the round-trip")
	}
}

func TestRoomJSONRoundTripPreservesOwnFieldsAlongsideEmbeddedObject(t *testing.T) {
	r := &Room{Object: *NewObject(Id(2), "kitchen"), Exits: map[uint8]ExitTarget{}}
	r.ShortName = "Kitchen"
	r.SetProperty(1, PropertyValue{Kind: PropByte, Byte: 7})
	r.Exits[PropExitNorth] = ExitTarget{Kind: ExitRoom, Room: Id(3)}
	r.OnEnter, r.HasOnEnter = Id(42), true

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Room
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ShortName != "Kitchen" {
		t.Fatalf("expected the embedded Object's ShortName to round-trip, got %q", got.ShortName)
	}
	if _, ok := got.Property(1); !ok {
		t.Fatal("expected the embedded Object's property to round-trip")
	}
	exit, ok := got.Exits[PropExitNorth]
	if !ok || exit.Room != Id(3) {
		t.Fatalf("expected Room's own Exits field to survive the round-trip, got %+v ok=%v", exit, ok)
	}
	if !got.HasOnEnter || got.OnEnter != Id(42) {
		t.Fatalf("expected OnEnter to survive the round-trip, got %+v", got)
	}
}

func TestProgramJSONRoundTripPreservesIntegerKeyedStringPool(t *testing.T) {
	prog := NewProgram()
	prog.Strings[Id(7)] = "hello"
	prog.Strings[Id(3)] = "world"

	data, err := json.Marshal(prog)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Program
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Strings[Id(7)] != "hello" || got.Strings[Id(3)] != "world" {
		t.Fatalf("expected the integer-keyed string pool to round-trip, got %v", got.Strings)
	}
}
