package compiler

import (
	"testing"

	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/objgen"
	"github.com/gruetools/grue/zcore"
)

func smallProgram() *ir.Program {
	prog := ir.NewProgram()

	lamp := ir.NewObject(ir.Id(1), "lamp")
	lamp.ShortName = "brass lantern"
	lamp.NounWords = []string{"lamp", "lantern"}
	prog.Objects = []*ir.Object{lamp}

	target := ir.Id(10)
	f := &ir.Function{
		Id:   ir.Id(100),
		Name: "main",
		Body: ir.Block{
			{Kind: ir.InstrLoadImmediate, Target: target, Value: ir.Int(1)},
			{Kind: ir.InstrPrintNum, Src: target},
			{Kind: ir.InstrReturn, HasReturnValue: false},
		},
	}
	prog.Functions = []*ir.Function{f}
	prog.InitFunc = f.Id
	prog.HasInit = true

	return prog
}

func TestCompileRejectsUnsupportedVersion(t *testing.T) {
	_, err := Compile(smallProgram(), Options{Version: 6})
	if err == nil {
		t.Fatal("expected an error compiling for an unsupported version")
	}
}

func TestCompileProducesAParsableStoryFile(t *testing.T) {
	img, err := Compile(smallProgram(), Options{Version: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(img) == 0 {
		t.Fatal("expected a non-empty story file")
	}

	core := zcore.LoadCore(img)
	if core.Version != 3 {
		t.Fatalf("expected version 3, got %d", core.Version)
	}
	if core.FirstInstruction == 0 {
		t.Fatal("expected a non-zero initial PC for a program with an init function")
	}
}

func TestCollectDictionaryWordsDeduplicatesAcrossObjectsAndExtras(t *testing.T) {
	prog := smallProgram()
	words := collectDictionaryWords(prog, []objgen.DictionaryWord{{Text: "lamp"}, {Text: "take"}})

	count := 0
	for _, w := range words {
		if w.Text == "lamp" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected \"lamp\" to appear exactly once after dedup, got %d", count)
	}
	foundTake := false
	for _, w := range words {
		if w.Text == "take" {
			foundTake = true
		}
	}
	if !foundTake {
		t.Fatal("expected the extra dictionary word \"take\" to survive collection")
	}
}
