package compiler

import (
	"strings"
	"testing"

	"github.com/gruetools/grue/gametest"
	"github.com/gruetools/grue/ir"
	"github.com/gruetools/grue/objgen"
)

const (
	openableAttr uint8 = 5
	openAttr     uint8 = 6
)

// verbDispatchProgram builds "verb open { noun => handle_open($1); }" over
// a mailbox (openable, closed) and a leaflet, by hand - the same way
// smallProgram assembles a fixture without a front end.
func verbDispatchProgram() *ir.Program {
	prog := ir.NewProgram()

	mailbox := ir.NewObject(ir.Id(20), "mailbox")
	mailbox.ShortName = "small mailbox"
	mailbox.NounWords = []string{"mailbox"}
	mailbox.Attributes[openableAttr] = true

	leaflet := ir.NewObject(ir.Id(21), "leaflet")
	leaflet.ShortName = "leaflet"
	leaflet.NounWords = []string{"leaflet"}

	prog.Objects = []*ir.Object{mailbox, leaflet}

	const openedStringId ir.Id = 90
	prog.Strings[openedStringId] = "Opened."

	const nounParam ir.Id = 61
	const condTmp ir.Id = 70
	const trueLabel ir.Id = 80
	const falseLabel ir.Id = 81
	const joinLabel ir.Id = 82

	handleOpen := &ir.Function{
		Id:     ir.Id(60),
		Name:   "handle_open",
		Params: []ir.Id{nounParam},
		Body: ir.Block{
			{Kind: ir.InstrTestAttribute, Target: condTmp, HasTarget: true, Object: nounParam, PropertyNum: openableAttr},
			{Kind: ir.InstrBranch, Condition: condTmp, TrueLabel: trueLabel, FalseLabel: falseLabel},
			{Kind: ir.InstrLabel, LabelId: trueLabel},
			{Kind: ir.InstrSetAttribute, Object: nounParam, PropertyNum: openAttr},
			{Kind: ir.InstrPrint, StringId: openedStringId},
			{Kind: ir.InstrNewLine},
			{Kind: ir.InstrJump, JumpLabel: joinLabel},
			{Kind: ir.InstrLabel, LabelId: falseLabel},
			{Kind: ir.InstrLabel, LabelId: joinLabel},
			{Kind: ir.InstrReturn, HasReturnValue: false},
		},
	}

	initFunc := &ir.Function{
		Id:   ir.Id(50),
		Name: "init",
		Body: ir.Block{
			{Kind: ir.InstrReturn, HasReturnValue: false},
		},
	}

	prog.Functions = []*ir.Function{initFunc, handleOpen}
	prog.InitFunc = initFunc.Id
	prog.HasInit = true

	openGrammar := &ir.Grammar{
		Verb: "open",
		Patterns: []ir.GrammarPattern{
			{
				Pattern: []ir.PatternToken{
					{Kind: ir.TokenVerb},
					{Kind: ir.TokenNoun},
				},
				Handler: handleOpen.Id,
			},
		},
	}
	prog.Grammars = []*ir.Grammar{openGrammar}

	return prog
}

// TestVerbDispatchWithNounOpensMailbox exercises scenario 4 end to end:
// "open mailbox" reaches the noun resolver, which walks the object table
// from object 1 and finds the mailbox by its property-18 dictionary-address
// list, calls handle_open with it, and the handler's test_attr/set_attr/
// print sequence produces "Opened." on the screen.
func TestVerbDispatchWithNounOpensMailbox(t *testing.T) {
	img, err := Compile(verbDispatchProgram(), Options{
		Version:          3,
		DictionaryExtras: []objgen.DictionaryWord{{Text: "open"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := gametest.RunWithInputs("verbDispatch.z3", img, []string{"open mailbox"}, gametest.DefaultTimeout)
	if !result.Success {
		t.Fatalf("expected the compiled image to run cleanly, got panic=%q error=%q", result.PanicMessage, result.ErrorMessage)
	}

	joined := strings.Join(result.FirstScreen, "\n")
	if !strings.Contains(joined, "Opened.") {
		t.Fatalf("expected \"Opened.\" in the captured output, got %q", joined)
	}
	if strings.Contains(joined, "don't understand") {
		t.Fatalf("expected the verb pattern to match instead of falling back, got %q", joined)
	}
}
