package compiler

import (
	"strings"
	"testing"

	"github.com/gruetools/grue/gametest"
)

// TestCompileThenRunReachesFirstScreen is the interpreter-side half of the
// back-end's own round-trip check: compile a small program straight to
// bytes and feed those bytes to the same harness cmd/gametest drives real
// story files through, rather than just parsing the header back out.
func TestCompileThenRunReachesFirstScreen(t *testing.T) {
	img, err := Compile(smallProgram(), Options{Version: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := gametest.RunBytes("smallProgram.z3", img, gametest.DefaultTimeout)
	if !result.Success {
		t.Fatalf("expected the compiled image to run cleanly, got panic=%q error=%q", result.PanicMessage, result.ErrorMessage)
	}

	joined := strings.Join(result.FirstScreen, "\n")
	if !strings.Contains(joined, "1") {
		t.Fatalf("expected the printed number 1 somewhere in the captured output, got %q", joined)
	}
}
