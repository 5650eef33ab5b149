// Command disassembler prints a linear instruction trace of a Z-machine
// story file starting at its initial PC (or an address supplied on the
// command line). It doesn't attempt routine discovery - see disasm's package
// doc for why that's out of scope here.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gruetools/grue/disasm"
	"github.com/gruetools/grue/zcore"
)

var (
	romFilePath string
	startAddr   uint
	maxInstr    int
)

func init() {
	flag.StringVar(&romFilePath, "rom", "", "path to a Z-machine story file")
	flag.UintVar(&startAddr, "addr", 0, "address to start decoding from (defaults to the story's initial PC)")
	flag.IntVar(&maxInstr, "n", 1000, "maximum number of instructions to print")
	flag.Parse()
}

func main() {
	if romFilePath == "" {
		fmt.Fprintln(os.Stderr, "disassembler: -rom is required")
		os.Exit(1)
	}

	romBytes, err := os.ReadFile(romFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "disassembler: reading rom:", err)
		os.Exit(1)
	}

	core := zcore.LoadCore(romBytes)

	addr := uint32(startAddr)
	if startAddr == 0 {
		addr = uint32(core.FirstInstruction)
	}

	for _, instr := range disasm.Disassemble(&core, addr, maxInstr) {
		fmt.Println(instr)
	}
}
