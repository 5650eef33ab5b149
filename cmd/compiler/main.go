// Command compiler translates a compiled Grue intermediate-representation
// file into a Z-machine story file. Grue's own lexer/parser/semantic
// analyzer sit upstream of this tool and aren't implemented here; in their
// place this command accepts the IR directly as JSON, the same Program
// value a front end would otherwise construct via ir.Builder.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gruetools/grue/compiler"
	"github.com/gruetools/grue/ir"
)

var (
	sourcePath string
	outPath    string
	version    string
)

func init() {
	flag.StringVar(&sourcePath, "ir", "", "path to a JSON-encoded ir.Program (the front end's output)")
	flag.StringVar(&outPath, "o", "", "output story file path (defaults to the input path with its extension replaced by .z<version>)")
	flag.StringVar(&version, "version", "v3", "target Z-machine version: v3, v4 or v5")
	flag.Parse()
}

func main() {
	if sourcePath == "" {
		fmt.Fprintln(os.Stderr, "compiler: -ir is required")
		os.Exit(1)
	}

	v, err := parseVersion(version)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compiler:", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compiler: reading IR:", err)
		os.Exit(1)
	}

	var prog ir.Program
	if err := json.Unmarshal(raw, &prog); err != nil {
		fmt.Fprintln(os.Stderr, "compiler: parsing IR:", err)
		os.Exit(1)
	}

	out, err := compiler.Compile(&prog, compiler.Options{Version: v})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compiler:", err)
		os.Exit(1)
	}

	dest := outPath
	if dest == "" {
		dest = defaultOutputPath(sourcePath, v)
	}
	if err := os.WriteFile(dest, out, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "compiler: writing story file:", err)
		os.Exit(1)
	}
}

func parseVersion(s string) (uint8, error) {
	switch s {
	case "v3", "3":
		return 3, nil
	case "v4", "4":
		return 4, nil
	case "v5", "5":
		return 5, nil
	default:
		return 0, fmt.Errorf("unsupported -version %q (expected v3, v4 or v5)", s)
	}
}

func defaultOutputPath(sourcePath string, version uint8) string {
	base := sourcePath
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
		if base[i] == '/' {
			break
		}
	}
	return fmt.Sprintf("%s.z%d", base, version)
}
