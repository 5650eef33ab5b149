package zstring

import "github.com/gruetools/grue/zcore"

// FindAbbreviation decodes the abbreviation string referenced by the pair of
// z-chars (z, x) that follow an abbreviation-escape z-char: table index
// 32*(z-1)+x (S3.3), a word address pointing at the abbreviation's own
// Z-string.
func FindAbbreviation(core *zcore.Core, alphabets *Alphabets, z uint8, x uint8) string {
	abbrIx := uint16(32*(z-1) + x)
	addr := uint32(core.AbbreviationTableBase) + 2*uint32(abbrIx)
	strAddr := 2 * uint32(core.ReadHalfWord(addr))

	str, _ := Decode(strAddr, core.MemoryLength(), core, alphabets, true)

	return str
}
