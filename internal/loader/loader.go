// Package loader reads a program image off disk and copies it into a
// mem.Memory. The image format is a raw little-endian word stream, not an
// object format (spec.md §6): no ELF, no headers, no relocation.
//
// Grounded on original_source/src/main.rs's run(): open the file, check
// its length is word-aligned, read it word-by-word into Memory starting
// at offset 0.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// ErrNotWordAligned is returned when the image length is not a multiple
// of 4 bytes.
var ErrNotWordAligned = fmt.Errorf("loader: image length is not word-aligned")

// Load reads path and writes its contents into m starting at byte offset
// 0, one little-endian word at a time. It fails if the image does not
// fit in m or its length is not a multiple of 4.
func Load(path string, m *mem.Memory) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loader: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("loader: stat %s: %w", path, err)
	}
	size := int(info.Size())
	if size%int(mem.WORD) != 0 {
		return fmt.Errorf("%w: %s is %d bytes", ErrNotWordAligned, path, size)
	}

	var buf [4]byte
	for addr := 0; addr < size; addr += int(mem.WORD) {
		if _, err := io.ReadFull(f, buf[:]); err != nil {
			return fmt.Errorf("loader: reading %s at offset %d: %w", path, addr, err)
		}
		w := word.Word(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
		if err := m.Write(addr, w, mem.WORD); err != nil {
			return fmt.Errorf("loader: writing %s at offset %d: %w", path, addr, err)
		}
	}
	return nil
}
