package dwarf

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/exp/slices"
)

// ehFrameHdrEntry is one row of the binary-search table .eh_frame_hdr
// carries: an initial-location pc and the byte offset (within .eh_frame)
// of the FDE covering it. This mirrors the table format emitted by the
// GNU linker for the eh_frame_hdr augmentation, restricted (as
// cie_fde.go documents) to absolute 4-byte pc values and 4-byte
// .eh_frame offsets -- the "native" encoding a from-scratch loader is
// free to choose, rather than the typical pc-relative sdata4 the system
// linker emits to save space.
type ehFrameHdrEntry struct {
	pc        uint32
	fdeOffset uint32
}

type ehFrameHdrTable struct {
	entries []ehFrameHdrEntry
}

// parseEhFrameHdr reads the fixed 4-byte header (version, eh_frame_ptr
// encoding, fde_count encoding, table encoding) followed by the binary
// search table. The version must be 1 and the table encoding 0x03 or
// 0x0b; the eh_frame_ptr and fde_count encodings are not checked, and
// both fields are read as plain 4-byte values since this port doesn't
// resolve pointer encodings (see cie_fde.go).
func parseEhFrameHdr(data []byte) (*ehFrameHdrTable, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dwarf: eh_frame_hdr too short")
	}
	version := data[0]
	if version != 1 {
		return nil, fmt.Errorf("dwarf: unsupported eh_frame_hdr version %d", version)
	}
	fdeCountEnc := data[2]
	tableEnc := data[3]

	// Only the absolute 4-byte table encodings (udata4 0x03, sdata4 0x0b)
	// are understood.
	if tableEnc != 0x0b && tableEnc != 0x03 {
		return nil, fmt.Errorf("dwarf: unsupported eh_frame_hdr table encoding 0x%x", tableEnc)
	}
	_ = fdeCountEnc

	off := 4
	// eh_frame_ptr field, 4 bytes (absolute or pcrel, unused directly --
	// the Provider already hands us the .eh_frame base).
	off += 4
	if off+4 > len(data) {
		return nil, fmt.Errorf("dwarf: eh_frame_hdr truncated before fde_count")
	}
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4

	t := &ehFrameHdrTable{entries: make([]ehFrameHdrEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("dwarf: eh_frame_hdr truncated table at entry %d", i)
		}
		e := ehFrameHdrEntry{
			pc:        binary.LittleEndian.Uint32(data[off:]),
			fdeOffset: binary.LittleEndian.Uint32(data[off+4:]),
		}
		t.entries = append(t.entries, e)
		off += 8
	}
	return t, nil
}

// lookup finds the table row whose pc is the closest one not exceeding
// target, using the same binary-search-over-a-sorted-table idea
// .eh_frame_hdr exists for in the first place. Grounded on
// golang.org/x/exp/slices.BinarySearchFunc (wired per SPEC_FULL.md's
// domain-stack table) rather than a hand-rolled binary search.
func (t *ehFrameHdrTable) lookup(target uint32) (ehFrameHdrEntry, bool) {
	i, found := slices.BinarySearchFunc(t.entries, target, func(e ehFrameHdrEntry, pc uint32) int {
		switch {
		case e.pc < pc:
			return -1
		case e.pc > pc:
			return 1
		default:
			return 0
		}
	})
	if found {
		return t.entries[i], true
	}
	if i == 0 {
		return ehFrameHdrEntry{}, false
	}
	return t.entries[i-1], true
}

func readBytesAt(addr, end uintptr) []byte {
	n := int(end - addr)
	if n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
