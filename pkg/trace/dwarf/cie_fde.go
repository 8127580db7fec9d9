package dwarf

import (
	"encoding/binary"
	"fmt"

	"github.com/os-module/rvtrace/pkg/trace/dwarf/leb128"
)

// cie and fde mirror the structural units of .eh_frame (§ GLOSSARY:
// "CIE/FDE"), adapted from
// other_examples/JetSetIlly-Gopher2600's frameSectionCIE/frameSectionFDE
// (which targets the closely related .debug_frame format) to .eh_frame's
// own conventions: a CIE id of 0x00000000 (rather than .debug_frame's
// 0xffffffff) and an FDE-to-CIE pointer measured back from the FDE's own
// offset in the section rather than an absolute section offset.
//
// Simplification: this parser only supports the augmentation-free CIE
// form (no 'z'-prefixed augmentation string, so no pointer-encoding byte
// and no LSDA), with 8-byte absolute initial-location/address-range
// fields in the FDE. Real toolchain-emitted .eh_frame on Linux almost
// always uses a "zR" augmentation with pc-relative sdata4 encodings to
// save space; a freestanding kernel emitting its own minimal unwind
// tables (this spec's target environment) is not required to, and
// supporting the general pointer-encoding table is out of scope for a
// from-scratch CFI interpreter of this size (see DESIGN.md).
type cie struct {
	version          uint8
	codeAlignment    uint64
	dataAlignment    int64
	returnAddressReg uint64
	instructions     []byte
}

type fde struct {
	cie          *cie
	startAddress uint64
	endAddress   uint64
	instructions []byte
}

func (f *fde) contains(pc uint64) bool {
	return pc >= f.startAddress && pc < f.endAddress
}

// ehFrameSection holds every CIE (keyed by byte offset within the
// section, the same addressing FDEs use to refer back to their CIE) and
// every FDE parsed from a raw .eh_frame byte range.
type ehFrameSection struct {
	cies []*cie
	fdes []*fde
	// cieAt maps a CIE's offset in the section to its index in cies, used
	// while parsing to resolve each FDE's backreference.
	cieAt map[uint32]int
	// fdeAt maps an FDE's own section offset to itself, so
	// ehFrameHdrTable.lookup's result (a section offset) can resolve
	// straight to an *fde without a linear scan.
	fdeAt map[uint32]*fde
}

// parseEhFrame walks the CIE/FDE stream in data (little-endian, per §6)
// the same way newFrameSection's loop does: read a 4-byte length prefix,
// slice out that many bytes, then branch on the embedded id field.
func parseEhFrame(data []byte) (*ehFrameSection, error) {
	sec := &ehFrameSection{cieAt: make(map[uint32]int), fdeAt: make(map[uint32]*fde)}

	var idx int
	for idx < len(data) {
		if idx+4 > len(data) {
			return nil, fmt.Errorf("dwarf: truncated eh_frame length field at %d", idx)
		}
		length := binary.LittleEndian.Uint32(data[idx:])
		idx += 4
		if length == 0 {
			// A zero-length entry is the standard .eh_frame terminator.
			break
		}
		if idx+int(length) > len(data) {
			return nil, fmt.Errorf("dwarf: truncated eh_frame entry at %d", idx)
		}
		entryOffset := uint32(idx) - 4
		b := data[idx : idx+int(length)]
		idx += int(length)

		id := binary.LittleEndian.Uint32(b)
		n := 4

		if id == 0x00000000 {
			c := &cie{}
			c.version = b[n]
			n++

			if b[n] != 0x00 {
				return nil, fmt.Errorf("dwarf: unsupported cie augmentation string at offset %d", entryOffset)
			}
			n++ // skip the augmentation string's NUL terminator

			var m int
			c.codeAlignment, m = leb128.DecodeULEB128(b[n:])
			n += m
			c.dataAlignment, m = leb128.DecodeSLEB128(b[n:])
			n += m
			c.returnAddressReg = uint64(b[n])
			n++

			c.instructions = append([]byte(nil), b[n:]...)
			sec.cieAt[entryOffset] = len(sec.cies)
			sec.cies = append(sec.cies, c)
			continue
		}

		// FDE: id is the distance (in bytes) back to its CIE, measured
		// from the field itself, per the .eh_frame convention (as
		// opposed to .debug_frame's absolute CIE offset).
		cieOffset := entryOffset + 4 - id
		ci, ok := sec.cieAt[cieOffset]
		if !ok {
			return nil, fmt.Errorf("dwarf: fde at %d refers to missing cie at %d", entryOffset, cieOffset)
		}

		f := &fde{cie: sec.cies[ci]}
		f.startAddress = binary.LittleEndian.Uint64(b[n:])
		n += 8
		rangeLen := binary.LittleEndian.Uint64(b[n:])
		f.endAddress = f.startAddress + rangeLen
		n += 8
		f.instructions = append([]byte(nil), b[n:]...)
		sec.fdes = append(sec.fdes, f)
		sec.fdeAt[entryOffset] = f
	}

	return sec, nil
}

// fdeForPC returns the FDE covering pc by linear scan, or ok==false (->
// ErrNoUnwindInfo upstream) if none does. Used when no .eh_frame_hdr
// table was available to binary-search instead (see EhInfo.fdeForPC).
func (s *ehFrameSection) fdeForPC(pc uint64) (*fde, bool) {
	for _, f := range s.fdes {
		if f.contains(pc) {
			return f, true
		}
	}
	return nil, false
}

// fdeAtOffset resolves a section-local byte offset (as reported by an
// .eh_frame_hdr table row) straight to its *fde.
func (s *ehFrameSection) fdeAtOffset(offset uint32) (*fde, bool) {
	f, ok := s.fdeAt[offset]
	return f, ok
}
