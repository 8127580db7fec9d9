package memimage

import "unsafe"

// This file assembles minimal .eh_frame/.eh_frame_hdr byte images
// matching the simplified format pkg/trace/dwarf/cie_fde.go and
// ehframehdr.go parse: a CIE id sentinel of 0, version 1, empty
// augmentation string, and 8-byte absolute FDE initial-location/range
// fields -- the same simplification cie_fde.go documents for its parser,
// mirrored here on the encode side so DW-engine tests can build their
// own fixtures without a real linker.

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// CIEFixture is the encode-side description of one Common Information
// Entry.
type CIEFixture struct {
	CodeAlignment    uint64
	DataAlignment    int64
	ReturnAddressReg uint64
	Instructions     []byte
}

// FDEFixture is the encode-side description of one Frame Description
// Entry. It names no CIE: BuildEhFrame points every FDE back at the
// single CIE it emits.
type FDEFixture struct {
	StartAddress uint64
	RangeLength  uint64
	Instructions []byte
}

// BuildEhFrame assembles a single-CIE, possibly-multi-FDE .eh_frame
// image, returning the raw bytes plus, for each FDE, the section-local
// offset its record begins at (useful for cross-checking against
// .eh_frame_hdr entries built with BuildEhFrameHdr).
func BuildEhFrame(cie CIEFixture, fdes []FDEFixture) (data []byte, fdeOffsets []uint32) {
	// CIE body: version, empty augmentation string, code/data alignment,
	// return-address register, instructions.
	var cieBody []byte
	cieBody = append(cieBody, 1, 0x00) // version 1, empty augmentation + NUL
	cieBody = append(cieBody, uleb128(cie.CodeAlignment)...)
	cieBody = append(cieBody, sleb128(cie.DataAlignment)...)
	cieBody = append(cieBody, byte(cie.ReturnAddressReg))
	cieBody = append(cieBody, cie.Instructions...)

	cieID := make([]byte, 4) // 0x00000000
	cieEntry := append(append([]byte{}, cieID...), cieBody...)
	cieEntry = padToAlign4(cieEntry)

	data = appendLengthPrefixed(data, cieEntry)
	cieOffset := uint32(0) // the CIE's length-prefix starts at offset 0

	for _, f := range fdes {
		var body []byte
		// id (distance back to the CIE, from this field itself) is
		// patched in once we know this FDE's own offset.
		body = append(body, 0, 0, 0, 0) // placeholder
		body = append(body, u64le(f.StartAddress)...)
		body = append(body, u64le(f.RangeLength)...)
		body = append(body, f.Instructions...)
		body = padToAlign4(body)

		entryOffset := uint32(len(data))
		// id = (entryOffset + 4) - cieOffset, per cie_fde.go's
		// cieOffset := entryOffset + 4 - id.
		id := (entryOffset + 4) - cieOffset
		putU32le(body, 0, id)

		data = appendLengthPrefixed(data, body)
		fdeOffsets = append(fdeOffsets, entryOffset)
	}

	// Terminator: a zero-length entry.
	data = append(data, 0, 0, 0, 0)
	return data, fdeOffsets
}

// HdrEntry is one row of a .eh_frame_hdr binary search table.
type HdrEntry struct {
	PC        uint32
	FDEOffset uint32
}

// BuildEhFrameHdr assembles a minimal .eh_frame_hdr image matching
// ehframehdr.go's parseEhFrameHdr: version 1, a 4-byte eh_frame_ptr
// placeholder, a table encoded with the "absolute 4-byte" marker 0x03,
// and entries sorted by PC (the caller's responsibility).
func BuildEhFrameHdr(entries []HdrEntry) []byte {
	b := []byte{1, 0x00, 0x00, 0x03} // version, eh_frame_ptr enc (unused), fde_count enc, table enc
	b = append(b, u32le(0)...)       // eh_frame_ptr (unused by this port's reader)
	b = append(b, u32le(uint32(len(entries)))...)
	for _, e := range entries {
		b = append(b, u32le(e.PC)...)
		b = append(b, u32le(e.FDEOffset)...)
	}
	return b
}

func appendLengthPrefixed(data, entry []byte) []byte {
	data = append(data, u32le(uint32(len(entry)))...)
	return append(data, entry...)
}

func padToAlign4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func u64le(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

func putU32le(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// AddrOf returns the address of the first byte of a []byte buffer, for
// handing section bytes to a Provider implementation under test.
func AddrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
