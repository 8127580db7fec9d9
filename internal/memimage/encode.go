package memimage

// This file is the encode-side counterpart to pkg/trace/ps_decode.go: it
// assembles the exact RV64GC bit patterns that file decodes (ADDI,
// C.ADDI, C.ADDI16SP, SD, C.SDSP), so test fixtures can build a prologue
// byte-for-byte rather than poking magic constants.

// EncodeAddiSP encodes `addi sp, sp, imm` (I-type, opcode 0b0010011,
// funct3 0b000, rd=rs1=x2).
func EncodeAddiSP(imm int32) uint32 {
	var ins uint32
	ins |= 0b0010011        // opcode
	ins |= 0 << 7           // funct3 occupies bits 12-14; rd is bits 7-11
	ins |= 2 << 7           // rd = sp
	ins |= 0b000 << 12      // funct3 = addi
	ins |= 2 << 15          // rs1 = sp
	ins |= uint32(imm&0xfff) << 20
	return ins
}

// EncodeCAddi encodes `c.addi sp, imm` (CI format, op=01, funct3=000,
// rd=x2), imm in [-32, 31] and nonzero.
func EncodeCAddi(imm int32) uint16 {
	var ins uint16
	ins |= 0b01                          // op
	u := uint16(imm) & 0x3f
	ins |= (u & 0x1f) << 2               // imm[4:0] -> bits 6:2
	ins |= 2 << 7                        // rd/rs1 = sp
	ins |= ((u >> 5) & 1) << 12          // imm[5] -> bit 12
	ins |= 0b000 << 13                   // funct3
	return ins
}

// EncodeCAddi16SP encodes `c.addi16sp imm` (CI format, op=01,
// funct3=011, rd=x2 fixed), imm a multiple of 16 in [-512, 496].
func EncodeCAddi16SP(imm int32) uint16 {
	u := uint16(imm) & 0x3ff
	bit9 := (u >> 9) & 1
	bit8 := (u >> 8) & 1
	bit7 := (u >> 7) & 1
	bit6 := (u >> 6) & 1
	bit5 := (u >> 5) & 1
	bit4 := (u >> 4) & 1

	var ins uint16
	ins |= 0b01
	ins |= bit5 << 2
	ins |= bit7 << 3
	ins |= bit8 << 4
	ins |= bit6 << 5
	ins |= bit4 << 6
	ins |= 0b00010 << 7 // rd = sp marker
	ins |= bit9 << 12
	ins |= 0b011 << 13
	return ins
}

// EncodeSdRa encodes `sd ra, offset(sp)` (S-type, opcode 0b0100011,
// funct3 0b011, rs1=sp, rs2=ra), offset a multiple of 8.
func EncodeSdRa(offset uint32) uint32 {
	imm := offset & 0xfff
	lo := imm & 0x1f
	hi := (imm >> 5) & 0x7f

	var ins uint32
	ins |= 0b0100011
	ins |= lo << 7
	ins |= 0b011 << 12
	ins |= 2 << 15 // rs1 = sp
	ins |= 1 << 20 // rs2 = ra
	ins |= hi << 25
	return ins
}

// EncodeCSdsp encodes `c.sdsp ra, offset(sp)` (CSS format, op=10,
// funct3=111, rs2=ra=x1), offset a multiple of 8 in [0, 504].
func EncodeCSdsp(offset uint32) uint16 {
	var ins uint16
	ins |= 0b10
	ins |= 1 << 2                        // rs2 = ra
	ins |= uint16((offset>>6)&0x7) << 7  // offset[8:6] -> bits 9:7
	ins |= uint16((offset>>3)&0x7) << 10 // offset[5:3] -> bits 12:10
	ins |= 0b111 << 13
	return ins
}

// EncodeNop encodes `addi x0, x0, 0`, the canonical RISC-V nop, used by
// scenario 3's "leaf function whose first instruction is not an
// SP-adjust".
func EncodeNop() uint32 { return 0x00000013 }

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

// AppendU32 appends a 4-byte instruction in little-endian order.
func AppendU32(buf []byte, ins uint32) []byte {
	b := make([]byte, 4)
	putU32(b, 0, ins)
	return append(buf, b...)
}

// AppendU16 appends a 2-byte (compressed) instruction in little-endian
// order.
func AppendU16(buf []byte, ins uint16) []byte {
	b := make([]byte, 2)
	putU16(b, 0, ins)
	return append(buf, b...)
}
