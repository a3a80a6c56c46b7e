package rv32

import (
	"encoding/binary"
)

// ABI register numbers
const (
	ZERO = 0
	RA   = 1
	SP   = 2
	GP   = 3
	TP   = 4
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A4   = 14
	A5   = 15
	A6   = 16
	A7   = 17
)

// Instruction encoders, used to build small programs without a toolchain.

func EncR(op, rd, f3, rs1, rs2, f7 uint32) uint32 {
	return f7<<25 | (rs2&31)<<20 | (rs1&31)<<15 | (f3&7)<<12 | (rd&31)<<7 | op&0x7f
}

func EncI(op, rd, f3, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | (rs1&31)<<15 | (f3&7)<<12 | (rd&31)<<7 | op&0x7f
}

func EncS(op, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | (rs2&31)<<20 | (rs1&31)<<15 | (f3&7)<<12 | (u&0x1f)<<7 | op&0x7f
}

func EncB(f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | (rs2&31)<<20 | (rs1&31)<<15 | (f3&7)<<12 |
		(u>>1&0xf)<<8 | (u>>11&1)<<7 | OP_BRANCH
}

func EncU(op, rd, imm uint32) uint32 {
	return imm&0xfffff000 | (rd&31)<<7 | op&0x7f
}

func EncJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | (rd&31)<<7 | OP_JAL
}

func ADDI(rd, rs1 uint32, imm int32) uint32 { return EncI(OP_IMM, rd, 0, rs1, imm) }
func ADD(rd, rs1, rs2 uint32) uint32        { return EncR(OP_REG, rd, 0, rs1, rs2, FUNCT7_BASE) }
func SUB(rd, rs1, rs2 uint32) uint32        { return EncR(OP_REG, rd, 0, rs1, rs2, FUNCT7_ALT) }
func LUI(rd, imm uint32) uint32             { return EncU(OP_LUI, rd, imm) }
func AUIPC(rd, imm uint32) uint32           { return EncU(OP_AUIPC, rd, imm) }
func JAL(rd uint32, off int32) uint32       { return EncJ(rd, off) }
func JALR(rd, rs1 uint32, off int32) uint32 { return EncI(OP_JALR, rd, 0, rs1, off) }
func BEQ(rs1, rs2 uint32, off int32) uint32 { return EncB(0, rs1, rs2, off) }
func BNE(rs1, rs2 uint32, off int32) uint32 { return EncB(1, rs1, rs2, off) }
func BLT(rs1, rs2 uint32, off int32) uint32 { return EncB(4, rs1, rs2, off) }
func LB(rd, rs1 uint32, off int32) uint32   { return EncI(OP_LOAD, rd, 0, rs1, off) }
func LW(rd, rs1 uint32, off int32) uint32   { return EncI(OP_LOAD, rd, 2, rs1, off) }
func LBU(rd, rs1 uint32, off int32) uint32  { return EncI(OP_LOAD, rd, 4, rs1, off) }
func SB(rs2, rs1 uint32, off int32) uint32  { return EncS(OP_STORE, 0, rs1, rs2, off) }
func SW(rs2, rs1 uint32, off int32) uint32  { return EncS(OP_STORE, 2, rs1, rs2, off) }

// MulDiv encodes an M-extension op; f3 selects MUL..REMU.
func MulDiv(f3, rd, rs1, rs2 uint32) uint32 { return EncR(OP_REG, rd, f3, rs1, rs2, FUNCT7_MUL) }

func CSRRW(rd uint32, csr CSR, rs1 uint32) uint32 {
	return EncI(OP_SYSTEM, rd, 1, rs1, int32(csr))
}

func CSRRS(rd uint32, csr CSR, rs1 uint32) uint32 {
	return EncI(OP_SYSTEM, rd, 2, rs1, int32(csr))
}

func ECALL() uint32  { return EncI(OP_SYSTEM, 0, 0, 0, 0) }
func EBREAK() uint32 { return EncI(OP_SYSTEM, 0, 0, 0, 1) }
func MRET() uint32   { return EncI(OP_SYSTEM, 0, 0, 0, 0x302) }
func SRET() uint32   { return EncI(OP_SYSTEM, 0, 0, 0, 0x102) }

// LI loads a 32-bit constant with LUI+ADDI.
func LI(rd uint32, val uint32) []uint32 {
	lo := sext(val&0xfff, 12)
	hi := val - uint32(lo)
	if hi == 0 {
		return []uint32{ADDI(rd, ZERO, lo)}
	}
	return []uint32{LUI(rd, hi), ADDI(rd, rd, lo)}
}

// Syscall loads a7 with num and issues ECALL.
func Syscall(num uint32) []uint32 {
	return append(LI(A7, num), ECALL())
}

// Program flattens instruction words and slices into little-endian code.
func Program(parts ...interface{}) []byte {
	var words []uint32
	for _, p := range parts {
		switch v := p.(type) {
		case uint32:
			words = append(words, v)
		case []uint32:
			words = append(words, v...)
		default:
			panic("Program: unsupported part")
		}
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
