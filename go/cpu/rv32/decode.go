package rv32

import (
	"fmt"
)

// major opcodes
const (
	OP_LOAD   = 0x03
	OP_FENCE  = 0x0f
	OP_IMM    = 0x13
	OP_AUIPC  = 0x17
	OP_STORE  = 0x23
	OP_REG    = 0x33
	OP_LUI    = 0x37
	OP_BRANCH = 0x63
	OP_JALR   = 0x67
	OP_JAL    = 0x6f
	OP_SYSTEM = 0x73
)

const (
	FUNCT7_BASE = 0x00
	FUNCT7_MUL  = 0x01
	FUNCT7_ALT  = 0x20
)

// Instruction is one decoded instruction word. Every immediate format is
// extracted; the opcode decides which one is meaningful.
type Instruction struct {
	Raw    uint32
	Opcode uint32
	Rd     uint32
	Funct3 uint32
	Rs1    uint32
	Rs2    uint32
	Funct7 uint32

	ImmI int32
	ImmS int32
	ImmB int32
	ImmU uint32
	ImmJ int32
}

// sign extends the low bits of v
func sext(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func Decode(raw uint32) Instruction {
	return Instruction{
		Raw:    raw,
		Opcode: raw & 0x7f,
		Rd:     (raw >> 7) & 0x1f,
		Funct3: (raw >> 12) & 0x7,
		Rs1:    (raw >> 15) & 0x1f,
		Rs2:    (raw >> 20) & 0x1f,
		Funct7: raw >> 25,

		ImmI: int32(raw) >> 20,
		ImmS: sext((raw>>25)<<5|(raw>>7)&0x1f, 12),
		ImmB: sext((raw>>31)<<12|((raw>>7)&1)<<11|((raw>>25)&0x3f)<<5|((raw>>8)&0xf)<<1, 13),
		ImmU: raw & 0xfffff000,
		ImmJ: sext((raw>>31)<<20|((raw>>12)&0xff)<<12|((raw>>20)&1)<<11|((raw>>21)&0x3ff)<<1, 21),
	}
}

// CSR returns the unsigned 12-bit CSR address of a SYSTEM instruction.
func (i *Instruction) CSR() CSR {
	return CSR(i.Raw >> 20)
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%08x op=%#02x rd=%d rs1=%d rs2=%d f3=%d f7=%#x", i.Raw, i.Opcode, i.Rd, i.Rs1, i.Rs2, i.Funct3, i.Funct7)
}
