package rv32

import (
	"fmt"
)

// Priv is a RISC-V privilege level.
type Priv uint32

const (
	PRIV_U Priv = 0
	PRIV_S Priv = 1
	PRIV_M Priv = 3
)

func (p Priv) String() string {
	switch p {
	case PRIV_U:
		return "U"
	case PRIV_S:
		return "S"
	case PRIV_M:
		return "M"
	}
	return fmt.Sprintf("priv(%d)", uint32(p))
}

// CSR is a 12-bit control and status register address.
type CSR uint16

const (
	SSTATUS  CSR = 0x100
	SIE      CSR = 0x104
	STVEC    CSR = 0x105
	SSCRATCH CSR = 0x140
	SEPC     CSR = 0x141
	SCAUSE   CSR = 0x142
	STVAL    CSR = 0x143
	SIP      CSR = 0x144
	SATP     CSR = 0x180

	MSTATUS  CSR = 0x300
	MISA     CSR = 0x301
	MEDELEG  CSR = 0x302
	MIDELEG  CSR = 0x303
	MIE      CSR = 0x304
	MTVEC    CSR = 0x305
	MSCRATCH CSR = 0x340
	MEPC     CSR = 0x341
	MCAUSE   CSR = 0x342
	MTVAL    CSR = 0x343
	MIP      CSR = 0x344
)

var csrNames = map[CSR]string{
	SSTATUS: "sstatus", SIE: "sie", STVEC: "stvec", SSCRATCH: "sscratch",
	SEPC: "sepc", SCAUSE: "scause", STVAL: "stval", SIP: "sip", SATP: "satp",
	MSTATUS: "mstatus", MISA: "misa", MEDELEG: "medeleg", MIDELEG: "mideleg",
	MIE: "mie", MTVEC: "mtvec", MSCRATCH: "mscratch", MEPC: "mepc",
	MCAUSE: "mcause", MTVAL: "mtval", MIP: "mip",
}

func (c CSR) String() string {
	if name, ok := csrNames[c]; ok {
		return name
	}
	return fmt.Sprintf("csr%#x", uint16(c))
}

// status register fields
const (
	STATUS_SIE  uint32 = 1 << 1
	STATUS_MIE  uint32 = 1 << 3
	STATUS_SPIE uint32 = 1 << 5
	STATUS_MPIE uint32 = 1 << 7
	STATUS_SPP  uint32 = 1 << 8
	STATUS_MPP  uint32 = 3 << 11

	// bits of mstatus visible through sstatus
	SSTATUS_MASK uint32 = 0x000C0122
)

const (
	// RV32 with I and M
	MISA_INIT    uint32 = 0x40001108
	MSTATUS_INIT uint32 = 0x1800
)

// TierOf returns the lowest privilege level allowed to access c.
func TierOf(c CSR) Priv {
	return Priv((c >> 8) & 3)
}

type postWrite func(b *CSRBank, val uint32)

// writes to either status register propagate to the other
var csrHooks = map[CSR]postWrite{
	MSTATUS: func(b *CSRBank, val uint32) {
		b.vals[SSTATUS] = val & SSTATUS_MASK
	},
	SSTATUS: func(b *CSRBank, val uint32) {
		m := b.vals[MSTATUS]
		b.vals[MSTATUS] = m&^SSTATUS_MASK | val&SSTATUS_MASK
	},
}

// CSRBank holds every CSR. Accesses from below a register's tier read as 0
// and drop writes instead of trapping.
type CSRBank struct {
	vals [4096]uint32
}

func NewCSRBank() *CSRBank {
	b := &CSRBank{}
	b.Reset()
	return b
}

func (b *CSRBank) Reset() {
	b.vals = [4096]uint32{}
	b.Set(MISA, MISA_INIT)
	b.Set(MSTATUS, MSTATUS_INIT)
}

// Read returns c's value, or 0 when priv is below its tier.
func (b *CSRBank) Read(c CSR, priv Priv) uint32 {
	if priv < TierOf(c) {
		return 0
	}
	return b.Get(c)
}

// Write stores val into c, returning false when priv is below its tier.
func (b *CSRBank) Write(c CSR, val uint32, priv Priv) bool {
	if priv < TierOf(c) {
		return false
	}
	b.Set(c, val)
	return true
}

// Get and Set bypass privilege checks. Set runs the post-write hooks.
func (b *CSRBank) Get(c CSR) uint32 {
	return b.vals[c&0xfff]
}

func (b *CSRBank) Set(c CSR, val uint32) {
	c &= 0xfff
	b.vals[c] = val
	if hook, ok := csrHooks[c]; ok {
		hook(b, val)
	}
}

// Snapshot lists the named CSRs, for savestates and dumps.
func (b *CSRBank) Snapshot() map[CSR]uint32 {
	out := make(map[CSR]uint32, len(csrNames))
	for c := range csrNames {
		out[c] = b.vals[c]
	}
	return out
}
