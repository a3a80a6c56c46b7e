package rv32

import (
	"fmt"
)

// synchronous exception causes
const (
	CAUSE_FETCH_FAULT = 1
	CAUSE_ILLEGAL     = 2
	CAUSE_BREAKPOINT  = 3
	CAUSE_LOAD_FAULT  = 5
	CAUSE_STORE_FAULT = 7
)

var causeNames = map[uint32]string{
	CAUSE_FETCH_FAULT: "instruction access fault",
	CAUSE_ILLEGAL:     "illegal instruction",
	CAUSE_BREAKPOINT:  "breakpoint",
	CAUSE_LOAD_FAULT:  "load access fault",
	CAUSE_STORE_FAULT: "store access fault",
}

// Exception is raised by execute and becomes a trap in Step.
type Exception struct {
	Cause uint32
	Tval  uint32
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (tval %#x)", CauseName(e.Cause), e.Tval)
}

func illegal(raw uint32) *Exception {
	return &Exception{Cause: CAUSE_ILLEGAL, Tval: raw}
}

func CauseName(cause uint32) string {
	if name, ok := causeNames[cause]; ok {
		return name
	}
	return fmt.Sprintf("cause %d", cause)
}

// Trap records a delivered trap.
type Trap struct {
	Cause  uint32
	Tval   uint32
	EPC    uint32
	From   Priv
	To     Priv
	Vector uint32
}

func (t Trap) String() string {
	return fmt.Sprintf("%s at %#08x (tval %#x) %s->%s vector %#x", CauseName(t.Cause), t.EPC, t.Tval, t.From, t.To, t.Vector)
}

// RaiseTrap delivers a synchronous trap. It is handled in S mode only when
// the hart is in U mode and the cause is delegated by medeleg.
func (c *Cpu) RaiseTrap(cause, tval, epc uint32) {
	b := c.CSR
	t := Trap{Cause: cause, Tval: tval, EPC: epc, From: c.Priv}
	delegated := c.Priv < PRIV_M && b.Get(MEDELEG)&(1<<cause) != 0
	if delegated && c.Priv == PRIV_U {
		b.Set(SEPC, epc)
		b.Set(SCAUSE, cause)
		b.Set(STVAL, tval)
		s := b.Get(SSTATUS)
		b.Set(SSTATUS, s&^STATUS_SPP|(uint32(c.Priv)&1)<<8)
		c.Priv = PRIV_S
		t.Vector = b.Get(STVEC) &^ 3
	} else {
		b.Set(MEPC, epc)
		b.Set(MCAUSE, cause)
		b.Set(MTVAL, tval)
		m := b.Get(MSTATUS)
		b.Set(MSTATUS, m&^STATUS_MPP|uint32(c.Priv)<<11)
		c.Priv = PRIV_M
		t.Vector = b.Get(MTVEC) &^ 3
	}
	t.To = c.Priv
	c.SetPC(t.Vector)
	c.trap, c.trapped = t, true
	c.OnIntr(cause)
}

// mret returns from an M-mode trap.
func (c *Cpu) mret(raw uint32) error {
	if c.Priv != PRIV_M {
		return illegal(raw)
	}
	b := c.CSR
	m := b.Get(MSTATUS)
	c.Priv = Priv((m & STATUS_MPP) >> 11)
	m &^= STATUS_MPP
	m = m&^STATUS_MIE | (m&STATUS_MPIE)>>4
	m |= STATUS_MPIE
	b.Set(MSTATUS, m)
	c.SetPC(b.Get(MEPC))
	return nil
}

// sret returns from an S-mode trap.
func (c *Cpu) sret(raw uint32) error {
	if c.Priv < PRIV_S {
		return illegal(raw)
	}
	b := c.CSR
	s := b.Get(SSTATUS)
	if s&STATUS_SPP != 0 {
		c.Priv = PRIV_S
	} else {
		c.Priv = PRIV_U
	}
	s &^= STATUS_SPP
	s = s&^STATUS_SIE | (s&STATUS_SPIE)>>4
	s |= STATUS_SPIE
	b.Set(SSTATUS, s)
	c.SetPC(b.Get(SEPC))
	return nil
}
