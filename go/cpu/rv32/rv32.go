// Package rv32 is an interpreter for the RV32IM instruction set with
// M/S/U privilege levels, a CSR bank and synchronous trap delivery.
package rv32

import (
	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

// ErrStalled is returned by Step once the PC has not changed for StallLimit fetches.
var ErrStalled = errors.New("pc stalled")

// exit call number checked by EBREAK
const SYS_EXIT = 93

const DefaultStallLimit = 1000

var RegNames = []string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

type Cpu struct {
	*cpu.Hooks
	*cpu.Regs

	Mem  mem.Memory
	CSR  *CSRBank
	Priv Priv

	// Retired counts instructions that completed without a trap.
	Retired    uint64
	StallLimit int

	ecall   bool
	trap    Trap
	trapped bool
	loop    *models.LoopDetect
}

func New(m mem.Memory) *Cpu {
	c := &Cpu{
		Regs:       cpu.NewRegs(),
		Mem:        m,
		CSR:        NewCSRBank(),
		Priv:       PRIV_M,
		StallLimit: DefaultStallLimit,
		loop:       models.NewLoopDetect(1),
	}
	c.Hooks = cpu.NewHooks(c)
	return c
}

// Reset returns the hart to its boot state. Memory is untouched.
func (c *Cpu) Reset() {
	c.Regs.ContextRestore(&cpu.Context{})
	c.CSR.Reset()
	c.Priv = PRIV_M
	c.ecall, c.trapped = false, false
	c.loop.Reset()
}

// ContextSave snapshots registers, pc and the privilege level.
func (c *Cpu) ContextSave(reuse *cpu.Context) *cpu.Context {
	ctx := c.Regs.ContextSave(reuse)
	ctx.Priv = uint32(c.Priv)
	return ctx
}

// ContextRestore loads a task context, privilege level included, and
// restarts stall detection.
func (c *Cpu) ContextRestore(ctx *cpu.Context) {
	c.Regs.ContextRestore(ctx)
	c.Priv = Priv(ctx.Priv)
	c.loop.Reset()
	c.ecall, c.trapped = false, false
}

// TakeEcall reports whether an ECALL executed since the last call.
func (c *Cpu) TakeEcall() bool {
	e := c.ecall
	c.ecall = false
	return e
}

// TakeTrap returns the trap delivered since the last call, if any.
func (c *Cpu) TakeTrap() (Trap, bool) {
	t, ok := c.trap, c.trapped
	c.trapped = false
	return t, ok
}

// Step executes one instruction. Faults are delivered as traps and do not
// return an error. EBREAK with the exit call number returns
// models.ExitStatus, and a stalled PC returns ErrStalled.
func (c *Cpu) Step() error {
	pc := c.PC()
	if looping, _, loops := c.loop.Update(pc); looping && loops > c.StallLimit {
		return errors.Wrapf(ErrStalled, "at %#08x after %d iterations", pc, c.StallLimit)
	}
	raw, err := c.Mem.FetchWord(pc)
	if err != nil {
		c.fault(err, pc, 0)
		return nil
	}
	c.OnCode(pc, raw)
	ins := Decode(raw)
	c.SetPC(pc + 4)
	if err := c.exec(pc, &ins); err != nil {
		if exit, ok := err.(models.ExitStatus); ok {
			return exit
		}
		c.fault(err, pc, raw)
		return nil
	}
	c.Retired++
	return nil
}

// fault turns an execute error into a trap at the faulting instruction.
func (c *Cpu) fault(err error, pc, raw uint32) {
	switch e := errors.Cause(err).(type) {
	case *Exception:
		c.RaiseTrap(e.Cause, e.Tval, pc)
	case *cpu.MemError:
		cause := uint32(CAUSE_LOAD_FAULT)
		if e.Fetch() {
			cause = CAUSE_FETCH_FAULT
		} else if e.Write() {
			cause = CAUSE_STORE_FAULT
		}
		c.RaiseTrap(cause, e.Addr, pc)
	default:
		c.RaiseTrap(CAUSE_ILLEGAL, raw, pc)
	}
}

// RegDump lists the general registers and pc in register order.
func (c *Cpu) RegDump() ([]models.RegVal, error) {
	out := make([]models.RegVal, 0, cpu.RegCount+1)
	for i, name := range RegNames {
		val, _ := c.RegRead(i)
		out = append(out, models.RegVal{Reg: models.Reg{Name: name, Enum: i, Default: true}, Val: uint64(val)})
	}
	out = append(out, models.RegVal{Reg: models.Reg{Name: "pc", Enum: cpu.RegCount, Default: true}, Val: uint64(c.PC())})
	return out, nil
}

func (c *Cpu) Bits() uint { return 32 }
