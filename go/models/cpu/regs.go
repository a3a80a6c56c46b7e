package cpu

import (
	"github.com/pkg/errors"
)

// Context is the integer state snapshotted into a task on every context switch.
type Context struct {
	X  [RegCount]uint32
	PC uint32
	// Priv is the privilege level the task runs at. Regs leaves it alone;
	// the Cpu implementation owns its encoding.
	Priv uint32
}

// Regs implements the register half of cpu.Cpu.
// Register 0 is hardwired: writes are dropped and reads return zero.
type Regs struct {
	x  [RegCount]uint32
	pc uint32
}

func NewRegs() *Regs {
	return &Regs{}
}

func (r *Regs) RegRead(enum int) (uint32, error) {
	if enum < 0 || enum >= RegCount {
		return 0, errors.Errorf("invalid register: %d", enum)
	}
	return r.x[enum], nil
}

func (r *Regs) RegWrite(enum int, val uint32) error {
	if enum < 0 || enum >= RegCount {
		return errors.Errorf("invalid register: %d", enum)
	}
	if enum != 0 {
		r.x[enum] = val
	}
	return nil
}

// Get and Set skip bounds checks; enum comes from a 5-bit decode field.
func (r *Regs) Get(enum uint32) uint32 {
	return r.x[enum&31]
}

func (r *Regs) Set(enum uint32, val uint32) {
	if enum&31 != 0 {
		r.x[enum&31] = val
	}
}

func (r *Regs) PC() uint32      { return r.pc }
func (r *Regs) SetPC(pc uint32) { r.pc = pc }

func (r *Regs) ContextSave(reuse *Context) *Context {
	if reuse == nil {
		reuse = &Context{}
	}
	reuse.X = r.x
	reuse.PC = r.pc
	return reuse
}

func (r *Regs) ContextRestore(ctx *Context) {
	r.x = ctx.X
	r.x[0] = 0
	r.pc = ctx.PC
}
