package cpu

type Hook interface{}

// This interface abstracts the minimum functionality the kernel requires of a CPU.
type Cpu interface {
	// register IO
	RegRead(reg int) (uint32, error)
	RegWrite(reg int, val uint32) error
	PC() uint32
	SetPC(pc uint32)

	// execution
	Step() error

	// hooks
	HookAdd(htype int, cb interface{}, begin, end uint32) (Hook, error)
	HookDel(hook Hook) error

	// save/restore the integer context
	ContextSave(reuse *Context) *Context
	ContextRestore(ctx *Context)
}
