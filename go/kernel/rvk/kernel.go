// Package rvk is the multitasking kernel: it owns the process table, asks
// the scheduler for a task each round, runs it on the CPU for a burst and
// services its system calls.
package rvk

import (
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	co "github.com/rvcorn/rvcorn/go/kernel/common"
	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/kernel/sched"
	"github.com/rvcorn/rvcorn/go/loader"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/models/cpu"
	"github.com/rvcorn/rvcorn/go/models/trace"
)

// IdleDelay bounds the spin while every task is waiting.
const IdleDelay = time.Millisecond

type Kernel struct {
	config models.Config

	Cpu   *rv32.Cpu
	Coord mem.Coordinator
	Store mem.ProgramStore
	Sched sched.Scheduler
	Tasks *proc.Table

	// Stdout receives write(1) and write(2).
	Stdout io.Writer
	// Now is the kernel clock, replaceable in tests.
	Now func() time.Time

	sys   *sysKernel
	trace *trace.TraceWriter
	diff  *models.StatusDiff

	cur     *proc.Task
	boot    time.Time
	stopped int32

	Instructions uint64
	Syscalls     uint64
}

func New(config *models.Config, c *rv32.Cpu, coord mem.Coordinator, store mem.ProgramStore) (*Kernel, error) {
	config = config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s, err := sched.New(config.Scheduler, config.TimeSlice)
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		config: *config,
		Cpu:    c,
		Coord:  coord,
		Store:  store,
		Sched:  s,
		Tasks:  proc.NewTable(config.MaxProcs),
		Stdout: os.Stdout,
		Now:    time.Now,
	}
	k.boot = k.Now()
	c.Mem = coord.Memory()
	c.StallLimit = config.StallLimit
	k.sys = &sysKernel{KernelBase: co.KernelBase{Mem: coord.Memory(), Strsize: config.Strsize}, k: k}
	if config.Verbose {
		if l, ok := coord.(interface{ SetLog(io.Writer) }); ok {
			l.SetLog(config.Output)
		}
	}
	if config.TraceExec {
		c.HookAdd(cpu.HOOK_CODE, k.traceExec, 1, 0)
	}
	if config.TraceReg {
		k.diff = models.NewStatusDiff(c)
	}
	return k, nil
}

func (k *Kernel) Config() models.Config { return k.config }

// SetTrace starts recording kernel events to t.
func (k *Kernel) SetTrace(t *trace.TraceWriter) { k.trace = t }

func (k *Kernel) record(op trace.Op) {
	if k.trace == nil {
		return
	}
	if err := k.trace.Pack(op); err != nil {
		k.printf("red", "trace: %v", err)
		k.trace = nil
	}
}

// printf writes a kernel event line, colored if enabled.
func (k *Kernel) printf(color, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if k.config.Color && color != "" {
		msg = ansi.Color(msg, color)
	}
	fmt.Fprintln(k.config.Output, msg)
}

func (k *Kernel) Task(pid int) *proc.Task { return k.Tasks.Get(pid) }

func (k *Kernel) AllTasks() []*proc.Task { return k.Tasks.All() }

// Current is the task of the last burst, if it still exists.
func (k *Kernel) Current() *proc.Task { return k.cur }

// CreateTask loads image into a fresh address space and queues it as READY.
// The first task created becomes init.
func (k *Kernel) CreateTask(image []byte, name string, args []string) (*proc.Task, error) {
	pid, err := k.Tasks.NextPid()
	if err != nil {
		return nil, err
	}
	t := proc.NewTask(pid, path.Base(name))
	if err := k.load(t, image, args); err != nil {
		k.Coord.Free(pid)
		return nil, errors.Wrapf(err, "creating task %q", name)
	}
	k.Tasks.Add(t)
	k.Sched.Add(t)
	if k.config.TraceSched {
		k.printf("green", "[sched] created %s entry %#08x", t, t.Ctx.PC)
	}
	return t, nil
}

// load replaces t's memory with image and points its context at the entry
// with args on the stack. On error t's memory may already be gone.
func (k *Kernel) load(t *proc.Task, image []byte, args []string) error {
	req, err := loader.RequiredMemory(image)
	if err != nil {
		return err
	}
	k.Coord.Free(t.Pid)
	size := req + mem.HEAP_MARGIN + k.config.StackSize
	stack, err := k.Coord.Allocate(t.Pid, size)
	if err != nil {
		return err
	}
	k.Coord.SwitchContext(t.Pid)
	layout, err := loader.Load(k.Coord.Memory(), image)
	if err != nil {
		return err
	}
	sp, err := k.Coord.SetupStack(t.Pid, args, stack)
	if err != nil {
		return err
	}
	t.Stack = stack
	t.MemSize = size
	t.Program = *layout
	t.Ctx.PC = layout.Entry
	t.Ctx.Priv = uint32(rv32.PRIV_M)
	t.Ctx.X[rv32.SP] = sp
	t.Ctx.X[rv32.A0] = uint32(len(args))
	t.Ctx.X[rv32.A1] = sp
	return nil
}

// fork duplicates parent under a new pid. The child resumes after the
// same ECALL with a0 = 0. A failed copy releases the child's memory.
func (k *Kernel) fork(parent *proc.Task) (*proc.Task, error) {
	pid, err := k.Tasks.NextPid()
	if err != nil {
		return nil, err
	}
	defer k.Coord.SwitchContext(parent.Pid)
	size := k.Coord.Size(parent.Pid)
	if size == 0 {
		size = parent.Stack.StackSize + mem.FORK_SLACK
	}
	stack, err := k.Coord.Allocate(pid, size)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating pid %d", pid)
	}
	if err := k.Coord.Copy(parent.Pid, pid); err != nil {
		k.Coord.Free(pid)
		return nil, err
	}
	child := parent.Fork(pid)
	child.Ctx.X[rv32.A0] = 0
	child.Stack = stack
	child.MemSize = size
	k.Tasks.Add(child)
	k.Sched.Add(child)
	if k.config.TraceSched {
		k.printf("green", "[sched] pid %d forked %s", parent.Pid, child)
	}
	return child, nil
}

// Exec loads path from the program store as a new task.
func (k *Kernel) Exec(name string, args []string) (*proc.Task, error) {
	image, err := k.Store.Lookup(name)
	if err != nil {
		return nil, err
	}
	return k.CreateTask(image, name, args)
}

// Stop makes Run return after the current round. Safe from any goroutine.
func (k *Kernel) Stop() {
	atomic.StoreInt32(&k.stopped, 1)
}

// Resume clears a previous Stop.
func (k *Kernel) Resume() {
	atomic.StoreInt32(&k.stopped, 0)
}

func (k *Kernel) Stopped() bool {
	return atomic.LoadInt32(&k.stopped) != 0
}

// Uptime is the kernel clock since boot.
func (k *Kernel) Uptime() time.Duration {
	return k.Now().Sub(k.boot)
}
