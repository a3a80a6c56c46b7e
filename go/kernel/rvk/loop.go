package rvk

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/models/cpu"
	"github.com/rvcorn/rvcorn/go/models/trace"
	"github.com/rvcorn/rvcorn/go/uart"
)

// Run schedules until no task can run again or Stop is called.
func (k *Kernel) Run() error {
	for !k.Stopped() {
		ran, alive := k.round()
		if !alive {
			return nil
		}
		if !ran {
			time.Sleep(IdleDelay)
		}
	}
	return nil
}

// RunOnce performs one scheduling round and reports whether any task is
// still able to run.
func (k *Kernel) RunOnce() bool {
	_, alive := k.round()
	return alive
}

// round reaps orphans, wakes tasks whose condition holds, then runs one
// burst of the scheduled task. ran is false when nothing was ready.
func (k *Kernel) round() (ran, alive bool) {
	defer func() {
		if r := recover(); r != nil {
			k.printf("red", "kernel: recovered from panic: %v\n%s", r, debug.Stack())
			if t := k.cur; t != nil && t.State == proc.RUNNING {
				k.terminate(t, -1)
			}
			ran, alive = true, true
		}
	}()
	k.reapOrphans()
	k.wake()
	t := k.Sched.Schedule(k.Tasks.All())
	if t == nil {
		return false, k.Tasks.Count(proc.WAITING) > 0 || k.Tasks.Count(proc.READY) > 0
	}
	k.execute(t)
	return true, true
}

func (k *Kernel) execute(t *proc.Task) {
	if t.State != proc.READY {
		return
	}
	if k.config.TraceSched && k.cur != t {
		k.printf("cyan", "[sched] switch to %s pc %#08x", t, t.Ctx.PC)
	}
	k.record(&trace.OpSwitch{Pid: uint32(t.Pid), PC: t.Ctx.PC})
	k.cur = t
	k.Coord.SwitchContext(t.Pid)
	t.State = proc.RUNNING
	k.Cpu.ContextRestore(&t.Ctx)

	saved := false
	slice := k.Sched.TimeSlice()
	for n := 0; n < slice && t.State == proc.RUNNING; n++ {
		err := k.Cpu.Step()
		k.Instructions++
		t.CpuTime++
		if err != nil {
			k.Cpu.ContextSave(&t.Ctx)
			saved = true
			k.stepError(t, err)
			break
		}
		if k.Cpu.TakeEcall() {
			k.Cpu.ContextSave(&t.Ctx)
			saved = true
			k.syscall(t)
			break
		}
		if tr, ok := k.Cpu.TakeTrap(); ok {
			k.record(&trace.OpTrap{Pid: uint32(t.Pid), Cause: tr.Cause, Tval: tr.Tval, EPC: tr.EPC})
			if tr.Vector == 0 {
				k.printf("red", "pid %d: %s, no handler installed", t.Pid, tr)
				k.terminate(t, -1)
				break
			}
			if k.config.Verbose {
				k.printf("yellow", "pid %d: %s", t.Pid, tr)
			}
		}
	}
	if !saved {
		k.Cpu.ContextSave(&t.Ctx)
	}
	if k.diff != nil {
		if changes := k.diff.Changes(true); changes.Count() > 0 {
			fmt.Fprintln(k.config.Output, changes.String(k.config.Color))
		}
	}
	if t.State == proc.RUNNING {
		t.State = proc.READY
	}
}

func (k *Kernel) stepError(t *proc.Task, err error) {
	if exit, ok := err.(models.ExitStatus); ok {
		k.terminate(t, int32(exit))
		return
	}
	if errors.Cause(err) == rv32.ErrStalled {
		k.printf("red", "pid %d: %v", t.Pid, err)
	} else {
		k.printf("red", "pid %d: execution error: %v", t.Pid, err)
	}
	k.terminate(t, -1)
}

func (k *Kernel) terminate(t *proc.Task, code int32) {
	t.Exit(code)
	k.record(&trace.OpExit{Pid: uint32(t.Pid), Code: code})
	if k.config.TraceSched {
		k.printf("green", "[sched] pid %d exited with %d", t.Pid, code)
	}
}

// reap removes a terminated task and releases its memory.
func (k *Kernel) reap(t *proc.Task) {
	k.Tasks.Remove(t)
	k.Sched.Remove(t)
	k.Coord.Free(t.Pid)
	if k.cur == t {
		k.cur = nil
	}
}

func (k *Kernel) reapOrphans() {
	for {
		orphans := k.Tasks.Orphans()
		if len(orphans) == 0 {
			return
		}
		for _, t := range orphans {
			k.reap(t)
		}
	}
}

func (k *Kernel) inputReady() bool {
	status, err := k.Coord.Memory().ReadWord(mem.UART_STATUS)
	return err == nil && status&uart.RX_READY != 0
}

func (k *Kernel) canWake(t *proc.Task) bool {
	switch t.Wait {
	case proc.WAIT_UART_INPUT:
		return k.inputReady()
	case proc.WAIT_TIMER:
		return !k.Now().Before(t.WakeAt)
	case proc.WAIT_CHILD_EXIT:
		children := k.Tasks.Children(t)
		if len(children) == 0 {
			return true
		}
		for _, c := range children {
			if (t.WaitPid == proc.ANY_CHILD || t.WaitPid == c.Pid) && !c.Alive() {
				return true
			}
		}
		if t.WaitPid != proc.ANY_CHILD && k.Tasks.Get(t.WaitPid) == nil {
			return true
		}
	}
	return false
}

func (k *Kernel) wake() {
	for _, t := range k.Tasks.All() {
		if t.State == proc.WAITING && k.canWake(t) {
			if k.config.TraceSched {
				k.printf("cyan", "[sched] wake %s", t)
			}
			t.Wake()
		}
	}
}

func (k *Kernel) traceExec(c cpu.Cpu, addr uint32, raw uint32) {
	ins := rv32.Decode(raw)
	pid := 0
	if k.cur != nil {
		pid = k.cur.Pid
	}
	fmt.Fprintf(k.config.Output, "[%d] %#08x: %08x %s\n", pid, addr, raw, ins.String())
}
