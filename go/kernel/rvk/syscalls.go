package rvk

import (
	"fmt"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	co "github.com/rvcorn/rvcorn/go/kernel/common"
	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/loader"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/trace"
)

const (
	SYS_READ        = 63
	SYS_WRITE       = 64
	SYS_EXIT        = 93
	SYS_YIELD       = 124
	SYS_GETPID      = 172
	SYS_FORK        = 220
	SYS_EXEC        = 221
	SYS_WAIT        = 260
	SYS_DEBUG_PRINT = 1000
	SYS_GET_TIME    = 1001
	SYS_SLEEP       = 1002
)

var syscallNames = map[uint32]string{
	SYS_READ:        "read",
	SYS_WRITE:       "write",
	SYS_EXIT:        "exit",
	SYS_YIELD:       "sched_yield",
	SYS_GETPID:      "getpid",
	SYS_FORK:        "clone",
	SYS_EXEC:        "execve",
	SYS_WAIT:        "wait4",
	SYS_DEBUG_PRINT: "debug_print",
	SYS_GET_TIME:    "get_time",
	SYS_SLEEP:       "sleep",
}

// SyscallName returns the handler name for num, or "".
func SyscallName(num uint32) string {
	return syscallNames[num]
}

// sysKernel carries the syscall handlers. Each runs against task, whose
// registers were saved at the ECALL, so task.Ctx.PC is already past it.
type sysKernel struct {
	co.KernelBase
	k    *Kernel
	task *proc.Task
}

// syscall dispatches on a7 with a0-a5 as arguments and stores the result
// in a0, unless the handler parked the task for a retry.
func (k *Kernel) syscall(t *proc.Task) {
	k.Syscalls++
	num := t.Ctx.X[rv32.A7]
	args := make([]uint64, 6)
	for i := range args {
		args[i] = uint64(t.Ctx.X[rv32.A0+i])
	}
	name := syscallNames[num]
	if name == "debug_print" && !k.config.EnableDebugSyscalls {
		name = ""
	}
	var sys *co.Syscall
	if name != "" {
		sys = co.Lookup(k.sys, name)
	}
	ret := uint32(co.ENOSYS.Ret())
	if sys == nil {
		if k.config.TraceSys || k.config.Verbose {
			k.printf("yellow", "pid %d: unknown syscall %d", t.Pid, num)
		}
	} else {
		var call string
		if k.config.TraceSys {
			call = sys.Trace(args)
		}
		k.sys.task = t
		r, err := sys.Call(args)
		k.sys.task = nil
		if err != nil {
			k.printf("red", "pid %d: %s: %v", t.Pid, name, err)
			r = co.EFAULT.Ret()
		}
		ret = uint32(r)
		if k.config.TraceSys {
			k.printf("", "[%d] %s%s", t.Pid, call, sys.TraceRet(args, ret))
		}
	}
	regs := make([]uint32, len(args))
	for i, a := range args {
		regs[i] = uint32(a)
	}
	k.record(&trace.OpSyscall{Pid: uint32(t.Pid), Num: num, Ret: ret, Args: regs})
	if t.State != proc.WAITING {
		t.Ctx.X[rv32.A0] = ret
	}
}

// rewind points the task back at its ECALL so the call is retried on wake.
func (s *sysKernel) rewind() {
	s.task.Ctx.PC -= 4
}

func (s *sysKernel) Exit(code int32) int32 {
	s.k.terminate(s.task, code)
	return code
}

func (s *sysKernel) Write(fd co.Fd, buf co.Buf, size co.Len) int32 {
	if fd != 1 && fd != 2 {
		return int32(-co.EBADF)
	}
	p, err := buf.ReadStr(int(size))
	if err != nil {
		return int32(-co.EFAULT)
	}
	n, _ := s.k.Stdout.Write(p)
	return int32(n)
}

// Read returns one byte per call, parking the task while the device is empty.
func (s *sysKernel) Read(fd co.Fd, buf co.Obuf, size co.Len) int32 {
	if fd != 0 {
		return int32(-co.EBADF)
	}
	if size == 0 {
		return 0
	}
	if !s.k.inputReady() {
		s.task.Block(proc.WAIT_UART_INPUT)
		s.rewind()
		return 0
	}
	b, err := s.Mem.ReadByte(mem.UART_RX_DATA)
	if err != nil {
		return int32(-co.EFAULT)
	}
	if err := s.Mem.WriteByte(buf.Addr, b); err != nil {
		return int32(-co.EFAULT)
	}
	return 1
}

func (s *sysKernel) SchedYield() int32 {
	s.task.State = proc.READY
	return 0
}

func (s *sysKernel) Getpid() int32 {
	return int32(s.task.Pid)
}

func (s *sysKernel) Clone() int32 {
	child, err := s.k.fork(s.task)
	if err != nil {
		s.k.printf("red", "pid %d: fork: %v", s.task.Pid, err)
		if errors.Cause(err) == proc.ErrTooManyTasks {
			return int32(-co.EAGAIN)
		}
		return int32(-co.ENOMEM)
	}
	return int32(child.Pid)
}

type waitStatus struct {
	Code int32
}

func (s *sysKernel) Wait4(status co.Ptr) int32 {
	children := s.k.Tasks.Children(s.task)
	if len(children) == 0 {
		return int32(-co.ECHILD)
	}
	for _, c := range children {
		if c.Alive() {
			continue
		}
		if status != 0 {
			if err := co.NewBuf(s, uint32(status)).Pack(&waitStatus{c.ExitCode}); err != nil {
				return int32(-co.EFAULT)
			}
		}
		s.k.reap(c)
		return int32(c.Pid)
	}
	s.task.WaitChild(proc.ANY_CHILD)
	s.rewind()
	return 0
}

// Execve replaces the caller's image. Errors before the old memory is
// released are returned; later ones terminate the caller.
func (s *sysKernel) Execve(pathAddr co.Ptr, argv co.Ptr) int32 {
	name, err := mem.ReadString(s.Mem, uint32(pathAddr), mem.MAX_STRLEN)
	if err != nil {
		return int32(-co.EFAULT)
	}
	args, err := mem.ReadStringVector(s.Mem, uint32(argv))
	if err != nil {
		if errors.Cause(err) == mem.ErrTooManyArgs {
			return int32(-co.E2BIG)
		}
		return int32(-co.EFAULT)
	}
	image, err := s.k.Store.Lookup(name)
	if err != nil {
		return int32(-co.ENOENT)
	}
	if _, err := loader.RequiredMemory(image); err != nil {
		return int32(-co.ENOEXEC)
	}
	t := s.task
	if err := s.k.load(t, image, args); err != nil {
		s.k.printf("red", "pid %d: exec %s: %v", t.Pid, name, err)
		s.k.terminate(t, -1)
		return -1
	}
	t.Name = path.Base(name)
	return int32(len(args))
}

func (s *sysKernel) DebugPrint(msg co.Ptr, size co.Len) int32 {
	p, err := co.NewBuf(s, uint32(msg)).ReadStr(int(size))
	if err != nil {
		return int32(-co.EFAULT)
	}
	fmt.Fprintf(s.k.Stdout, "[DEBUG PID %d] %s\n", s.task.Pid, p)
	return int32(size)
}

// GetTime returns milliseconds since boot.
func (s *sysKernel) GetTime() uint32 {
	return uint32(s.k.Uptime() / time.Millisecond)
}

func (s *sysKernel) Sleep(ms uint32) int32 {
	s.task.Ctx.X[rv32.A0] = 0
	s.task.Sleep(s.k.Now().Add(time.Duration(ms) * time.Millisecond))
	return 0
}
