package rvk

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/loader"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/mem/contig"
	"github.com/rvcorn/rvcorn/go/mem/paged"
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/uart"
)

const (
	CODE = 0x1000
	DATA = 0x2000
)

var backends = []string{models.MEM_PAGED, models.MEM_CONTIGUOUS}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type rig struct {
	k     *Kernel
	uart  *uart.Uart
	out   *bytes.Buffer
	log   *bytes.Buffer
	store mem.MapStore
}

func newRig(t *testing.T, memory string, tweak func(*models.Config)) *rig {
	r := &rig{out: &bytes.Buffer{}, log: &bytes.Buffer{}, store: mem.MapStore{}}
	cfg := models.DefaultConfig()
	cfg.Output = nopCloser{r.log}
	cfg.Memory = memory
	cfg.MemSize = 1 << 20
	if tweak != nil {
		tweak(cfg)
	}
	phys := mem.NewPhys(cfg.MemSize)
	r.uart = uart.New(r.out, cfg.UartBufferSize)
	var coord mem.Coordinator
	if memory == models.MEM_PAGED {
		pager, _ := paged.NewPager(cfg.Pager)
		coord = paged.NewCoordinator(phys, pager, nil, cfg.StackSize, r.uart)
	} else {
		strategy, _ := contig.NewStrategy(cfg.Placement)
		coord = contig.NewCoordinator(phys, strategy, cfg.StackSize, r.uart)
	}
	k, err := New(cfg, rv32.New(nil), coord, r.store)
	if err != nil {
		t.Fatal(err)
	}
	k.Stdout = r.out
	r.k = k
	return r
}

func image(code []byte, data []byte) []byte {
	return loader.BuildElf(CODE,
		loader.Segment{Addr: CODE, Data: code},
		loader.Segment{Addr: DATA, Data: data, Memsz: 0x100},
	)
}

func (r *rig) spawn(t *testing.T, img []byte) *proc.Task {
	task, err := r.k.CreateTask(img, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

// until runs rounds until cond holds, failing after a bounded number.
func (r *rig) until(t *testing.T, cond func() bool) {
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		r.k.RunOnce()
	}
	t.Fatalf("condition not reached; log:\n%s", r.log)
}

func exitWith(code uint32) []uint32 {
	return append(rv32.LI(rv32.A0, code), rv32.Syscall(SYS_EXIT)...)
}

func TestExitOneRound(t *testing.T) {
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		task := r.spawn(t, image(rv32.Program(exitWith(7)), nil))
		if !r.k.RunOnce() {
			t.Fatal("first round reported no work")
		}
		if task.State != proc.TERMINATED || task.ExitCode != 7 {
			t.Fatalf("%s: task %v exit %d", backend, task, task.ExitCode)
		}
		// no parent: reaped on the next round, then nothing is left
		if r.k.RunOnce() {
			t.Fatalf("%s: kernel still busy", backend)
		}
		if r.k.Tasks.Len() != 0 || r.k.Coord.Size(task.Pid) != 0 {
			t.Fatalf("%s: task not reaped", backend)
		}
	}
}

func TestForkWait(t *testing.T) {
	child := exitWith(42)
	code := rv32.Program(
		rv32.Syscall(SYS_FORK),
		rv32.BNE(rv32.A0, rv32.ZERO, int32(len(child)+1)*4),
		child,
		rv32.ADDI(rv32.S0, rv32.A0, 0),
		rv32.LI(rv32.A0, DATA),
		rv32.Syscall(SYS_WAIT),
		rv32.ADDI(rv32.S1, rv32.A0, 0),
		rv32.LUI(rv32.T0, DATA),
		rv32.LW(rv32.T1, rv32.T0, 0),
		rv32.ADDI(rv32.A0, rv32.T1, 0),
		rv32.Syscall(SYS_EXIT),
	)
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		parent := r.spawn(t, image(code, nil))
		r.until(t, func() bool { return !parent.Alive() })
		if parent.ExitCode != 42 {
			t.Fatalf("%s: status word %d", backend, parent.ExitCode)
		}
		pid := parent.Ctx.X[rv32.S0]
		if pid != 2 || parent.Ctx.X[rv32.S1] != pid {
			t.Fatalf("%s: fork returned %d, wait returned %d", backend, pid, parent.Ctx.X[rv32.S1])
		}
		if r.k.Task(2) != nil {
			t.Fatalf("%s: child not reaped by wait", backend)
		}
	}
}

func TestForkChildSeesZero(t *testing.T) {
	// the child exits with its a0, the parent with the fork result
	code := rv32.Program(rv32.Syscall(SYS_FORK), rv32.Syscall(SYS_EXIT))
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		parent := r.spawn(t, image(code, nil))
		r.k.RunOnce()
		child := r.k.Task(2)
		if child == nil || child.Parent != parent.Pid || child.Name != "test_child" {
			t.Fatalf("%s: child %v", backend, child)
		}
		if child.Ctx.X[rv32.A0] != 0 || parent.Ctx.X[rv32.A0] != 2 {
			t.Fatalf("%s: child a0 %d parent a0 %d", backend, child.Ctx.X[rv32.A0], parent.Ctx.X[rv32.A0])
		}
		r.until(t, func() bool { return !parent.Alive() && !child.Alive() })
		if child.ExitCode != 0 || parent.ExitCode != 2 {
			t.Fatalf("%s: exits %d %d", backend, child.ExitCode, parent.ExitCode)
		}
	}
}

func TestReadBlocksAndRetries(t *testing.T) {
	code := rv32.Program(
		rv32.LI(rv32.A0, 0),
		rv32.LI(rv32.A1, DATA),
		rv32.LI(rv32.A2, 1),
		rv32.Syscall(SYS_READ),
		rv32.LBU(rv32.A0, rv32.A1, 0),
		rv32.Syscall(SYS_EXIT),
	)
	// LI of DATA is two words, so the ECALL is the sixth instruction
	ecall := uint32(CODE + 5*4)
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		task := r.spawn(t, image(code, nil))
		for i := 0; i < 3; i++ {
			if !r.k.RunOnce() {
				t.Fatal("kernel gave up on a waiting task")
			}
			if task.State != proc.WAITING || task.Wait != proc.WAIT_UART_INPUT {
				t.Fatalf("%s: task %v", backend, task)
			}
			if task.Ctx.PC != ecall {
				t.Fatalf("%s: saved pc %#x, want %#x", backend, task.Ctx.PC, ecall)
			}
		}
		r.uart.Receive([]byte("x"))
		r.k.RunOnce()
		if task.Ctx.PC != ecall+4 || task.Ctx.X[rv32.A0] != 1 {
			t.Fatalf("%s: after input pc %#x a0 %d", backend, task.Ctx.PC, task.Ctx.X[rv32.A0])
		}
		r.until(t, func() bool { return !task.Alive() })
		if task.ExitCode != 'x' {
			t.Fatalf("%s: read byte %d", backend, task.ExitCode)
		}
	}
}

func execData(path string) []byte {
	data := make([]byte, 0x30)
	copy(data, path)
	copy(data[0x10:], "arg1")
	binary.LittleEndian.PutUint32(data[0x20:], DATA+0x10)
	return data
}

func TestExec(t *testing.T) {
	// exits with argc + argv[0][0]
	target := image(rv32.Program(
		rv32.LW(rv32.T0, rv32.A1, 0),
		rv32.LBU(rv32.T1, rv32.T0, 0),
		rv32.ADD(rv32.A0, rv32.A0, rv32.T1),
		rv32.Syscall(SYS_EXIT),
	), nil)
	code := rv32.Program(rv32.LI(rv32.A0, DATA), rv32.LI(rv32.A1, DATA+0x20), rv32.Syscall(SYS_EXEC), rv32.Syscall(SYS_EXIT))
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		r.store["bin/child"] = target
		task := r.spawn(t, image(code, execData("bin/child")))
		r.until(t, func() bool { return !task.Alive() })
		if task.ExitCode != 1+'a' || task.Name != "child" {
			t.Fatalf("%s: exit %d name %s", backend, task.ExitCode, task.Name)
		}
	}
}

func TestExecMissing(t *testing.T) {
	code := rv32.Program(rv32.LI(rv32.A0, DATA), rv32.LI(rv32.A1, DATA+0x20), rv32.Syscall(SYS_EXEC), rv32.Syscall(SYS_EXIT))
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		task := r.spawn(t, image(code, execData("nope")))
		r.until(t, func() bool { return !task.Alive() })
		if task.ExitCode != -2 {
			t.Fatalf("%s: exit %d, want -ENOENT", backend, task.ExitCode)
		}
	}
}

func TestExecBadImage(t *testing.T) {
	code := rv32.Program(rv32.LI(rv32.A0, DATA), rv32.LI(rv32.A1, DATA+0x20), rv32.Syscall(SYS_EXEC), rv32.Syscall(SYS_EXIT))
	r := newRig(t, models.MEM_PAGED, nil)
	r.store["junk"] = []byte("not an elf")
	task := r.spawn(t, image(code, execData("junk")))
	r.until(t, func() bool { return !task.Alive() })
	if task.ExitCode != -8 {
		t.Fatalf("exit %d, want -ENOEXEC", task.ExitCode)
	}
}

func TestSleep(t *testing.T) {
	now := time.Unix(1000, 0)
	code := rv32.Program(rv32.LI(rv32.A0, 50), rv32.Syscall(SYS_SLEEP), rv32.Syscall(SYS_GET_TIME), rv32.Syscall(SYS_EXIT))
	r := newRig(t, models.MEM_PAGED, nil)
	r.k.Now = func() time.Time { return now }
	r.k.boot = now
	task := r.spawn(t, image(code, nil))
	r.k.RunOnce()
	if task.State != proc.WAITING || task.Wait != proc.WAIT_TIMER || task.Ctx.X[rv32.A0] != 0 {
		t.Fatalf("task %v a0 %d", task, task.Ctx.X[rv32.A0])
	}
	r.k.RunOnce()
	if task.State != proc.WAITING {
		t.Fatal("woke before deadline")
	}
	now = now.Add(60 * time.Millisecond)
	r.until(t, func() bool { return !task.Alive() })
	if task.ExitCode != 60 {
		t.Fatalf("get_time %d", task.ExitCode)
	}
}

func TestWrite(t *testing.T) {
	code := rv32.Program(
		rv32.LI(rv32.A0, 1), rv32.LI(rv32.A1, DATA), rv32.LI(rv32.A2, 16), rv32.Syscall(SYS_WRITE),
		rv32.ADDI(rv32.S0, rv32.A0, 0),
		rv32.LI(rv32.A0, 5), rv32.Syscall(SYS_WRITE),
		rv32.ADD(rv32.A0, rv32.A0, rv32.S0),
		rv32.Syscall(SYS_EXIT),
	)
	r := newRig(t, models.MEM_CONTIGUOUS, nil)
	task := r.spawn(t, image(code, []byte("hi\n\x00junk")))
	r.until(t, func() bool { return !task.Alive() })
	if r.out.String() != "hi\n" {
		t.Fatalf("stdout %q", r.out.String())
	}
	if task.ExitCode != 3-9 {
		t.Fatalf("exit %d, want 3 + -EBADF", task.ExitCode)
	}
}

func TestUnknownSyscall(t *testing.T) {
	code := rv32.Program(rv32.Syscall(999), rv32.Syscall(SYS_EXIT))
	r := newRig(t, models.MEM_PAGED, nil)
	task := r.spawn(t, image(code, nil))
	r.until(t, func() bool { return !task.Alive() })
	if task.ExitCode != -38 {
		t.Fatalf("exit %d, want -ENOSYS", task.ExitCode)
	}
}

func TestDebugPrint(t *testing.T) {
	code := rv32.Program(rv32.LI(rv32.A0, DATA), rv32.LI(rv32.A1, 8), rv32.Syscall(SYS_DEBUG_PRINT), rv32.Syscall(SYS_EXIT))
	for _, enabled := range []bool{false, true} {
		r := newRig(t, models.MEM_PAGED, func(c *models.Config) { c.EnableDebugSyscalls = enabled })
		task := r.spawn(t, image(code, []byte("hello")))
		r.until(t, func() bool { return !task.Alive() })
		if !enabled && task.ExitCode != -38 {
			t.Fatalf("disabled debug_print returned %d", task.ExitCode)
		}
		if enabled && (task.ExitCode != 8 || r.out.String() != "[DEBUG PID 1] hello\n") {
			t.Fatalf("debug_print %d %q", task.ExitCode, r.out.String())
		}
	}
}

func TestFaultWithoutHandler(t *testing.T) {
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		task := r.spawn(t, image(rv32.Program(uint32(0xffffffff)), nil))
		r.k.RunOnce()
		if task.State != proc.TERMINATED || task.ExitCode != -1 {
			t.Fatalf("%s: task %v exit %d", backend, task, task.ExitCode)
		}
		if !strings.Contains(r.log.String(), "illegal instruction") {
			t.Fatalf("%s: log %q", backend, r.log.String())
		}
	}
}

func TestFaultWithHandler(t *testing.T) {
	handler := uint32(CODE + 4*4)
	code := rv32.Program(
		rv32.LI(rv32.T0, handler),
		rv32.CSRRW(rv32.ZERO, rv32.MTVEC, rv32.T0),
		uint32(0),
		exitWith(5),
	)
	r := newRig(t, models.MEM_PAGED, nil)
	task := r.spawn(t, image(code, nil))
	r.until(t, func() bool { return !task.Alive() })
	if task.ExitCode != 5 {
		t.Fatalf("exit %d", task.ExitCode)
	}
	if r.k.Cpu.CSR.Get(rv32.MEPC) != CODE+3*4 || r.k.Cpu.CSR.Get(rv32.MCAUSE) != rv32.CAUSE_ILLEGAL {
		t.Fatalf("mepc %#x mcause %d", r.k.Cpu.CSR.Get(rv32.MEPC), r.k.Cpu.CSR.Get(rv32.MCAUSE))
	}
}

func TestEbreakExit(t *testing.T) {
	code := rv32.Program(rv32.LI(rv32.A0, 9), rv32.LI(rv32.A7, SYS_EXIT), rv32.EBREAK())
	r := newRig(t, models.MEM_PAGED, nil)
	task := r.spawn(t, image(code, nil))
	r.k.RunOnce()
	if task.State != proc.TERMINATED || task.ExitCode != 9 {
		t.Fatalf("task %v exit %d", task, task.ExitCode)
	}
}

func TestStalledTask(t *testing.T) {
	r := newRig(t, models.MEM_PAGED, func(c *models.Config) { c.StallLimit = 50 })
	task := r.spawn(t, image(rv32.Program(rv32.JAL(rv32.ZERO, 0)), nil))
	r.k.RunOnce()
	if task.State != proc.TERMINATED || task.ExitCode != -1 {
		t.Fatalf("task %v exit %d", task, task.ExitCode)
	}
	if !strings.Contains(r.log.String(), "stalled") {
		t.Fatalf("log %q", r.log.String())
	}
}

func TestMaxProcs(t *testing.T) {
	code := rv32.Program(rv32.Syscall(SYS_FORK), rv32.Syscall(SYS_EXIT))
	r := newRig(t, models.MEM_CONTIGUOUS, func(c *models.Config) { c.MaxProcs = 1 })
	task := r.spawn(t, image(code, nil))
	r.until(t, func() bool { return !task.Alive() })
	if task.ExitCode != -11 {
		t.Fatalf("exit %d, want -EAGAIN", task.ExitCode)
	}
}

func TestYieldAndGetpid(t *testing.T) {
	code := rv32.Program(rv32.Syscall(SYS_YIELD), rv32.Syscall(SYS_GETPID), rv32.Syscall(SYS_EXIT))
	r := newRig(t, models.MEM_PAGED, nil)
	a := r.spawn(t, image(code, nil))
	b := r.spawn(t, image(code, nil))
	r.k.RunOnce()
	if a.State != proc.READY || a.Ctx.PC != CODE+8 {
		t.Fatalf("yield left %v at %#x", a, a.Ctx.PC)
	}
	r.until(t, func() bool { return !a.Alive() && !b.Alive() })
	if a.ExitCode != 1 || b.ExitCode != 2 {
		t.Fatalf("getpid %d %d", a.ExitCode, b.ExitCode)
	}
	s := r.k.Stats()
	if s.Syscalls != 6 || s.Sched.Switches < 2 {
		t.Fatalf("stats %+v", s)
	}
}

func words(parts ...[]uint32) []uint32 {
	var out []uint32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestOrphansReparented(t *testing.T) {
	// init forks, then exits without waiting; the child outlives it
	child := words(rv32.Syscall(SYS_YIELD), rv32.Syscall(SYS_YIELD), exitWith(3))
	code := rv32.Program(
		rv32.Syscall(SYS_FORK),
		rv32.BNE(rv32.A0, rv32.ZERO, int32(len(child)+1)*4),
		child,
		exitWith(0),
	)
	r := newRig(t, models.MEM_PAGED, nil)
	first := r.spawn(t, image(code, nil))
	r.until(t, func() bool { return !first.Alive() })
	kid := r.k.Task(2)
	if kid == nil || !kid.Alive() {
		t.Fatalf("child missing or finished early: %v", kid)
	}
	r.k.RunOnce()
	if r.k.Task(first.Pid) != nil || kid.Parent != 0 {
		t.Fatalf("init not reaped or child still linked: %v", kid)
	}
	for r.k.RunOnce() {
	}
	if kid.ExitCode != 3 || r.k.Tasks.Len() != 0 {
		t.Fatalf("child exit %d, %d tasks left", kid.ExitCode, r.k.Tasks.Len())
	}
}

func TestGrandchildAdoptedByInit(t *testing.T) {
	// pid 2 forks pid 3 and exits at once; init reaps pid 2, then has to
	// collect pid 3 as its own child
	grandchild := words(rv32.Syscall(SYS_YIELD), rv32.Syscall(SYS_YIELD), exitWith(3))
	middle := words(
		rv32.Syscall(SYS_FORK),
		[]uint32{rv32.BNE(rv32.A0, rv32.ZERO, int32(len(grandchild)+1)*4)},
		grandchild,
		exitWith(0),
	)
	code := rv32.Program(
		rv32.Syscall(SYS_FORK),
		rv32.BNE(rv32.A0, rv32.ZERO, int32(len(middle)+1)*4),
		middle,
		rv32.LI(rv32.A0, 0),
		rv32.Syscall(SYS_WAIT),
		rv32.ADDI(rv32.S0, rv32.A0, 0),
		rv32.LI(rv32.A0, 0),
		rv32.Syscall(SYS_WAIT),
		rv32.ADDI(rv32.S1, rv32.A0, 0),
		rv32.ADDI(rv32.A0, rv32.S1, 0),
		rv32.Syscall(SYS_EXIT),
	)
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		first := r.spawn(t, image(code, nil))
		r.until(t, func() bool { return r.k.Task(3) != nil })
		gc := r.k.Task(3)
		if gc.Parent != 2 {
			t.Fatalf("%s: grandchild parent %d", backend, gc.Parent)
		}
		r.until(t, func() bool { return r.k.Task(2) == nil })
		if gc.Parent != first.Pid {
			t.Fatalf("%s: grandchild parent %d after pid 2 was reaped", backend, gc.Parent)
		}
		r.until(t, func() bool { return !first.Alive() })
		if first.Ctx.X[rv32.S0] != 2 || first.ExitCode != 3 {
			t.Fatalf("%s: waits returned %d then %d", backend, first.Ctx.X[rv32.S0], first.ExitCode)
		}
		if gc.ExitCode != 3 || r.k.Task(3) != nil {
			t.Fatalf("%s: grandchild exit %d, still listed %v", backend, gc.ExitCode, r.k.Task(3) != nil)
		}
	}
}

func TestPrivilegeSurvivesSwitch(t *testing.T) {
	// drop to user mode, then read mstatus around a yield; both reads are
	// refused while the task stays in user mode
	user := uint32(CODE + 5*4)
	code := rv32.Program(
		rv32.LI(rv32.T0, user),
		rv32.CSRRW(rv32.ZERO, rv32.MEPC, rv32.T0),
		rv32.CSRRW(rv32.ZERO, rv32.MSTATUS, rv32.ZERO),
		rv32.MRET(),
		rv32.CSRRS(rv32.S0, rv32.MSTATUS, rv32.ZERO),
		rv32.Syscall(SYS_YIELD),
		rv32.CSRRS(rv32.S1, rv32.MSTATUS, rv32.ZERO),
		rv32.ADD(rv32.A0, rv32.S0, rv32.S1),
		rv32.Syscall(SYS_EXIT),
	)
	for _, backend := range backends {
		r := newRig(t, backend, nil)
		task := r.spawn(t, image(code, nil))
		if rv32.Priv(task.Ctx.Priv) != rv32.PRIV_M {
			t.Fatalf("%s: new task starts in %v", backend, rv32.Priv(task.Ctx.Priv))
		}
		r.k.RunOnce()
		if task.State != proc.READY || rv32.Priv(task.Ctx.Priv) != rv32.PRIV_U {
			t.Fatalf("%s: after yield %v in %v", backend, task, rv32.Priv(task.Ctx.Priv))
		}
		r.until(t, func() bool { return !task.Alive() })
		if task.ExitCode != 0 {
			t.Fatalf("%s: user mode read mstatus as %#x", backend, task.ExitCode)
		}
	}
}
