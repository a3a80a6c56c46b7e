package ui

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	rvcorn "github.com/rvcorn/rvcorn/go"
	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	"github.com/rvcorn/rvcorn/go/loader"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/mem/paged"
	"github.com/rvcorn/rvcorn/go/models"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// echo reads one byte and exits with it.
var echo = loader.BuildElf(0x1000,
	loader.Segment{Addr: 0x1000, Data: rv32.Program(
		rv32.LI(rv32.A0, 0),
		rv32.LI(rv32.A1, 0x2000),
		rv32.LI(rv32.A2, 1),
		rv32.Syscall(63),
		rv32.LBU(rv32.A0, rv32.A1, 0),
		rv32.Syscall(93),
	)},
	loader.Segment{Addr: 0x2000, Data: []byte("data")},
)

func newTestMonitor(t *testing.T) (*Monitor, *rvcorn.Machine, *bytes.Buffer) {
	config := models.DefaultConfig()
	config.Output = nopCloser{ioutil.Discard}
	config.MemSize = 1 << 20
	m, err := rvcorn.NewMachine(config, ioutil.Discard)
	if err != nil {
		t.Fatal(err)
	}
	m.Kernel.Store = mem.MapStore{"echo": echo}
	if _, err := m.Boot(echo, "echo", nil); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return NewMonitor(m, &out), m, &out
}

func TestMonitorStep(t *testing.T) {
	mon, m, out := newTestMonitor(t)
	if !mon.Feed("step") {
		t.Fatal("step ended the monitor")
	}
	if !strings.Contains(out.String(), "1 echo WAITING (uart_input)") {
		t.Fatalf("step output %q", out.String())
	}
	out.Reset()
	mon.Feed("input x")
	mon.Feed("step 5")
	if task := m.Kernel.Task(1); task != nil {
		t.Fatalf("task still present: %v", task)
	}
	if !strings.Contains(out.String(), "no runnable tasks") {
		t.Fatalf("step output %q", out.String())
	}
}

func TestMonitorInspect(t *testing.T) {
	mon, _, out := newTestMonitor(t)
	mon.Feed("step")
	mon.Feed("mem 0x2000 4")
	if !strings.Contains(out.String(), "0x00002000: 64617461") || !strings.Contains(out.String(), "[data]") {
		t.Fatalf("mem output %q", out.String())
	}
	out.Reset()
	mon.Feed("tasks")
	if !strings.Contains(out.String(), "echo") {
		t.Fatalf("tasks output %q", out.String())
	}
	out.Reset()
	mon.Feed("stats")
	if !strings.Contains(out.String(), "=== Kernel Status ===") {
		t.Fatalf("stats output %q", out.String())
	}
	out.Reset()
	mon.Feed("regs sort")
	if !strings.Contains(out.String(), "a0") || !strings.Contains(out.String(), "zero") {
		t.Fatalf("regs output %q", out.String())
	}
}

func TestMonitorCommands(t *testing.T) {
	mon, m, out := newTestMonitor(t)
	mon.Feed("bogus")
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("output %q", out.String())
	}
	out.Reset()
	mon.Feed("mem 0x2000")
	if !strings.Contains(out.String(), "usage") {
		t.Fatalf("output %q", out.String())
	}
	out.Reset()
	mon.Feed("programs")
	if out.String() != "echo\n" {
		t.Fatalf("programs %q", out.String())
	}
	mon.Feed("exec echo")
	if m.Kernel.Tasks.Len() != 2 {
		t.Fatalf("%d tasks after exec", m.Kernel.Tasks.Len())
	}
	mon.Feed("input ab")
	mon.Feed("run")
	if m.Kernel.Tasks.Len() != 0 {
		t.Fatalf("%d tasks after run", m.Kernel.Tasks.Len())
	}
	if mon.Feed("quit") {
		t.Fatal("quit did not end the monitor")
	}
}

func TestMonitorShare(t *testing.T) {
	mon, m, out := newTestMonitor(t)
	mon.Feed("share 1 0x2000 4")
	if !strings.Contains(out.String(), "pid 1: shared 0x2000+0x4") {
		t.Fatalf("share output %q", out.String())
	}
	if pte := m.Coord.(*paged.Coordinator).Space(1).PTE(0x2000); !pte.Shared() {
		t.Fatalf("pte %v not shared", pte)
	}
	out.Reset()
	mon.Feed("share 9 0x2000 4")
	if !strings.Contains(out.String(), "no address space") {
		t.Fatalf("share output %q", out.String())
	}

	config := models.DefaultConfig()
	config.Output = nopCloser{ioutil.Discard}
	config.MemSize = 1 << 20
	config.Memory = models.MEM_CONTIGUOUS
	cm, err := rvcorn.NewMachine(config, ioutil.Discard)
	if err != nil {
		t.Fatal(err)
	}
	out.Reset()
	NewMonitor(cm, out).Feed("share 1 0 4")
	if !strings.Contains(out.String(), "contiguous memory has no shared regions") {
		t.Fatalf("share output %q", out.String())
	}
}
