// Package rvcorn wires the RV32 interpreter, a memory backend, the UART and
// the teaching kernel into a runnable machine.
package rvcorn

import (
	"io"
	"io/ioutil"
	"os"
	"path"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/kernel/rvk"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/mem/contig"
	"github.com/rvcorn/rvcorn/go/mem/paged"
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/models/trace"
	"github.com/rvcorn/rvcorn/go/uart"
)

type Machine struct {
	Config *models.Config
	Phys   *mem.Phys
	Uart   *uart.Uart
	Coord  mem.Coordinator
	Cpu    *rv32.Cpu
	Kernel *rvk.Kernel

	first *proc.Task
	trace *trace.TraceWriter
}

// NewCoordinator builds the memory backend named by config.Memory.
func NewCoordinator(config *models.Config, phys *mem.Phys, dev mem.Device) (mem.Coordinator, error) {
	switch config.Memory {
	case models.MEM_PAGED:
		pager, ok := paged.NewPager(config.Pager)
		if !ok {
			return nil, errors.Errorf("unknown pager %q", config.Pager)
		}
		return paged.NewCoordinator(phys, pager, nil, config.StackSize, dev), nil
	case models.MEM_CONTIGUOUS:
		strategy, ok := contig.NewStrategy(config.Placement)
		if !ok {
			return nil, errors.Errorf("unknown placement %q", config.Placement)
		}
		return contig.NewCoordinator(phys, strategy, config.StackSize, dev), nil
	}
	return nil, errors.Errorf("unknown memory backend %q", config.Memory)
}

// NewMachine builds a machine whose guest output goes to stdout.
func NewMachine(config *models.Config, stdout io.Writer) (*Machine, error) {
	config = config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{Config: config}
	m.Phys = mem.NewPhys(config.MemSize)
	m.Uart = uart.New(stdout, config.UartBufferSize)
	coord, err := NewCoordinator(config, m.Phys, m.Uart)
	if err != nil {
		return nil, err
	}
	m.Coord = coord
	m.Cpu = rv32.New(coord.Memory())
	k, err := rvk.New(config, m.Cpu, coord, &mem.DirStore{Dir: config.ProgramDir})
	if err != nil {
		return nil, err
	}
	k.Stdout = stdout
	m.Kernel = k
	return m, nil
}

// Boot creates a task from an ELF image. The first task booted is init.
func (m *Machine) Boot(image []byte, name string, args []string) (*proc.Task, error) {
	t, err := m.Kernel.CreateTask(image, name, args)
	if err != nil {
		return nil, err
	}
	if m.first == nil {
		m.first = t
	}
	return t, nil
}

func (m *Machine) BootFile(exe string, args []string) (*proc.Task, error) {
	image, err := ioutil.ReadFile(exe)
	if err != nil {
		return nil, errors.Wrap(err, "reading program")
	}
	return m.Boot(image, path.Base(exe), append([]string{exe}, args...))
}

// TraceTo records kernel events to a new file at name.
func (m *Machine) TraceTo(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating trace file")
	}
	tw, err := trace.NewWriter(f, m.Config.Memory, m.Config.Scheduler)
	if err != nil {
		f.Close()
		return err
	}
	m.trace = tw
	m.Kernel.SetTrace(tw)
	return nil
}

// Run schedules until every task has exited. A non-zero init exit code is
// returned as models.ExitStatus.
func (m *Machine) Run() error {
	err := m.Kernel.Run()
	if cerr := m.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if m.first != nil && !m.first.Alive() && m.first.ExitCode != 0 {
		return models.ExitStatus(m.first.ExitCode)
	}
	return nil
}

// Snapshot captures registers, privilege, CSRs and physical memory.
func (m *Machine) Snapshot() *models.Snapshot {
	ctx := m.Cpu.ContextSave(nil)
	snap := &models.Snapshot{
		X:      ctx.X,
		PC:     ctx.PC,
		Priv:   uint32(m.Cpu.Priv),
		CSRs:   make(map[uint16]uint32),
		Memory: m.Phys.Bytes(),
	}
	for c, val := range m.Cpu.CSR.Snapshot() {
		snap.CSRs[uint16(c)] = val
	}
	return snap
}

func (m *Machine) Save(name string) error {
	data, err := models.Save(m.Snapshot())
	if err != nil {
		return err
	}
	return errors.Wrap(ioutil.WriteFile(name, data, 0644), "writing savestate")
}

func (m *Machine) Close() error {
	if m.trace == nil {
		return nil
	}
	err := m.trace.Close()
	m.trace = nil
	m.Kernel.SetTrace(nil)
	return err
}
