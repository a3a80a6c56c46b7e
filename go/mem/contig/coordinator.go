package contig

import (
	"io"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
)

// Coordinator adapts Manager to mem.Coordinator. The stack occupies the
// top stackSize bytes of each partition.
type Coordinator struct {
	*Manager
	bus       *mem.Bus
	stackSize uint32
}

func NewCoordinator(phys *mem.Phys, strategy Strategy, stackSize uint32, dev mem.Device) *Coordinator {
	m := NewManager(phys, strategy)
	return &Coordinator{Manager: m, bus: mem.NewBus(m, phys, dev), stackSize: (stackSize + 15) &^ 15}
}

func (c *Coordinator) Name() string { return "contiguous/" + c.strategy.Name() }

func (c *Coordinator) SetLog(w io.Writer) { c.Log = w }

func (c *Coordinator) Memory() mem.Memory { return c.bus }

func (c *Coordinator) Allocate(pid int, size uint32) (mem.Layout, error) {
	if size < c.stackSize {
		size = c.stackSize
	}
	p, err := c.Alloc(pid, size)
	if err != nil {
		return mem.Layout{}, err
	}
	return mem.Layout{StackBase: p.Size - c.stackSize, StackSize: c.stackSize}, nil
}

func (c *Coordinator) Free(pid int) { c.Release(pid) }

func (c *Coordinator) Copy(parent, child int) error {
	return errors.Wrap(c.CopyPartition(parent, child), "fork copy")
}

func (c *Coordinator) SwitchContext(pid int) { c.Switch(pid) }

func (c *Coordinator) SetupStack(pid int, args []string, layout mem.Layout) (uint32, error) {
	c.Switch(pid)
	return mem.BuildStack(c.bus, layout.StackTop(), args)
}

func (c *Coordinator) Size(pid int) uint32 {
	if p := c.parts[pid]; p != nil {
		return p.Size
	}
	return 0
}
