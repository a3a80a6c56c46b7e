// Package paged is the virtual-memory backend: per-process two-level page
// tables over a shared pool of 4 KiB frames.
package paged

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
)

// Coordinator adapts Manager to mem.Coordinator.
type Coordinator struct {
	*Manager
	bus       *mem.Bus
	stackSize uint32
	sizes     map[int]uint32
}

func NewCoordinator(phys *mem.Phys, pager Pager, policy ReplacementPolicy, stackSize uint32, dev mem.Device) *Coordinator {
	m := NewManager(phys, pager, policy)
	stackSize = (stackSize + mem.PAGE_SIZE - 1) &^ (mem.PAGE_SIZE - 1)
	return &Coordinator{
		Manager:   m,
		bus:       mem.NewBus(m, phys, dev),
		stackSize: stackSize,
		sizes:     make(map[int]uint32),
	}
}

func (c *Coordinator) Name() string {
	return fmt.Sprintf("paged/%s/%s", c.pager.Name(), c.policy.Name())
}

func (c *Coordinator) SetLog(w io.Writer) { c.Log = w }

func (c *Coordinator) Memory() mem.Memory { return c.bus }

// Allocate creates pid's space and maps its stack below STACK_TOP.
// Image and heap pages are mapped as they are touched.
func (c *Coordinator) Allocate(pid int, size uint32) (mem.Layout, error) {
	if _, err := c.CreateSpace(pid); err != nil {
		return mem.Layout{}, err
	}
	layout := mem.Layout{StackBase: STACK_TOP - c.stackSize, StackSize: c.stackSize}
	if err := c.MapRange(pid, layout.StackBase, layout.StackSize, PTE_R|PTE_W|PTE_U); err != nil {
		c.Destroy(pid)
		return mem.Layout{}, err
	}
	c.sizes[pid] = size
	c.logf("allocate pid %d size %#x stack %#x-%#x", pid, size, layout.StackBase, layout.StackTop())
	return layout, nil
}

func (c *Coordinator) Free(pid int) {
	if _, ok := c.spaces[pid]; ok {
		c.logf("free pid %d", pid)
	}
	c.Destroy(pid)
	delete(c.sizes, pid)
}

func (c *Coordinator) Copy(parent, child int) error {
	if err := c.Manager.Copy(parent, child); err != nil {
		return errors.Wrapf(err, "fork copy %d -> %d", parent, child)
	}
	return nil
}

func (c *Coordinator) SwitchContext(pid int) { c.Switch(pid) }

func (c *Coordinator) SetupStack(pid int, args []string, layout mem.Layout) (uint32, error) {
	c.Switch(pid)
	return mem.BuildStack(c.bus, layout.StackTop(), args)
}

func (c *Coordinator) Size(pid int) uint32 { return c.sizes[pid] }
