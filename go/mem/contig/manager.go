// Package contig is the base/limit backend: one contiguous physical
// partition per process, relocated by a pair of registers.
package contig

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

var ErrNoSpace = errors.New("no free partition large enough")

// Manager owns the partition table and the relocation registers.
type Manager struct {
	phys     *mem.Phys
	strategy Strategy
	holes    mem.Regions
	parts    map[int]*mem.Region

	cur   int
	base  uint32
	limit uint32

	Compactions int
	Log         io.Writer
}

func NewManager(phys *mem.Phys, strategy Strategy) *Manager {
	m := &Manager{
		phys:     phys,
		strategy: strategy,
		holes:    mem.Regions{{Addr: 0, Size: phys.Size(), Pid: -1}},
		parts:    make(map[int]*mem.Region),
		cur:      -1,
		limit:    phys.Size(),
	}
	return m
}

func (m *Manager) logf(format string, a ...interface{}) {
	if m.Log != nil {
		fmt.Fprintf(m.Log, "[contig] "+format+"\n", a...)
	}
}

// Registers returns the active base and limit.
func (m *Manager) Registers() (base, limit uint32) { return m.base, m.limit }

func (m *Manager) Holes() mem.Regions { return m.holes }

func (m *Manager) Partition(pid int) *mem.Region { return m.parts[pid] }

// Partitions returns allocated partitions sorted by address.
func (m *Manager) Partitions() mem.Regions {
	out := make(mem.Regions, 0, len(m.parts))
	for _, p := range m.parts {
		out = append(out, p)
	}
	sort.Sort(out)
	return out
}

func (m *Manager) FreeTotal() uint32 { return m.holes.Total() }

// Translate relocates va by the base register, faulting at or beyond the limit.
func (m *Manager) Translate(va uint32, size int, access int) (uint32, error) {
	if uint64(va)+uint64(size) > uint64(m.limit) {
		return 0, cpu.NewMemError(access, va, size, cpu.Prot(access))
	}
	return m.base + va, nil
}

// Switch loads pid's partition into the registers. An unknown pid gets
// the whole of physical memory.
func (m *Manager) Switch(pid int) {
	m.cur = pid
	if p, ok := m.parts[pid]; ok {
		m.base, m.limit = p.Addr, p.Size
	} else {
		m.base, m.limit = 0, m.phys.Size()
	}
}

// Alloc places a zeroed partition of size bytes for pid, compacting if
// the free space is fragmented.
func (m *Manager) Alloc(pid int, size uint32) (*mem.Region, error) {
	if _, ok := m.parts[pid]; ok {
		return nil, errors.Errorf("pid %d already has a partition", pid)
	}
	size = (size + 3) &^ 3
	if size == 0 {
		return nil, errors.New("zero-sized partition")
	}
	i := m.strategy.Place(m.holes, size)
	if i < 0 && m.FreeTotal() >= size {
		m.Compact()
		i = m.strategy.Place(m.holes, size)
	}
	if i < 0 {
		return nil, errors.Wrapf(ErrNoSpace, "pid %d wants %#x, %#x free", pid, size, m.FreeTotal())
	}
	h := m.holes[i]
	part := &mem.Region{Addr: h.Addr, Size: size, Pid: pid}
	h.Addr += size
	h.Size -= size
	if h.Size == 0 {
		m.holes = append(m.holes[:i], m.holes[i+1:]...)
	}
	m.parts[pid] = part
	m.phys.Zero(part.Addr, part.Size)
	m.logf("%s: %s", m.strategy.Name(), part)
	return part, nil
}

// Release returns pid's partition to the hole list, merging neighbours.
func (m *Manager) Release(pid int) {
	p, ok := m.parts[pid]
	if !ok {
		return
	}
	delete(m.parts, pid)
	m.holes = append(m.holes, &mem.Region{Addr: p.Addr, Size: p.Size, Pid: -1}).Merge()
	if m.cur == pid {
		m.Switch(-1)
	}
}

// Compact slides every partition toward address 0 and leaves one trailing hole.
func (m *Manager) Compact() {
	next := uint32(0)
	for _, p := range m.Partitions() {
		if p.Addr != next {
			m.phys.Move(next, p.Addr, p.Size)
			p.Addr = next
		}
		next += p.Size
	}
	m.holes = m.holes[:0]
	if free := m.phys.Size() - next; free > 0 {
		m.holes = append(m.holes, &mem.Region{Addr: next, Size: free, Pid: -1})
	}
	m.Compactions++
	m.Switch(m.cur)
	m.logf("compacted, %#x free at %#x", m.phys.Size()-next, next)
}

// CopyPartition copies the bytes of parent's partition into child's,
// bounded by the smaller of the two.
func (m *Manager) CopyPartition(parent, child int) error {
	src, dst := m.parts[parent], m.parts[child]
	if src == nil || dst == nil {
		return errors.Errorf("copy %d -> %d: missing partition", parent, child)
	}
	n := src.Size
	if dst.Size < n {
		n = dst.Size
	}
	m.phys.Move(dst.Addr, src.Addr, n)
	return nil
}
