package paged

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

const dataFlags = PTE_V | PTE_R | PTE_W | PTE_X | PTE_U

// Stats counts paging events since boot.
type Stats struct {
	Faults    uint64
	Evictions uint64
	SwapIns   uint64
}

// Manager owns the physical frames, the ledger and every address space,
// and translates addresses of the active space.
type Manager struct {
	phys   *mem.Phys
	ledger *Ledger
	pager  Pager
	policy ReplacementPolicy
	spaces map[int]*AddressSpace
	cur    *AddressSpace

	Stats Stats
	Log   io.Writer
}

func NewManager(phys *mem.Phys, pager Pager, policy ReplacementPolicy) *Manager {
	frames := int(phys.Size() / mem.PAGE_SIZE)
	if policy == nil {
		policy = NewClock(frames)
	}
	return &Manager{
		phys:   phys,
		ledger: NewLedger(frames),
		pager:  pager,
		policy: policy,
		spaces: make(map[int]*AddressSpace),
	}
}

func (m *Manager) logf(format string, a ...interface{}) {
	if m.Log != nil {
		fmt.Fprintf(m.Log, "[paged] "+format+"\n", a...)
	}
}

func (m *Manager) Ledger() *Ledger { return m.ledger }

func (m *Manager) Space(pid int) *AddressSpace { return m.spaces[pid] }

// Current returns the active address space, or nil.
func (m *Manager) Current() *AddressSpace { return m.cur }

func (m *Manager) frameAddr(f int) uint32 {
	return uint32(f) << mem.PAGE_SHIFT
}

// CreateSpace builds an empty address space for pid, charging its root table frame.
func (m *Manager) CreateSpace(pid int) (*AddressSpace, error) {
	if _, ok := m.spaces[pid]; ok {
		return nil, errors.Errorf("address space for pid %d already exists", pid)
	}
	f, err := m.allocFrame(tableOwner, m.pager.Evicts())
	if err != nil {
		return nil, errors.Wrap(err, "allocating page directory")
	}
	as := newAddressSpace(pid, f)
	m.spaces[pid] = as
	return as, nil
}

// Switch activates pid's address space. Unknown pids leave no space active.
func (m *Manager) Switch(pid int) {
	m.cur = m.spaces[pid]
}

// allocFrame claims a zeroed frame, evicting a victim if allowed and needed.
func (m *Manager) allocFrame(owner FrameOwner, evict bool) (int, error) {
	f, ok := m.ledger.Alloc(owner)
	if !ok && evict {
		if err := m.evict(); err != nil {
			return -1, err
		}
		f, ok = m.ledger.Alloc(owner)
	}
	if !ok {
		return -1, cpu.NewMemError(cpu.MEM_WRITE, 0, mem.PAGE_SIZE, cpu.MEM_OUT_OF_FRAMES)
	}
	m.phys.Zero(m.frameAddr(f), mem.PAGE_SIZE)
	return f, nil
}

// evict reclaims one frame chosen by the policy, saving its contents
// into the owning space's swap so a later fault restores them.
func (m *Manager) evict() error {
	f := m.policy.Victim(m.ledger.Evictable)
	if f < 0 {
		return cpu.NewMemError(cpu.MEM_WRITE, 0, mem.PAGE_SIZE, cpu.MEM_OUT_OF_FRAMES)
	}
	owner, _ := m.ledger.Owner(f)
	as := m.spaces[owner.Pid]
	if as == nil {
		return errors.Errorf("frame %d owned by missing pid %d", f, owner.Pid)
	}
	pte := as.lookup(owner.VPN)
	if pte == nil || !pte.Valid() || pte.Frame() != f {
		return errors.Errorf("ledger owner (%d, %#x) of frame %d does not map it", owner.Pid, owner.VPN, f)
	}
	page := make([]byte, mem.PAGE_SIZE)
	copy(page, m.phys.Bytes()[m.frameAddr(f):])
	as.swap[owner.VPN] = swapped{flags: pte.Flags() &^ (PTE_A | PTE_D), data: page}
	*pte = 0
	m.policy.OnUnmap(f)
	m.ledger.Drop(f, owner)
	m.Stats.Evictions++
	m.logf("evict frame %d from pid %d page %#x", f, owner.Pid, owner.VPN<<mem.PAGE_SHIFT)
	return nil
}

// table returns the second-level table covering vpn, creating it if needed.
func (m *Manager) table(as *AddressSpace, vpn uint32) (*pageTable, error) {
	d, _ := splitVPN(vpn)
	if t := as.dir[d]; t != nil {
		return t, nil
	}
	f, err := m.allocFrame(tableOwner, m.pager.Evicts())
	if err != nil {
		return nil, errors.Wrap(err, "allocating page table")
	}
	t := &pageTable{frame: f}
	as.dir[d] = t
	return t, nil
}

// mapPage installs a fresh zeroed frame at vpn.
func (m *Manager) mapPage(as *AddressSpace, vpn uint32, flags PTE) (*PTE, error) {
	t, err := m.table(as, vpn)
	if err != nil {
		return nil, err
	}
	f, err := m.allocFrame(FrameOwner{as.Pid, vpn}, m.pager.Evicts())
	if err != nil {
		return nil, err
	}
	_, i := splitVPN(vpn)
	pte := &t.entries[i]
	*pte = MakePTE(uint32(f), flags|PTE_V)
	m.policy.OnMap(f)
	return pte, nil
}

// unmapPage drops vpn's mapping, releasing the frame once no space references it.
func (m *Manager) unmapPage(as *AddressSpace, vpn uint32, pte *PTE) {
	f := pte.Frame()
	if m.ledger.Drop(f, FrameOwner{as.Pid, vpn}) {
		m.policy.OnUnmap(f)
	}
	*pte = 0
}

// EnsureResident is the single path by which a page becomes present.
func (m *Manager) EnsureResident(as *AddressSpace, va uint32, access int) (*PTE, error) {
	vpn := va >> mem.PAGE_SHIFT
	if pte := as.lookup(vpn); pte != nil && pte.Valid() {
		return pte, nil
	}
	m.Stats.Faults++
	flags := dataFlags
	page, swappedOut := as.swap[vpn]
	if swappedOut {
		flags = page.flags
	}
	pte, err := m.mapPage(as, vpn, flags)
	if err != nil {
		if me, ok := errors.Cause(err).(*cpu.MemError); ok {
			me.Addr, me.Access = va, access
		}
		return nil, err
	}
	if swappedOut {
		copy(m.phys.Bytes()[m.frameAddr(pte.Frame()):], page.data)
		delete(as.swap, vpn)
		m.Stats.SwapIns++
	}
	return pte, nil
}

func (m *Manager) touch(pte *PTE, access int) {
	*pte |= PTE_A
	if access == cpu.MEM_WRITE || access == cpu.MEM_LOAD {
		*pte |= PTE_D
	}
	m.policy.OnAccess(pte.Frame())
}

// Translate implements mem.Translator for the active space.
func (m *Manager) Translate(va uint32, size int, access int) (uint32, error) {
	as := m.cur
	if as == nil {
		return 0, cpu.NewMemError(access, va, size, cpu.Unmapped(access))
	}
	if (va&(mem.PAGE_SIZE-1))+uint32(size) > mem.PAGE_SIZE {
		return 0, cpu.NewMemError(access, va, size, cpu.MEM_MISALIGNED)
	}
	pte, err := m.EnsureResident(as, va, access)
	if err != nil {
		return 0, err
	}
	switch access {
	case cpu.MEM_WRITE:
		if !pte.Has(PTE_W) {
			return 0, cpu.NewMemError(access, va, size, cpu.MEM_WRITE_PROT)
		}
	case cpu.MEM_FETCH:
		if !pte.Has(PTE_X) {
			return 0, cpu.NewMemError(access, va, size, cpu.MEM_FETCH_PROT)
		}
	case cpu.MEM_READ:
		if !pte.Has(PTE_R) {
			return 0, cpu.NewMemError(access, va, size, cpu.MEM_READ_PROT)
		}
	}
	m.touch(pte, access)
	return m.frameAddr(pte.Frame()) | va&(mem.PAGE_SIZE-1), nil
}

// MapRange makes [va, va+size) resident in pid's space with flags.
func (m *Manager) MapRange(pid int, va, size uint32, flags PTE) error {
	as := m.spaces[pid]
	if as == nil {
		return errors.Errorf("no address space for pid %d", pid)
	}
	for vpn := va >> mem.PAGE_SHIFT; vpn<<mem.PAGE_SHIFT < va+size; vpn++ {
		if pte := as.lookup(vpn); pte != nil && pte.Valid() {
			*pte = MakePTE(pte.PPN(), pte.Flags()&^(PTE_R|PTE_W|PTE_X)|flags|PTE_V)
			continue
		}
		if _, err := m.mapPage(as, vpn, flags); err != nil {
			return errors.Wrapf(err, "mapping page %#x for pid %d", vpn<<mem.PAGE_SHIFT, pid)
		}
	}
	return nil
}

// Destroy releases every data frame, then every table frame, then the swap of pid.
func (m *Manager) Destroy(pid int) {
	as := m.spaces[pid]
	if as == nil {
		return
	}
	as.walk(func(vpn uint32, pte *PTE) {
		m.unmapPage(as, vpn, pte)
	})
	for d, t := range as.dir {
		if t != nil {
			m.ledger.Drop(t.frame, tableOwner)
			as.dir[d] = nil
		}
	}
	m.ledger.Drop(as.rootFrame, tableOwner)
	as.swap = nil
	delete(m.spaces, pid)
	if m.cur == as {
		m.cur = nil
	}
}

// Copy duplicates parent's space into child's. Shared pages map the same
// frame; private pages get a new frame with a byte copy.
func (m *Manager) Copy(parent, child int) error {
	src, dst := m.spaces[parent], m.spaces[child]
	if src == nil || dst == nil {
		return errors.Errorf("copy %d -> %d: missing address space", parent, child)
	}
	var err error
	src.walk(func(vpn uint32, pte *PTE) {
		if err != nil {
			return
		}
		err = m.copyPage(src, dst, vpn, pte)
	})
	if err != nil {
		return err
	}
	for vpn, page := range src.swap {
		if old := dst.lookup(vpn); old != nil && old.Valid() {
			m.unmapPage(dst, vpn, old)
		}
		dst.swap[vpn] = swapped{flags: page.flags, data: append([]byte(nil), page.data...)}
	}
	return nil
}

func (m *Manager) copyPage(src, dst *AddressSpace, vpn uint32, pte *PTE) error {
	if old := dst.lookup(vpn); old != nil && old.Valid() {
		m.unmapPage(dst, vpn, old)
	}
	delete(dst.swap, vpn)
	srcFrame := pte.Frame()
	if pte.Shared() {
		t, err := m.table(dst, vpn)
		if err != nil {
			return err
		}
		_, i := splitVPN(vpn)
		t.entries[i] = *pte
		m.ledger.Share(srcFrame, FrameOwner{dst.Pid, vpn})
		return nil
	}
	// the source must survive any eviction the allocation triggers
	pinned := m.ledger.Pinned(srcFrame)
	m.ledger.Pin(srcFrame, true)
	npte, err := m.mapPage(dst, vpn, pte.Flags()&^(PTE_A|PTE_D))
	m.ledger.Pin(srcFrame, pinned)
	if err != nil {
		return err
	}
	m.phys.Move(m.frameAddr(npte.Frame()), m.frameAddr(srcFrame), mem.PAGE_SIZE)
	return nil
}

// Share marks the resident pages of [va, va+size) in pid's space as shared,
// so later forks map the same frames.
func (m *Manager) Share(pid int, va, size uint32) error {
	as := m.spaces[pid]
	if as == nil {
		return errors.Errorf("no address space for pid %d", pid)
	}
	for vpn := va >> mem.PAGE_SHIFT; vpn<<mem.PAGE_SHIFT < va+size; vpn++ {
		pte, err := m.EnsureResident(as, vpn<<mem.PAGE_SHIFT, cpu.MEM_WRITE)
		if err != nil {
			return err
		}
		*pte |= PTE_SHARED
	}
	return nil
}

// Pin keeps the resident pages of [va, va+size) in pid's space from eviction.
func (m *Manager) Pin(pid int, va, size uint32, pin bool) error {
	as := m.spaces[pid]
	if as == nil {
		return errors.Errorf("no address space for pid %d", pid)
	}
	for vpn := va >> mem.PAGE_SHIFT; vpn<<mem.PAGE_SHIFT < va+size; vpn++ {
		pte, err := m.EnsureResident(as, vpn<<mem.PAGE_SHIFT, cpu.MEM_READ)
		if err != nil {
			return err
		}
		m.ledger.Pin(pte.Frame(), pin)
	}
	return nil
}
