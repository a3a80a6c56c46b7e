package paged

// pageTable is a second-level table. Its frame is charged to the ledger.
type pageTable struct {
	frame   int
	entries [ENTRIES]PTE
}

// AddressSpace owns a two-level page table: 1024 directory slots of 1024 entries.
type AddressSpace struct {
	Pid       int
	rootFrame int
	dir       [ENTRIES]*pageTable
	// contents of evicted pages, by virtual page number
	swap map[uint32]swapped
}

type swapped struct {
	flags PTE
	data  []byte
}

func newAddressSpace(pid, rootFrame int) *AddressSpace {
	return &AddressSpace{Pid: pid, rootFrame: rootFrame, swap: make(map[uint32]swapped)}
}

// lookup returns the entry slot for vpn, or nil when its table does not exist.
func (as *AddressSpace) lookup(vpn uint32) *PTE {
	d, i := splitVPN(vpn)
	if t := as.dir[d]; t != nil {
		return &t.entries[i]
	}
	return nil
}

// PTE returns the current entry for va.
func (as *AddressSpace) PTE(va uint32) PTE {
	if p := as.lookup(va >> 12); p != nil {
		return *p
	}
	return 0
}

// walk calls fn for every valid entry.
func (as *AddressSpace) walk(fn func(vpn uint32, pte *PTE)) {
	for d, t := range as.dir {
		if t == nil {
			continue
		}
		for i := range t.entries {
			if t.entries[i].Valid() {
				fn(uint32(d)<<10|uint32(i), &t.entries[i])
			}
		}
	}
}

// Resident counts valid entries.
func (as *AddressSpace) Resident() int {
	n := 0
	as.walk(func(uint32, *PTE) { n++ })
	return n
}

// Swapped counts evicted pages held for this space.
func (as *AddressSpace) Swapped() int {
	return len(as.swap)
}

func (as *AddressSpace) tables() int {
	n := 0
	for _, t := range as.dir {
		if t != nil {
			n++
		}
	}
	return n
}
