package paged

// page table entry, Sv32 bit layout with the shared flag in a software bit
type PTE uint32

const (
	PTE_V      PTE = 1 << 0
	PTE_R      PTE = 1 << 1
	PTE_W      PTE = 1 << 2
	PTE_X      PTE = 1 << 3
	PTE_U      PTE = 1 << 4
	PTE_A      PTE = 1 << 6
	PTE_D      PTE = 1 << 7
	PTE_SHARED PTE = 1 << 8

	pteFlags PTE = 0x3ff
)

func MakePTE(ppn uint32, flags PTE) PTE {
	return PTE(ppn<<10) | flags&pteFlags
}

func (p PTE) Valid() bool    { return p&PTE_V != 0 }
func (p PTE) PPN() uint32    { return uint32(p) >> 10 }
func (p PTE) Flags() PTE     { return p & pteFlags }
func (p PTE) Has(f PTE) bool { return p&f == f }
func (p PTE) Frame() int     { return int(p.PPN()) }
func (p PTE) Shared() bool   { return p&PTE_SHARED != 0 }
func (p PTE) String() string {
	s := []byte("--------")
	for i, f := range []PTE{PTE_V, PTE_R, PTE_W, PTE_X, PTE_U, PTE_A, PTE_D, PTE_SHARED} {
		if p&f != 0 {
			s[i] = "vrwxuads"[i]
		}
	}
	return string(s)
}

const (
	ENTRIES          = 1024
	STACK_TOP uint32 = 0x7FFFF000
)

func splitVPN(vpn uint32) (dir, idx uint32) {
	return (vpn >> 10) & 0x3ff, vpn & 0x3ff
}
