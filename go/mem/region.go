package mem

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a physical (start, size) range. Pid is -1 for holes.
type Region struct {
	Addr uint32
	Size uint32
	Pid  int
}

func (r *Region) String() string {
	if r.Pid < 0 {
		return fmt.Sprintf("0x%08x-0x%08x free", r.Addr, r.End())
	}
	return fmt.Sprintf("0x%08x-0x%08x pid %d", r.Addr, r.End(), r.Pid)
}

func (r *Region) End() uint32 {
	return r.Addr + r.Size
}

func (r *Region) Contains(addr uint32) bool {
	return addr >= r.Addr && addr < r.Addr+r.Size
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (r *Region) Intersect(addr, size uint32) (uint32, uint32, bool) {
	start := r.Addr
	end := r.Addr + r.Size
	e2 := addr + size
	if end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	return start, end - start, end > start
}

func (r *Region) Overlaps(addr, size uint32) bool {
	_, _, ok := r.Intersect(addr, size)
	return ok
}

type Regions []*Region

func (p Regions) Len() int           { return len(p) }
func (p Regions) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Regions) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Regions) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// Total returns the summed size of every region.
func (p Regions) Total() uint32 {
	var n uint32
	for _, r := range p {
		n += r.Size
	}
	return n
}

// binary search to find index of the region containing addr, if any, else -1
// p must be sorted
func (p Regions) bsearch(addr uint32) int {
	l := 0
	r := len(p) - 1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		if addr >= e.Addr {
			if addr < e.Addr+e.Size {
				return mid
			}
			l = mid + 1
		} else {
			r = mid - 1
		}
	}
	return -1
}

func (p Regions) Find(addr uint32) *Region {
	i := p.bsearch(addr)
	if i >= 0 {
		return p[i]
	}
	return nil
}

// Merge sorts p by address and joins adjacent ranges.
func (p Regions) Merge() Regions {
	sort.Sort(p)
	out := p[:0]
	for _, r := range p {
		if n := len(out); n > 0 && out[n-1].End() == r.Addr {
			out[n-1].Size += r.Size
			continue
		}
		out = append(out, r)
	}
	return out
}
