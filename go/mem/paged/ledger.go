package paged

// FrameOwner names the (process, virtual page) a frame is mapped at.
// Page-table frames are owned by pid -1.
type FrameOwner struct {
	Pid int
	VPN uint32
}

var tableOwner = FrameOwner{Pid: -1}

func (o FrameOwner) PageTable() bool { return o.Pid < 0 }

// Ledger is the single authority on physical frame ownership.
// A frame is used exactly when it has at least one owner; its reference
// count is the number of owners, so a used frame without an owner cannot exist.
type Ledger struct {
	used   []uint64
	owners [][]FrameOwner
	pinned []bool
	free   int
	next   int
}

func NewLedger(frames int) *Ledger {
	return &Ledger{
		used:   make([]uint64, (frames+63)/64),
		owners: make([][]FrameOwner, frames),
		pinned: make([]bool, frames),
		free:   frames,
	}
}

func (l *Ledger) Frames() int    { return len(l.owners) }
func (l *Ledger) FreeCount() int { return l.free }

func (l *Ledger) Used(f int) bool {
	return l.used[f/64]&(1<<uint(f%64)) != 0
}

func (l *Ledger) setUsed(f int, used bool) {
	if used {
		l.used[f/64] |= 1 << uint(f%64)
	} else {
		l.used[f/64] &^= 1 << uint(f%64)
	}
}

// Alloc claims a free frame for owner. ok is false when every frame is used.
func (l *Ledger) Alloc(owner FrameOwner) (int, bool) {
	n := len(l.owners)
	if l.free == 0 {
		return -1, false
	}
	for i := 0; i < n; i++ {
		f := (l.next + i) % n
		if !l.Used(f) {
			l.setUsed(f, true)
			l.owners[f] = []FrameOwner{owner}
			l.free--
			l.next = (f + 1) % n
			return f, true
		}
	}
	return -1, false
}

// Share adds another owner to a used frame.
func (l *Ledger) Share(f int, owner FrameOwner) {
	if !l.Used(f) {
		panic("sharing a free frame")
	}
	l.owners[f] = append(l.owners[f], owner)
}

// Drop removes owner from f and frees the frame when no owner remains.
func (l *Ledger) Drop(f int, owner FrameOwner) (freed bool) {
	owners := l.owners[f]
	for i, o := range owners {
		if o == owner {
			owners = append(owners[:i:i], owners[i+1:]...)
			break
		}
	}
	l.owners[f] = owners
	if len(owners) == 0 && l.Used(f) {
		l.setUsed(f, false)
		l.pinned[f] = false
		l.owners[f] = nil
		l.free++
		return true
	}
	return false
}

// Owner returns the primary owner of f.
func (l *Ledger) Owner(f int) (FrameOwner, bool) {
	if len(l.owners[f]) == 0 {
		return FrameOwner{}, false
	}
	return l.owners[f][0], true
}

func (l *Ledger) Owners(f int) []FrameOwner {
	return l.owners[f]
}

func (l *Ledger) Refs(f int) int {
	return len(l.owners[f])
}

// Pin marks f as never evictable while it stays allocated.
func (l *Ledger) Pin(f int, pin bool) {
	if l.Used(f) {
		l.pinned[f] = pin
	}
}

func (l *Ledger) Pinned(f int) bool { return l.pinned[f] }

// Evictable reports whether f holds a private data page that may be reclaimed.
func (l *Ledger) Evictable(f int) bool {
	if !l.Used(f) || l.pinned[f] || len(l.owners[f]) != 1 {
		return false
	}
	return !l.owners[f][0].PageTable()
}

// OwnedBy counts frames with pid among their owners.
func (l *Ledger) OwnedBy(pid int) int {
	n := 0
	for _, owners := range l.owners {
		for _, o := range owners {
			if o.Pid == pid {
				n++
				break
			}
		}
	}
	return n
}
