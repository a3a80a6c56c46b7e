package models

// LoopDetect finds repeating PC sequences up to Len long. With Len 1 it
// counts consecutive fetches of one PC: n fetches report n-1 loops.
type LoopDetect struct {
	Len   int
	Loops int

	// history holds at most 2*Len addresses, oldest first. It is not
	// extended while a loop is being followed.
	history []uint32
	cycle   []uint32
	pos     int
}

func NewLoopDetect(length int) *LoopDetect {
	return &LoopDetect{Len: length, history: make([]uint32, 0, length*2)}
}

func (l *LoopDetect) Reset() {
	l.history = l.history[:0]
	l.cycle = nil
	l.pos = 0
	l.Loops = 0
}

func (l *LoopDetect) push(addr uint32) {
	if cap(l.history) == 0 {
		return
	}
	if len(l.history) == cap(l.history) {
		copy(l.history, l.history[1:])
		l.history = l.history[:len(l.history)-1]
	}
	l.history = append(l.history, addr)
}

// Update feeds one address. It reports whether addr continues a loop, the
// loop body and how many times it has gone around.
func (l *LoopDetect) Update(addr uint32) (bool, []uint32, int) {
	if cycle := l.cycle; cycle != nil {
		if cycle[l.pos] == addr {
			if l.pos == 0 {
				l.Loops++
			}
			l.pos = (l.pos + 1) % len(cycle)
			return true, cycle, l.Loops
		}
		loops := l.Loops
		l.cycle, l.pos, l.Loops = nil, 0, 0
		l.push(addr)
		return false, cycle, loops
	}
	l.push(addr)
	if cycle := l.detect(); cycle != nil {
		l.cycle, l.pos, l.Loops = cycle, 0, 1
		return true, cycle, 1
	}
	return false, nil, 0
}

// detect looks for the shortest tail of history that repeats back to back.
func (l *LoopDetect) detect() []uint32 {
	h := l.history
	max := len(h) / 2
	if l.Len < max {
		max = l.Len
	}
outer:
	for n := 1; n <= max; n++ {
		tail, prev := h[len(h)-n:], h[len(h)-2*n:len(h)-n]
		for i := range tail {
			if tail[i] != prev[i] {
				continue outer
			}
		}
		return append([]uint32(nil), tail...)
	}
	return nil
}
