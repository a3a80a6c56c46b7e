package paged

// ReplacementPolicy picks frames to reclaim when the ledger is exhausted.
type ReplacementPolicy interface {
	OnMap(frame int)
	OnAccess(frame int)
	OnUnmap(frame int)
	// Victim returns an evictable frame, or -1.
	Victim(evictable func(frame int) bool) int
	Name() string
}

// Clock is the second-chance policy: a hand sweeps the frames, skipping and
// clearing referenced ones until it finds an unreferenced evictable frame.
type Clock struct {
	ref  []bool
	hand int
}

func NewClock(frames int) *Clock {
	return &Clock{ref: make([]bool, frames)}
}

func (c *Clock) Name() string { return "clock" }

func (c *Clock) OnMap(frame int)    { c.ref[frame] = true }
func (c *Clock) OnAccess(frame int) { c.ref[frame] = true }
func (c *Clock) OnUnmap(frame int)  { c.ref[frame] = false }

// Two revolutions: the first may only clear reference bits.
func (c *Clock) Victim(evictable func(int) bool) int {
	n := len(c.ref)
	for i := 0; i < 2*n; i++ {
		f := c.hand
		c.hand = (c.hand + 1) % n
		if !evictable(f) {
			continue
		}
		if !c.ref[f] {
			return f
		}
		c.ref[f] = false
	}
	return -1
}

func (c *Clock) Referenced(frame int) bool { return c.ref[frame] }
