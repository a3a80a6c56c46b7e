package paged

// Pager decides how a missing page becomes resident.
type Pager interface {
	// Evicts reports whether the pager may reclaim frames from other pages.
	Evicts() bool
	Name() string
}

// Eager maps a frame the moment a page is needed and never reclaims.
// Running out of frames is an immediate out-of-frames fault.
type Eager struct{}

func (Eager) Evicts() bool { return false }
func (Eager) Name() string { return "eager" }

// Demand maps on first touch and asks the replacement policy for a victim
// when the ledger is exhausted.
type Demand struct{}

func (Demand) Evicts() bool { return true }
func (Demand) Name() string { return "demand" }

// NewPager returns the pager for a config name.
func NewPager(name string) (Pager, bool) {
	switch name {
	case "eager":
		return Eager{}, true
	case "demand", "":
		return Demand{}, true
	}
	return nil, false
}
