package contig

import (
	"github.com/rvcorn/rvcorn/go/mem"
)

// Strategy chooses a hole for a new partition.
type Strategy interface {
	// Place returns the index of the chosen hole, or -1.
	Place(holes mem.Regions, size uint32) int
	Name() string
}

// FirstFit takes the lowest-addressed hole that is large enough.
type FirstFit struct{}

func (FirstFit) Name() string { return "first_fit" }

func (FirstFit) Place(holes mem.Regions, size uint32) int {
	for i, h := range holes {
		if h.Size >= size {
			return i
		}
	}
	return -1
}

// BestFit takes the smallest hole that is large enough.
type BestFit struct{}

func (BestFit) Name() string { return "best_fit" }

func (BestFit) Place(holes mem.Regions, size uint32) int {
	best := -1
	for i, h := range holes {
		if h.Size >= size && (best < 0 || h.Size < holes[best].Size) {
			best = i
		}
	}
	return best
}

func NewStrategy(name string) (Strategy, bool) {
	switch name {
	case "first_fit", "":
		return FirstFit{}, true
	case "best_fit":
		return BestFit{}, true
	}
	return nil, false
}
