package models

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
)

type Reg struct {
	Enum int
	Name string
	// Default registers are shown in diffs and dumps.
	Default bool
}

type RegVal struct {
	Reg
	Val uint64
}

// RegDumper is implemented by CPUs that can list their registers.
type RegDumper interface {
	RegDump() ([]RegVal, error)
	Bits() uint
}

type regList []RegVal

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

// SortRegs orders registers by name, with numeric suffixes compared as numbers.
func SortRegs(regs []RegVal) []RegVal {
	out := append([]RegVal(nil), regs...)
	sort.Sort(regList(out))
	return out
}
