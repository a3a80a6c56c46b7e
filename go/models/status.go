package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

// StatusDiff remembers the register file between calls to Changes.
type StatusDiff struct {
	Cpu  RegDumper
	last map[int]uint64
}

func NewStatusDiff(cpu RegDumper) *StatusDiff {
	return &StatusDiff{Cpu: cpu}
}

var (
	colorSame = ansi.ColorCode("default:default")
	colorNew  = ansi.ColorCode("default+bu:default")
)

type Change struct {
	Name     string
	Enum     int
	Old, New uint64
}

func (c *Change) Changed() bool { return c.Old != c.New }

// format renders the register as width hex digits. With color, the digits
// that moved are highlighted; without it a changed register gets a "+".
func (c *Change) format(width int, color bool) string {
	hexFmt := fmt.Sprintf("%%0%dx", width)
	val := fmt.Sprintf(hexFmt, c.New)
	name := fmt.Sprintf("%4s", c.Name)
	switch {
	case !c.Changed():
		return "  " + name + " 0x" + val
	case !color:
		return "+ " + name + " 0x" + val
	}
	old := fmt.Sprintf(hexFmt, c.Old)
	var b strings.Builder
	b.WriteString("  " + colorNew + name + ansi.Reset + " 0x")
	for i := range val {
		col := colorSame
		if i >= len(old) || val[i] != old[i] {
			col = colorNew
		}
		b.WriteString(col + val[i:i+1])
	}
	b.WriteString(ansi.Reset)
	return b.String()
}

type Changes struct {
	Width   int
	Changes []*Change
}

// String lays registers out in four columns, filled top to bottom.
func (cs *Changes) String(color bool) string {
	const cols = 4
	rows := (len(cs.Changes) + cols - 1) / cols
	var b strings.Builder
	for r := 0; r < rows; r++ {
		cells := make([]string, 0, cols)
		for c := 0; c < cols; c++ {
			if i := c*rows + r; i < len(cs.Changes) {
				cells = append(cells, cs.Changes[i].format(cs.Width, color))
			}
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (cs *Changes) Changed() []*Change {
	var out []*Change
	for _, c := range cs.Changes {
		if c.Changed() {
			out = append(out, c)
		}
	}
	return out
}

func (cs *Changes) Count() int { return len(cs.Changed()) }

func (cs *Changes) Find(enum int) *Change {
	for _, c := range cs.Changes {
		if c.Enum == enum {
			return c
		}
	}
	return nil
}

// Changes diffs the registers against the previous call. With onlyChanged,
// registers that did not move and non-default registers are left out.
func (s *StatusDiff) Changes(onlyChanged bool) *Changes {
	cs := &Changes{Width: int(s.Cpu.Bits() / 4)}
	regs, err := s.Cpu.RegDump()
	if err != nil {
		return cs
	}
	for _, r := range regs {
		c := &Change{Name: r.Name, Enum: r.Enum, Old: s.last[r.Enum], New: r.Val}
		if onlyChanged && (!r.Default || !c.Changed()) {
			continue
		}
		cs.Changes = append(cs.Changes, c)
	}
	s.last = make(map[int]uint64, len(regs))
	for _, r := range regs {
		s.last[r.Enum] = r.Val
	}
	return cs
}
