package sched

import (
	"github.com/rvcorn/rvcorn/go/kernel/proc"
)

// Cooperative never preempts. A RUNNING task keeps the CPU; otherwise the
// next READY task in insertion order is picked.
type Cooperative struct {
	counter
	tasks []*proc.Task
	index int
}

func NewCooperative() *Cooperative {
	return &Cooperative{}
}

func (c *Cooperative) Schedule(all []*proc.Task) *proc.Task {
	start := c.begin()
	c.update(all)
	if c.last != nil && c.last.State == proc.RUNNING {
		return c.end(start, c.last)
	}
	var next *proc.Task
	for i := 0; i < len(c.tasks); i++ {
		t := c.tasks[c.index]
		c.index = (c.index + 1) % len(c.tasks)
		if t.State == proc.READY {
			next = t
			break
		}
	}
	return c.end(start, next)
}

func (c *Cooperative) update(all []*proc.Task) {
	for i := 0; i < len(c.tasks); {
		if c.tasks[i].State == proc.TERMINATED {
			c.removeAt(i)
		} else {
			i++
		}
	}
	for _, t := range all {
		if t.State != proc.TERMINATED && !contains(c.tasks, t) {
			c.tasks = append(c.tasks, t)
		}
	}
}

func (c *Cooperative) removeAt(i int) {
	c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
	if c.index > i {
		c.index--
	}
	if c.index >= len(c.tasks) {
		c.index = 0
	}
}

func (c *Cooperative) Add(t *proc.Task) {
	if !contains(c.tasks, t) {
		c.tasks = append(c.tasks, t)
	}
}

func (c *Cooperative) Remove(t *proc.Task) {
	for i, v := range c.tasks {
		if v == t {
			c.removeAt(i)
			break
		}
	}
	c.forget(t)
}

func (c *Cooperative) Stats() Stats   { return c.stats("Cooperative") }
func (c *Cooperative) TimeSlice() int { return UNBOUNDED }
func (c *Cooperative) Name() string   { return COOPERATIVE }
