// Package sched selects the next task to run. All policies see the whole
// task list on every call and only ever return READY tasks.
package sched

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/kernel/proc"
)

const (
	ROUND_ROBIN = "round_robin"
	COOPERATIVE = "cooperative"
	PRIORITY    = "priority"
)

// UNBOUNDED is the time slice of policies that never preempt.
const UNBOUNDED = math.MaxInt32

type Scheduler interface {
	// Schedule picks the next task from tasks, or nil if none is ready.
	Schedule(tasks []*proc.Task) *proc.Task
	Add(t *proc.Task)
	Remove(t *proc.Task)
	Stats() Stats
	// TimeSlice is the instruction budget of one burst.
	TimeSlice() int
	Name() string
}

type Stats struct {
	Schedules int
	Switches  int
	Time      time.Duration
	Policy    string
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %d schedules, %d context switches, %s", s.Policy, s.Schedules, s.Switches, s.Time)
}

// counter keeps the statistics shared by every policy.
type counter struct {
	schedules int
	switches  int
	elapsed   time.Duration
	last      *proc.Task
}

func (c *counter) begin() time.Time {
	c.schedules++
	return time.Now()
}

func (c *counter) end(start time.Time, next *proc.Task) *proc.Task {
	if next != nil && next != c.last {
		c.switches++
		c.last = next
	}
	c.elapsed += time.Since(start)
	return next
}

func (c *counter) forget(t *proc.Task) {
	if c.last == t {
		c.last = nil
	}
}

func (c *counter) stats(policy string) Stats {
	return Stats{Schedules: c.schedules, Switches: c.switches, Time: c.elapsed, Policy: policy}
}

func New(name string, timeSlice int) (Scheduler, error) {
	switch name {
	case ROUND_ROBIN, "":
		return NewRoundRobin(timeSlice), nil
	case COOPERATIVE:
		return NewCooperative(), nil
	case PRIORITY:
		return NewPriority(timeSlice), nil
	}
	return nil, errors.Errorf("unknown scheduler: %q", name)
}

func contains(list []*proc.Task, t *proc.Task) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func readyOnly(list []*proc.Task) []*proc.Task {
	out := list[:0]
	for _, t := range list {
		if t.State == proc.READY {
			out = append(out, t)
		}
	}
	return out
}
