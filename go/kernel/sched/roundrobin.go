package sched

import (
	"github.com/rvcorn/rvcorn/go/kernel/proc"
)

// RoundRobin cycles a FIFO ready queue. The selected task goes straight
// back to the tail.
type RoundRobin struct {
	counter
	queue []*proc.Task
	slice int
}

func NewRoundRobin(timeSlice int) *RoundRobin {
	if timeSlice <= 0 {
		timeSlice = 1000
	}
	return &RoundRobin{slice: timeSlice}
}

func (r *RoundRobin) Schedule(tasks []*proc.Task) *proc.Task {
	start := r.begin()
	for _, t := range tasks {
		if t.State == proc.READY && !contains(r.queue, t) {
			r.queue = append(r.queue, t)
		}
	}
	r.queue = readyOnly(r.queue)
	var next *proc.Task
	if len(r.queue) > 0 {
		next = r.queue[0]
		r.queue = append(r.queue[1:], next)
	}
	return r.end(start, next)
}

func (r *RoundRobin) Add(t *proc.Task) {
	if t.State == proc.READY && !contains(r.queue, t) {
		r.queue = append(r.queue, t)
	}
}

func (r *RoundRobin) Remove(t *proc.Task) {
	for i, v := range r.queue {
		if v == t {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	r.forget(t)
}

func (r *RoundRobin) Stats() Stats   { return r.stats("Round Robin") }
func (r *RoundRobin) TimeSlice() int { return r.slice }
func (r *RoundRobin) Name() string   { return ROUND_ROBIN }

// Queue returns a copy of the ready queue, head first.
func (r *RoundRobin) Queue() []*proc.Task {
	return append([]*proc.Task(nil), r.queue...)
}
