package sched

import (
	"container/heap"

	"github.com/rvcorn/rvcorn/go/kernel/proc"
)

type entry struct {
	task *proc.Task
	seq  uint64
}

// prioQueue is a max-heap on priority, FIFO among equals.
type prioQueue []entry

func (q prioQueue) Len() int { return len(q) }
func (q prioQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority > q[j].task.Priority
	}
	return q[i].seq < q[j].seq
}
func (q prioQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *prioQueue) Push(x interface{}) { *q = append(*q, x.(entry)) }
func (q *prioQueue) Pop() interface{} {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// Priority runs the highest priority READY task. The chosen task stays
// queued, behind any equal-priority peers.
type Priority struct {
	counter
	queue prioQueue
	seq   uint64
	slice int
}

func NewPriority(timeSlice int) *Priority {
	if timeSlice <= 0 {
		timeSlice = 1000
	}
	return &Priority{slice: timeSlice}
}

func (p *Priority) queued(t *proc.Task) bool {
	for _, e := range p.queue {
		if e.task == t {
			return true
		}
	}
	return false
}

func (p *Priority) push(t *proc.Task) {
	p.seq++
	heap.Push(&p.queue, entry{t, p.seq})
}

func (p *Priority) Schedule(tasks []*proc.Task) *proc.Task {
	start := p.begin()
	for _, t := range tasks {
		if t.State == proc.READY && !p.queued(t) {
			p.push(t)
		}
	}
	kept := p.queue[:0]
	for _, e := range p.queue {
		if e.task.State == proc.READY {
			kept = append(kept, e)
		}
	}
	p.queue = kept
	// priorities may have changed since the entries were pushed
	heap.Init(&p.queue)
	var next *proc.Task
	if p.queue.Len() > 0 {
		next = heap.Pop(&p.queue).(entry).task
		p.push(next)
	}
	return p.end(start, next)
}

func (p *Priority) Add(t *proc.Task) {
	if t.State == proc.READY && !p.queued(t) {
		p.push(t)
	}
}

func (p *Priority) Remove(t *proc.Task) {
	for i, e := range p.queue {
		if e.task == t {
			heap.Remove(&p.queue, i)
			break
		}
	}
	p.forget(t)
}

func (p *Priority) Stats() Stats   { return p.stats("Priority") }
func (p *Priority) TimeSlice() int { return p.slice }
func (p *Priority) Name() string   { return PRIORITY }

// Highest returns the best queued priority, or -1 when empty.
func (p *Priority) Highest() int {
	if p.queue.Len() == 0 {
		return -1
	}
	return p.queue[0].task.Priority
}
