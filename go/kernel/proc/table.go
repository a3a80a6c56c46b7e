package proc

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrTooManyTasks = errors.New("too many tasks")

// Table owns every task by pid. Pids are never reused.
type Table struct {
	tasks map[int]*Task
	next  int
	Max   int
	// Init adopts orphans. It is the first pid handed out.
	Init int
}

func NewTable(max int) *Table {
	return &Table{tasks: make(map[int]*Task), next: 1, Max: max, Init: 1}
}

// NextPid reserves a pid, failing once Max live entries exist.
func (t *Table) NextPid() (int, error) {
	if t.Max > 0 && len(t.tasks) >= t.Max {
		return 0, errors.Wrapf(ErrTooManyTasks, "limit %d", t.Max)
	}
	pid := t.next
	t.next++
	return pid, nil
}

func (t *Table) Add(task *Task) {
	t.tasks[task.Pid] = task
}

func (t *Table) Get(pid int) *Task {
	return t.tasks[pid]
}

func (t *Table) Len() int { return len(t.tasks) }

// All returns tasks in pid order.
func (t *Table) All() []*Task {
	out := make([]*Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out
}

func (t *Table) Children(task *Task) []*Task {
	var out []*Task
	for _, pid := range task.Children {
		if c := t.tasks[pid]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Remove drops task from the table, detaches it from its parent and hands
// its children to Init. Children of Init itself lose their parent.
func (t *Table) Remove(task *Task) {
	delete(t.tasks, task.Pid)
	if p := t.tasks[task.Parent]; p != nil {
		p.RemoveChild(task.Pid)
	}
	adopter := t.tasks[t.Init]
	for _, pid := range task.Children {
		c := t.tasks[pid]
		if c == nil {
			continue
		}
		if adopter != nil && adopter != task {
			c.Parent = adopter.Pid
			adopter.AddChild(pid)
		} else {
			c.Parent = 0
		}
	}
	task.Children = nil
}

// Orphans lists terminated tasks whose parent is gone.
func (t *Table) Orphans() []*Task {
	var out []*Task
	for _, task := range t.All() {
		if task.State == TERMINATED && t.tasks[task.Parent] == nil {
			out = append(out, task)
		}
	}
	return out
}

func (t *Table) Count(state State) int {
	n := 0
	for _, task := range t.tasks {
		if task.State == state {
			n++
		}
	}
	return n
}
