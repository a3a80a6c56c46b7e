// Package proc holds the task descriptor, its state machine, and the
// process table that owns parent/child links by id.
package proc

import (
	"fmt"
	"time"

	"github.com/rvcorn/rvcorn/go/loader"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

type State int

const (
	READY State = iota
	RUNNING
	WAITING
	TERMINATED
)

var stateNames = []string{"READY", "RUNNING", "WAITING", "TERMINATED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type WaitReason int

const (
	WAIT_NONE WaitReason = iota
	WAIT_UART_INPUT
	WAIT_TIMER
	WAIT_CHILD_EXIT
	WAIT_FILE_IO
	WAIT_MEMORY
	WAIT_CUSTOM
)

var waitNames = []string{"none", "uart_input", "timer", "child_exit", "file_io", "memory", "custom"}

func (w WaitReason) String() string {
	if int(w) < len(waitNames) {
		return waitNames[w]
	}
	return fmt.Sprintf("WaitReason(%d)", int(w))
}

// ANY_CHILD is the WaitPid of a task waiting on any child.
const ANY_CHILD = -1

type Task struct {
	Pid  int
	Tgid int
	Name string

	// Parent is 0 once the task has no living parent.
	Parent   int
	Children []int

	State    State
	Wait     WaitReason
	WakeAt   time.Time
	WaitPid  int
	Priority int
	ExitCode int32

	Ctx     cpu.Context
	Stack   mem.Layout
	MemSize uint32
	Program loader.Layout

	Created time.Time
	// CpuTime counts instructions executed on behalf of the task.
	CpuTime uint64
}

func NewTask(pid int, name string) *Task {
	if name == "" {
		name = fmt.Sprintf("Task-%d", pid)
	}
	return &Task{
		Pid:     pid,
		Tgid:    pid,
		Name:    name,
		State:   READY,
		WaitPid: ANY_CHILD,
		Created: time.Now(),
	}
}

// Fork returns a READY copy of t under a new pid. The child keeps t's
// registers, stack and priority, and is linked as t's child.
func (t *Task) Fork(pid int) *Task {
	child := NewTask(pid, t.Name+"_child")
	child.Parent = t.Pid
	child.Priority = t.Priority
	child.Ctx = t.Ctx
	child.Stack = t.Stack
	child.MemSize = t.MemSize
	child.Program = t.Program
	t.AddChild(pid)
	return child
}

func (t *Task) Alive() bool { return t.State != TERMINATED }

// Block parks the task on reason.
func (t *Task) Block(reason WaitReason) {
	t.State = WAITING
	t.Wait = reason
}

func (t *Task) Sleep(until time.Time) {
	t.Block(WAIT_TIMER)
	t.WakeAt = until
}

func (t *Task) WaitChild(pid int) {
	t.Block(WAIT_CHILD_EXIT)
	t.WaitPid = pid
}

func (t *Task) Wake() {
	t.State = READY
	t.Wait = WAIT_NONE
	t.WaitPid = ANY_CHILD
}

func (t *Task) Exit(code int32) {
	t.ExitCode = code
	t.State = TERMINATED
	t.Wait = WAIT_NONE
}

func (t *Task) AddChild(pid int) {
	for _, c := range t.Children {
		if c == pid {
			return
		}
	}
	t.Children = append(t.Children, pid)
}

func (t *Task) RemoveChild(pid int) {
	for i, c := range t.Children {
		if c == pid {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			return
		}
	}
}

func (t *Task) String() string {
	s := fmt.Sprintf("%d %s %s", t.Pid, t.Name, t.State)
	if t.State == WAITING {
		s += " (" + t.Wait.String() + ")"
	}
	return s
}
