package rvk

import (
	"fmt"
	"strings"
	"time"

	"github.com/rvcorn/rvcorn/go/kernel/proc"
	"github.com/rvcorn/rvcorn/go/kernel/sched"
)

type Stats struct {
	Total      int
	Ready      int
	Running    int
	Waiting    int
	Terminated int

	Instructions uint64
	Syscalls     uint64
	Uptime       time.Duration
	Memory       string
	Sched        sched.Stats
}

func (k *Kernel) Stats() Stats {
	return Stats{
		Total:        k.Tasks.Len(),
		Ready:        k.Tasks.Count(proc.READY),
		Running:      k.Tasks.Count(proc.RUNNING),
		Waiting:      k.Tasks.Count(proc.WAITING),
		Terminated:   k.Tasks.Count(proc.TERMINATED),
		Instructions: k.Instructions,
		Syscalls:     k.Syscalls,
		Uptime:       k.Uptime(),
		Memory:       k.Coord.Name(),
		Sched:        k.Sched.Stats(),
	}
}

func (s Stats) String() string {
	lines := []string{
		"=== Kernel Status ===",
		fmt.Sprintf("Total tasks: %d", s.Total),
		fmt.Sprintf("Running: %d", s.Running),
		fmt.Sprintf("Ready: %d", s.Ready),
		fmt.Sprintf("Waiting: %d", s.Waiting),
		fmt.Sprintf("Terminated: %d", s.Terminated),
		fmt.Sprintf("Instructions: %d", s.Instructions),
		fmt.Sprintf("Syscalls: %d", s.Syscalls),
		fmt.Sprintf("Uptime: %s", s.Uptime),
		fmt.Sprintf("Memory: %s", s.Memory),
		fmt.Sprintf("Scheduler: %s", s.Sched),
	}
	return strings.Join(lines, "\n")
}
