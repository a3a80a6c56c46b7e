package ui

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"

	rvcorn "github.com/rvcorn/rvcorn/go"
	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
)

// Monitor is a line-oriented console that single-steps a machine.
type Monitor struct {
	m    *rvcorn.Machine
	out  io.Writer
	diff *models.StatusDiff
}

type monitorCmd struct {
	usage string
	run   func(mon *Monitor, args []string) error
}

var monitorCmds map[string]*monitorCmd

func init() {
	monitorCmds = map[string]*monitorCmd{
		"step":     {"step [n]          run n scheduling rounds", (*Monitor).step},
		"run":      {"run               run until every task exits (^C stops)", (*Monitor).run},
		"regs":     {"regs [sort]       dump registers, changes highlighted", (*Monitor).regs},
		"tasks":    {"tasks             list tasks", (*Monitor).tasks},
		"stats":    {"stats             kernel statistics", (*Monitor).stats},
		"mem":      {"mem <addr> <len>  hexdump memory of the current task", (*Monitor).mem},
		"input":    {"input <text>      queue a line on the uart", (*Monitor).input},
		"programs": {"programs          list programs in the program dir", (*Monitor).programs},
		"exec":     {"exec <name> [arg] start a program from the program dir", (*Monitor).exec},
		"share":    {"share <pid> <addr> <len>  mark pages shared across later forks", (*Monitor).share},
	}
}

func NewMonitor(m *rvcorn.Machine, out io.Writer) *Monitor {
	return &Monitor{m: m, out: out, diff: models.NewStatusDiff(m.Cpu)}
}

func (mon *Monitor) printf(f string, args ...interface{}) {
	fmt.Fprintf(mon.out, f, args...)
}

// Feed runs one command line. It returns false when the monitor should exit.
func (mon *Monitor) Feed(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		mon.help()
		return true
	}
	cmd, ok := monitorCmds[name]
	if !ok {
		mon.printf("unknown command %q, try help\n", name)
		return true
	}
	if err := cmd.run(mon, args); err != nil {
		mon.printf("%s: %v\n", name, err)
	}
	return true
}

func (mon *Monitor) help() {
	for _, name := range []string{"step", "run", "regs", "tasks", "stats", "mem", "input", "programs", "exec", "share"} {
		mon.printf("  %s\n", monitorCmds[name].usage)
	}
	mon.printf("  quit\n")
}

func parseNum(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Errorf("bad number %q", s)
	}
	return uint32(n), nil
}

func (mon *Monitor) step(args []string) error {
	n := uint32(1)
	if len(args) > 0 {
		var err error
		if n, err = parseNum(args[0]); err != nil {
			return err
		}
	}
	k := mon.m.Kernel
	for i := uint32(0); i < n; i++ {
		if !k.RunOnce() {
			mon.printf("no runnable tasks\n")
			break
		}
	}
	if t := k.Current(); t != nil {
		mon.printf("%s pc %#08x\n", t, t.Ctx.PC)
	}
	return nil
}

func (mon *Monitor) run(args []string) error {
	k := mon.m.Kernel
	k.Resume()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			k.Stop()
		case <-done:
		}
	}()
	err := k.Run()
	close(done)
	signal.Stop(sig)
	mon.printf("%s\n", k.Stats().Sched)
	return err
}

func (mon *Monitor) regs(args []string) error {
	color := mon.m.Config.Color
	if len(args) > 0 && args[0] == "sort" {
		regs, err := mon.m.Cpu.RegDump()
		if err != nil {
			return err
		}
		for _, r := range models.SortRegs(regs) {
			mon.printf("%-4s = %#08x\n", r.Name, r.Val)
		}
		return nil
	}
	mon.printf("%s\n", mon.diff.Changes(false).String(color))
	mon.printf("priv %s\n", mon.m.Cpu.Priv)
	return nil
}

func (mon *Monitor) tasks(args []string) error {
	for _, t := range mon.m.Kernel.AllTasks() {
		mon.printf("%5d %-16s %-10s parent %-4d pc %#08x mem %#x\n", t.Pid, t.Name, t.State, t.Parent, t.Ctx.PC, t.MemSize)
	}
	return nil
}

func (mon *Monitor) stats(args []string) error {
	mon.printf("%s\n", mon.m.Kernel.Stats())
	return nil
}

func (mon *Monitor) mem(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mem <addr> <len>")
	}
	addr, err := parseNum(args[0])
	if err != nil {
		return err
	}
	size, err := parseNum(args[1])
	if err != nil {
		return err
	}
	data, err := mem.Read(mon.m.Coord.Memory(), addr, int(size))
	if err != nil {
		return err
	}
	for _, line := range models.HexDump(addr, data) {
		mon.printf("%s\n", line)
	}
	return nil
}

type sharer interface {
	Share(pid int, va, size uint32) error
}

func (mon *Monitor) share(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: share <pid> <addr> <len>")
	}
	var nums [3]uint32
	for i, a := range args {
		n, err := parseNum(a)
		if err != nil {
			return err
		}
		nums[i] = n
	}
	s, ok := mon.m.Coord.(sharer)
	if !ok {
		return errors.Errorf("%s memory has no shared regions", mon.m.Config.Memory)
	}
	if err := s.Share(int(nums[0]), nums[1], nums[2]); err != nil {
		return err
	}
	mon.printf("pid %d: shared %#x+%#x\n", nums[0], nums[1], nums[2])
	return nil
}

func (mon *Monitor) input(args []string) error {
	line := strings.Join(args, " ") + "\n"
	if n := mon.m.Uart.Receive([]byte(line)); n < len(line) {
		mon.printf("uart full: dropped %d bytes\n", len(line)-n)
	}
	return nil
}

func (mon *Monitor) programs(args []string) error {
	names, err := mon.m.Kernel.Store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		mon.printf("%s\n", name)
	}
	return nil
}

func (mon *Monitor) exec(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: exec <name> [args...]")
	}
	t, err := mon.m.Kernel.Exec(args[0], args)
	if err != nil {
		return err
	}
	mon.printf("started %s\n", t)
	return nil
}

// Run reads commands until EOF or quit, keeping history in the user cache dir.
func (mon *Monitor) Run() error {
	configDirs := configdir.New("rvcorn", "monitor")
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	mon.out = rl.Stdout()
	for {
		ln := rl.Line()
		if ln.CanContinue() {
			continue
		} else if ln.CanBreak() {
			break
		}
		if !mon.Feed(ln.Line) {
			break
		}
		if t := mon.m.Kernel.Current(); t != nil {
			rl.SetPrompt(fmt.Sprintf("[%d] %#x> ", t.Pid, t.Ctx.PC))
		}
	}
	return nil
}
