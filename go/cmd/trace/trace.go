package trace

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/cmd"
	"github.com/rvcorn/rvcorn/go/cpu/rv32"
	"github.com/rvcorn/rvcorn/go/kernel/rvk"
	"github.com/rvcorn/rvcorn/go/models/trace"
)

// each walks the remaining ops in tf.
func each(tf *trace.TraceReader, cb func(op trace.Op) error) error {
	for {
		op, err := tf.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace operation")
		}
		if err := cb(op); err != nil {
			return err
		}
	}
}

func PrintJson(tf *trace.TraceReader, w io.Writer) error {
	out, err := json.Marshal(&tf.Header)
	if err != nil {
		return errors.Wrap(err, "error printing header")
	}
	fmt.Fprintf(w, "%s\n", out)
	return each(tf, func(op trace.Op) error {
		out, _ := json.Marshal(op)
		fmt.Fprintf(w, "%s\n", out)
		return nil
	})
}

func PrintPretty(tf *trace.TraceReader, w io.Writer) error {
	h := tf.Header
	fmt.Fprintf(w, "%s trace, memory %s, scheduler %s\n", h.Arch, h.Memory, h.Scheduler)
	return each(tf, func(op trace.Op) error {
		switch o := op.(type) {
		case *trace.OpSyscall:
			fmt.Fprintf(w, "[%d] %s%x = %d\n", o.Pid, rvk.SyscallName(o.Num), o.Args, int32(o.Ret))
		case *trace.OpTrap:
			fmt.Fprintf(w, "[%d] %s at %#08x (tval %#x)\n", o.Pid, rv32.CauseName(o.Cause), o.EPC, o.Tval)
		default:
			fmt.Fprintf(w, "%s\n", op)
		}
		return nil
	})
}

type pidSummary struct {
	switches, syscalls, traps int
	exit                      *int32
}

// PrintSummary prints per-task counts of switches, syscalls and traps.
func PrintSummary(tf *trace.TraceReader, w io.Writer) error {
	pids := make(map[uint32]*pidSummary)
	get := func(pid uint32) *pidSummary {
		s, ok := pids[pid]
		if !ok {
			s = &pidSummary{}
			pids[pid] = s
		}
		return s
	}
	err := each(tf, func(op trace.Op) error {
		switch o := op.(type) {
		case *trace.OpSwitch:
			get(o.Pid).switches++
		case *trace.OpSyscall:
			get(o.Pid).syscalls++
		case *trace.OpTrap:
			get(o.Pid).traps++
		case *trace.OpExit:
			code := o.Code
			get(o.Pid).exit = &code
		}
		return nil
	})
	if err != nil {
		return err
	}
	keys := make([]int, 0, len(pids))
	for pid := range pids {
		keys = append(keys, int(pid))
	}
	sort.Ints(keys)
	fmt.Fprintf(w, "%5s %8s %8s %6s %s\n", "pid", "switches", "syscalls", "traps", "exit")
	for _, pid := range keys {
		s := pids[uint32(pid)]
		exit := "-"
		if s.exit != nil {
			exit = fmt.Sprintf("%d", *s.exit)
		}
		fmt.Fprintf(w, "%5d %8d %8d %6d %s\n", pid, s.switches, s.syscalls, s.traps, exit)
	}
	return nil
}

func Main(args []string) {
	fs := flag.NewFlagSet("args", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output trace as line-delimited JSON objects")
	summaryFlag := fs.Bool("summary", false, "output per-task totals")
	fs.Usage = func() {
		fmt.Printf("Usage: %s [options] <tracefile>\n", args[0])
		fs.PrintDefaults()
	}

	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	args = fs.Args()

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open: %s %v\n", args[0], err)
		os.Exit(1)
	}
	tf, err := trace.NewReader(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening trace file: %v\n", err)
		os.Exit(1)
	}
	defer tf.Close()
	switch {
	case *jsonFlag:
		err = PrintJson(tf, os.Stdout)
	case *summaryFlag:
		err = PrintSummary(tf, os.Stdout)
	default:
		err = PrintPretty(tf, os.Stdout)
	}
	if err != nil {
		cmd.PrintError(err)
		os.Exit(1)
	}
}

func init() { cmd.Register("trace", "dump a saved kernel event trace", Main) }
