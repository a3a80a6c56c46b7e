package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	rvcorn "github.com/rvcorn/rvcorn/go"
	"github.com/rvcorn/rvcorn/go/models"
)

type nullCloser struct{ io.Writer }

func (nullCloser) Close() error { return nil }

type RvcornCmd struct {
	Config *models.Config

	SetupFlags func() error
	RunMachine func(m *rvcorn.Machine) error
	Teardown   func()

	// NoPump leaves stdin alone instead of feeding it to the uart.
	NoPump bool

	Machine *rvcorn.Machine
	Flags   *flag.FlagSet
}

func NewRvcornCmd() *RvcornCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	return &RvcornCmd{Flags: fs}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints an error, and a stacktrace if available.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range err.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		widths := make([]int, 2)
		for _, f := range frames {
			for i, s := range f[:2] {
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
		for _, f := range frames {
			for i := 0; i < 2; i++ {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(os.Stderr, "%s()\n", f[2])
		}
	}
}

func (c *RvcornCmd) Run(argv []string) {
	fs := c.Flags
	def := models.DefaultConfig()

	strace := fs.Bool("strace", false, "trace syscalls")
	etrace := fs.Bool("etrace", false, "trace execution")
	rtrace := fs.Bool("rtrace", false, "trace register modification after each burst")
	schedtrace := fs.Bool("schedtrace", false, "trace task switches and exits")
	strsize := fs.Int("strsize", def.Strsize, "limit -strace'd strings to length (0 disables)")
	tracefile := fs.String("to", "", "binary kernel event trace output file")
	tnames := []string{"strace", "etrace", "rtrace", "schedtrace", "strsize", "to"}

	sched := fs.String("sched", def.Scheduler, "scheduler: round_robin, cooperative or priority")
	slice := fs.Int("slice", def.TimeSlice, "time slice in instructions")
	maxprocs := fs.Int("maxprocs", def.MaxProcs, "maximum live tasks")
	stack := fs.Uint("stack", uint(def.StackSize), "task stack size in bytes")
	uartbuf := fs.Int("uartbuf", def.UartBufferSize, "uart receive buffer size")
	stall := fs.Int("stall", def.StallLimit, "terminate a task after this many fetches of one pc")
	debugsys := fs.Bool("debugsys", false, "enable the debug_print syscall")
	filesys := fs.Bool("filesys", false, "reserved: file syscalls")
	dir := fs.String("dir", def.ProgramDir, "exec looks up <dir>/<name>.elf")

	memory := fs.String("mem", def.Memory, "memory backend: paged or contiguous")
	memsize := fs.Uint("memsize", uint(def.MemSize), "physical memory in bytes")
	pager := fs.String("pager", def.Pager, "paged backend: demand or eager")
	placement := fs.String("placement", def.Placement, "contiguous backend: first_fit or best_fit")

	verbose := fs.Bool("v", false, "verbose output")
	color := fs.Bool("color", isatty.IsTerminal(os.Stderr.Fd()), "colorize diagnostics")
	outfile := fs.String("o", "", "redirect debugging output to file (default stderr)")
	savepost := fs.String("savepost", "", "save state to file after emulation ends")
	cpuprofile := fs.String("cpuprofile", "", "write cpu profile to <file>")
	memprofile := fs.String("memprofile", "", "write mem profile to <file>")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <program.elf> [args...]\n\nOptions:\n", argv[0])
		var flags, tflags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) {
			for _, name := range tnames {
				if name == f.Name {
					tflags = append(tflags, f)
					return
				}
			}
			flags = append(flags, f)
		})
		models.PrintFlags(os.Stderr, flags)
		fmt.Fprintf(os.Stderr, "\nTrace Options:\n")
		models.PrintFlags(os.Stderr, tflags)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			panic(err)
		}
	}
	fs.Parse(argv[1:])
	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(f)
	}

	config := &models.Config{
		Color:      *color,
		TraceExec:  *etrace,
		TraceReg:   *rtrace,
		TraceSched: *schedtrace,
		TraceSys:   *strace,
		Verbose:    *verbose,
		Strsize:    *strsize,

		Scheduler:           *sched,
		TimeSlice:           *slice,
		MaxProcs:            *maxprocs,
		StackSize:           uint32(*stack),
		UartBufferSize:      *uartbuf,
		StallLimit:          *stall,
		EnableDebugSyscalls: *debugsys,
		EnableFileSyscalls:  *filesys,
		ProgramDir:          *dir,

		Memory:    *memory,
		MemSize:   uint32(*memsize),
		Pager:     *pager,
		Placement: *placement,
	}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(err)
		}
		config.Output = out
	} else {
		config.Output = nullCloser{colorable.NewColorableStderr()}
	}
	c.Config = config

	m, err := rvcorn.NewMachine(config, os.Stdout)
	if err != nil {
		PrintError(err)
		os.Exit(1)
	}
	c.Machine = m
	// won't run on os.Exit(), so it's manually run below
	teardown := func() {
		m.Close()
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not write heap profile: %s\n", err)
			} else {
				pprof.WriteHeapProfile(f)
				f.Close()
			}
		}
		if c.Teardown != nil {
			c.Teardown()
		}
	}
	fail := func(err error) {
		PrintError(err)
		teardown()
		os.Exit(1)
	}
	if *tracefile != "" {
		if err := m.TraceTo(*tracefile); err != nil {
			fail(err)
		}
	}
	if _, err := m.BootFile(args[0], args[1:]); err != nil {
		fail(err)
	}
	if !c.NoPump {
		m.Uart.Pump(os.Stdin)
	}

	if c.RunMachine != nil {
		err = c.RunMachine(m)
	} else {
		err = m.Run()
	}
	if *savepost != "" {
		if serr := m.Save(*savepost); serr != nil {
			PrintError(serr)
		}
	}
	if err != nil {
		if e, ok := err.(models.ExitStatus); ok {
			teardown()
			os.Exit(int(e))
		}
		fail(err)
	}
	teardown()
}
