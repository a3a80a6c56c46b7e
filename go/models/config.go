package models

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	SCHED_ROUND_ROBIN = "round_robin"
	SCHED_COOPERATIVE = "cooperative"
	SCHED_PRIORITY    = "priority"

	MEM_PAGED      = "paged"
	MEM_CONTIGUOUS = "contiguous"

	PAGER_DEMAND = "demand"
	PAGER_EAGER  = "eager"

	PLACE_FIRST_FIT = "first_fit"
	PLACE_BEST_FIT  = "best_fit"
)

type Config struct {
	Output io.WriteCloser

	Color      bool
	TraceExec  bool
	TraceReg   bool
	TraceSched bool
	TraceSys   bool
	Verbose    bool
	Strsize    int

	// kernel
	Scheduler           string
	TimeSlice           int
	MaxProcs            int
	StackSize           uint32
	UartBufferSize      int
	StallLimit          int
	EnableDebugSyscalls bool
	EnableFileSyscalls  bool
	ProgramDir          string

	// memory
	Memory    string
	MemSize   uint32
	Pager     string
	Placement string
}

func DefaultConfig() *Config {
	return &Config{
		Strsize:        30,
		Scheduler:      SCHED_ROUND_ROBIN,
		TimeSlice:      1000,
		MaxProcs:       64,
		StackSize:      8192,
		UartBufferSize: 256,
		StallLimit:     1000,
		ProgramDir:     ".",
		Memory:         MEM_PAGED,
		MemSize:        16 * 1024 * 1024,
		Pager:          PAGER_DEMAND,
		Placement:      PLACE_FIRST_FIT,
	}
}

// Init fills in the output stream if unset.
func (c *Config) Init() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return c
}

func oneOf(field, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return errors.Errorf("invalid %s %q (want one of %v)", field, val, allowed)
}

func (c *Config) Validate() error {
	if err := oneOf("scheduler", c.Scheduler, SCHED_ROUND_ROBIN, SCHED_COOPERATIVE, SCHED_PRIORITY); err != nil {
		return err
	}
	if err := oneOf("memory", c.Memory, MEM_PAGED, MEM_CONTIGUOUS); err != nil {
		return err
	}
	if err := oneOf("pager", c.Pager, PAGER_DEMAND, PAGER_EAGER); err != nil {
		return err
	}
	if err := oneOf("placement", c.Placement, PLACE_FIRST_FIT, PLACE_BEST_FIT); err != nil {
		return err
	}
	switch {
	case c.TimeSlice <= 0:
		return errors.Errorf("time slice must be positive: %d", c.TimeSlice)
	case c.MaxProcs <= 0:
		return errors.Errorf("max procs must be positive: %d", c.MaxProcs)
	case c.StackSize == 0:
		return errors.New("stack size must be positive")
	case c.UartBufferSize <= 0:
		return errors.Errorf("uart buffer size must be positive: %d", c.UartBufferSize)
	case c.MemSize < 64*1024:
		return errors.Errorf("memory size too small: %#x", c.MemSize)
	case c.StackSize >= c.MemSize:
		return errors.Errorf("stack size %#x does not fit in memory %#x", c.StackSize, c.MemSize)
	}
	return nil
}
