package monitor

import (
	"os"

	rvcorn "github.com/rvcorn/rvcorn/go"
	"github.com/rvcorn/rvcorn/go/cmd"
	"github.com/rvcorn/rvcorn/go/ui"
)

func Main(args []string) {
	c := cmd.NewRvcornCmd()
	c.NoPump = true
	c.RunMachine = func(m *rvcorn.Machine) error {
		return ui.NewMonitor(m, os.Stdout).Run()
	}
	c.Run(args)
}

func init() { cmd.Register("monitor", "single-step a program in an interactive monitor", Main) }
