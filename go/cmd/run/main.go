package run

import (
	"github.com/rvcorn/rvcorn/go/cmd"
)

func Main(args []string) {
	cmd.NewRvcornCmd().Run(args)
}

func init() { cmd.Register("run", "run an RV32 program under the kernel", Main) }
