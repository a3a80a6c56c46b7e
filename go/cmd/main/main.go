package main

import (
	"github.com/rvcorn/rvcorn/go/cmd"

	_ "github.com/rvcorn/rvcorn/go/cmd/run"

	_ "github.com/rvcorn/rvcorn/go/cmd/monitor"
	_ "github.com/rvcorn/rvcorn/go/cmd/trace"
)

func main() { cmd.Main() }
