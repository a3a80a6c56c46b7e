package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type subcommand struct {
	name, desc string
	main       func(args []string)
}

var subcommands []*subcommand

// Register adds a subcommand to the launcher. Names are listed in
// registration order.
func Register(name, desc string, main func(args []string)) {
	subcommands = append(subcommands, &subcommand{name, desc, main})
}

// lookup resolves an exact name or a unique prefix of one.
func lookup(name string) (*subcommand, error) {
	var hits []*subcommand
	for _, sc := range subcommands {
		if sc.name == name {
			return sc, nil
		}
		if strings.HasPrefix(sc.name, name) {
			hits = append(hits, sc)
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("command %q not found", name)
	case 1:
		return hits[0], nil
	}
	names := make([]string, len(hits))
	for i, sc := range hits {
		names[i] = sc.name
	}
	return nil, fmt.Errorf("command %q is ambiguous: %s", name, strings.Join(names, ", "))
}

func usage(w io.Writer) {
	width := 0
	for _, sc := range subcommands {
		if len(sc.name) > width {
			width = len(sc.name)
		}
	}
	fmt.Fprintln(w, "Commands:")
	for _, sc := range subcommands {
		fmt.Fprintf(w, "  %-*s  %s\n", width, sc.name, sc.desc)
	}
	fmt.Fprintf(w, "\nExample: %s run -sched priority -mem contiguous programs/shell.elf\n\n", os.Args[0])
}

// Main dispatches os.Args[1] to a registered subcommand.
func Main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	sc, err := lookup(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		usage(os.Stderr)
		os.Exit(1)
	}
	args := append([]string{os.Args[0] + " " + sc.name}, os.Args[2:]...)
	sc.main(args)
}
