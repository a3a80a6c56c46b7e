package models

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const usageWidth = 80

// wrapWords breaks text into lines no longer than width, keeping explicit
// newlines. A single word longer than width gets a line of its own.
func wrapWords(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			if line != "" && len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = ""
			}
			if line != "" {
				line += " "
			}
			line += word
		}
		lines = append(lines, line)
	}
	return lines
}

// PrintFlags writes one entry per flag: name, default and a usage string
// wrapped to fit usageWidth columns.
func PrintFlags(w io.Writer, flags []*flag.Flag) {
	nameWidth, defWidth := 0, 0
	defaults := make([]string, len(flags))
	for i, f := range flags {
		if f.DefValue != "" && f.DefValue != "[]" {
			defaults[i] = "(" + f.DefValue + ")"
		}
		if len(f.Name) > nameWidth {
			nameWidth = len(f.Name)
		}
		if len(defaults[i]) > defWidth {
			defWidth = len(defaults[i])
		}
	}
	indent := 2 + 1 + nameWidth + 1 + defWidth + 1
	descWidth := usageWidth - indent
	if descWidth < 20 {
		descWidth = 20
	}
	for i, f := range flags {
		fmt.Fprintf(w, "  -%-*s %-*s ", nameWidth, f.Name, defWidth, defaults[i])
		for j, line := range wrapWords(f.Usage, descWidth) {
			if j > 0 {
				fmt.Fprint(w, strings.Repeat(" ", indent))
			}
			fmt.Fprintln(w, line)
		}
	}
}
