package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvcorn/rvcorn/go/models/trace"
)

func writeTrace(t *testing.T) string {
	name := filepath.Join(t.TempDir(), "trace")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	tw, err := trace.NewWriter(f, "paged", "round_robin")
	if err != nil {
		t.Fatal(err)
	}
	ops := []trace.Op{
		&trace.OpSwitch{Pid: 1, PC: 0x1000},
		&trace.OpSyscall{Pid: 1, Num: 64, Ret: 3, Args: []uint32{1, 0x2000, 3}},
		&trace.OpSwitch{Pid: 2, PC: 0x1000},
		&trace.OpTrap{Pid: 2, Cause: 2, EPC: 0x1004},
		&trace.OpExit{Pid: 2, Code: -1},
	}
	for _, op := range ops {
		if err := tw.Pack(op); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func openTrace(t *testing.T, name string) *trace.TraceReader {
	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	tf, err := trace.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	return tf
}

func TestPrintPretty(t *testing.T) {
	tf := openTrace(t, writeTrace(t))
	defer tf.Close()
	var out bytes.Buffer
	if err := PrintPretty(tf, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"memory paged", "[1] write[1 2000 3] = 3", "[2] illegal instruction at 0x00001004", "pid 2 exit -1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestPrintSummary(t *testing.T) {
	tf := openTrace(t, writeTrace(t))
	defer tf.Close()
	var out bytes.Buffer
	if err := PrintSummary(tf, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("summary:\n%s", out.String())
	}
	if f := strings.Fields(lines[2]); strings.Join(f, " ") != "2 1 0 1 -1" {
		t.Fatalf("pid 2 summary %q", lines[2])
	}
	if f := strings.Fields(lines[1]); strings.Join(f, " ") != "1 1 1 0 -" {
		t.Fatalf("pid 1 summary %q", lines[1])
	}
}

func TestPrintJson(t *testing.T) {
	tf := openTrace(t, writeTrace(t))
	defer tf.Close()
	var out bytes.Buffer
	if err := PrintJson(tf, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 6 || !strings.Contains(lines[0], `"Scheduler":"round_robin"`) {
		t.Fatalf("json:\n%s", out.String())
	}
}
