package models

import (
	"strings"
	"testing"
)

func TestRepr(t *testing.T) {
	if s := Repr([]byte("hi\n"), 0); s != `"hi\x0a"` {
		t.Fatalf("repr %s", s)
	}
	if s := Repr([]byte("abcdefghijklmnop"), 8); !strings.HasSuffix(s, `"...`) || len(s) > 8+5 {
		t.Fatalf("clipped repr %s", s)
	}
}

func TestHexDump(t *testing.T) {
	lines := HexDump(0x1000, []byte("0123456789abcdefXY"))
	if len(lines) != 2 {
		t.Fatalf("lines %q", lines)
	}
	if !strings.HasPrefix(lines[1], "0x00001010: 5859    ") || !strings.HasSuffix(lines[1], "[XY]") {
		t.Fatalf("tail line %q", lines[1])
	}
}
