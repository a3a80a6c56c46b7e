package uart

import (
	"bytes"
	"strings"
	"testing"
)

func TestFifo(t *testing.T) {
	u := New(nil, 4)
	if u.Ready() {
		t.Fatal("empty uart reports ready")
	}
	if v := u.Read(RX_DATA); v != 0 {
		t.Fatalf("empty RX read returned %#x", v)
	}
	if n := u.Receive([]byte("abcdef")); n != 4 {
		t.Fatalf("Receive() accepted %d bytes past a 4 byte fifo", n)
	}
	if u.Dropped() != 2 {
		t.Fatalf("dropped = %d, expected 2", u.Dropped())
	}
	if u.Read(STATUS)&RX_READY == 0 {
		t.Fatal("RX_READY not set after Receive")
	}
	for _, c := range "abcd" {
		if v := u.Read(RX_DATA); v != uint32(c) {
			t.Fatalf("RX read %q, expected %q", v, c)
		}
	}
	if u.Read(STATUS)&RX_READY != 0 {
		t.Fatal("RX_READY still set after draining")
	}
	if u.Read(STATUS)&TX_READY == 0 {
		t.Fatal("TX_READY must always be set")
	}
}

func TestTransmitControl(t *testing.T) {
	var out bytes.Buffer
	u := New(&out, 0)
	for _, c := range []byte("hi\n") {
		u.Write(TX_DATA, uint32(c))
	}
	if out.String() != "hi\n" {
		t.Fatalf("transmitted %q", out.String())
	}
	u.Write(CONTROL, 0x1234)
	if u.Read(CONTROL) != 0x1234 {
		t.Fatal("control register did not pass through")
	}
}

func TestPump(t *testing.T) {
	u := New(nil, 64)
	<-u.Pump(strings.NewReader("one\ntwo\n"))
	if u.Buffered() != 8 {
		t.Fatalf("buffered %d bytes, expected 8", u.Buffered())
	}
	var got []byte
	for u.Ready() {
		got = append(got, byte(u.Read(RX_DATA)))
	}
	if string(got) != "one\ntwo\n" {
		t.Fatalf("pumped %q", got)
	}
}
