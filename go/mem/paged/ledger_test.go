package paged

import (
	"testing"
)

func TestLedgerRefs(t *testing.T) {
	l := NewLedger(4)
	a := FrameOwner{Pid: 1, VPN: 7}
	b := FrameOwner{Pid: 2, VPN: 7}
	f, ok := l.Alloc(a)
	if !ok || l.FreeCount() != 3 || l.Refs(f) != 1 {
		t.Fatalf("alloc: f=%d ok=%v free=%d refs=%d", f, ok, l.FreeCount(), l.Refs(f))
	}
	if !l.Evictable(f) {
		t.Fatal("private frame should be evictable")
	}
	l.Share(f, b)
	if l.Refs(f) != 2 || l.Evictable(f) {
		t.Fatal("shared frame should have two refs and not be evictable")
	}
	if l.Drop(f, a) {
		t.Fatal("frame freed with a remaining owner")
	}
	if o, _ := l.Owner(f); o != b {
		t.Fatalf("owner after drop: %+v", o)
	}
	if !l.Drop(f, b) || l.Used(f) || l.FreeCount() != 4 {
		t.Fatal("frame should be free once its last owner drops it")
	}
}

func TestLedgerExhaust(t *testing.T) {
	l := NewLedger(2)
	l.Alloc(tableOwner)
	f, _ := l.Alloc(FrameOwner{Pid: 1})
	if _, ok := l.Alloc(FrameOwner{Pid: 1, VPN: 1}); ok {
		t.Fatal("alloc succeeded on a full ledger")
	}
	l.Pin(f, true)
	for i := 0; i < l.Frames(); i++ {
		if l.Evictable(i) {
			t.Fatalf("frame %d evictable: tables and pinned frames must not be", i)
		}
	}
}

func TestClockSecondChance(t *testing.T) {
	c := NewClock(3)
	for i := 0; i < 3; i++ {
		c.OnMap(i)
	}
	all := func(int) bool { return true }
	if v := c.Victim(all); v != 0 {
		t.Fatalf("victim %d, want 0 after a full clearing sweep", v)
	}
	if c.Referenced(1) {
		t.Fatal("sweep left frame 1 referenced")
	}
	c.OnAccess(1)
	if !c.Referenced(1) {
		t.Fatal("access did not set the reference bit")
	}
	if v := c.Victim(all); v != 2 {
		t.Fatalf("victim %d, want 2 (1 was referenced)", v)
	}
	if c.Referenced(1) {
		t.Fatal("second chance did not clear frame 1")
	}
	if v := c.Victim(func(int) bool { return false }); v != -1 {
		t.Fatalf("victim %d with nothing evictable", v)
	}
}
