package rv32

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
)

type flat struct{}

func (flat) Translate(addr uint32, size int, access int) (uint32, error) { return addr, nil }

const unmapped = 0x20000

func newTestCpu(t *testing.T, code ...interface{}) *Cpu {
	m := mem.NewBus(flat{}, mem.NewPhys(0x10000), nil)
	for i, b := range Program(code...) {
		if err := m.WriteDuringLoad(uint32(i), b); err != nil {
			t.Fatal(err)
		}
	}
	return New(m)
}

func step(t *testing.T, c *Cpu, n int) {
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d at %#x: %v", i, c.PC(), err)
		}
	}
}

// exec1 runs a single instruction placed at address 0.
func exec1(t *testing.T, c *Cpu, raw uint32) {
	if err := c.Mem.WriteWord(0, raw); err != nil {
		t.Fatal(err)
	}
	c.SetPC(0)
	step(t, c, 1)
}

func TestZeroRegister(t *testing.T) {
	c := newTestCpu(t, ADDI(ZERO, ZERO, 5), LUI(ZERO, 0x1000))
	step(t, c, 2)
	if c.Get(ZERO) != 0 {
		t.Fatalf("x0 = %d", c.Get(ZERO))
	}
}

func TestMulDiv(t *testing.T) {
	const MIN = 0x80000000
	neg := func(v int32) uint32 { return uint32(v) }
	tests := []struct {
		name   string
		f3     uint32
		a, b   uint32
		expect uint32
	}{
		{"mul", 0, 3, neg(-2), neg(-6)},
		{"mulh", 1, neg(-1), neg(-1), 0},
		{"mulhsu", 2, neg(-1), 0xffffffff, 0xffffffff},
		{"mulhu", 3, 0xffffffff, 0xffffffff, 0xfffffffe},
		{"div", 4, neg(-7), 2, neg(-3)},
		{"div by zero", 4, 7, 0, 0xffffffff},
		{"div overflow", 4, MIN, neg(-1), MIN},
		{"divu", 5, 0xffffffff, 2, 0x7fffffff},
		{"divu by zero", 5, 7, 0, 0xffffffff},
		{"rem", 6, neg(-7), 2, neg(-1)},
		{"rem by zero", 6, 7, 0, 7},
		{"rem overflow", 6, MIN, neg(-1), 0},
		{"remu", 7, 7, 3, 1},
		{"remu by zero", 7, 7, 0, 7},
	}
	c := newTestCpu(t)
	for _, test := range tests {
		c.Set(A0, test.a)
		c.Set(A1, test.b)
		exec1(t, c, MulDiv(test.f3, A2, A0, A1))
		if got := c.Get(A2); got != test.expect {
			t.Errorf("%s(%#x, %#x) = %#x, want %#x", test.name, test.a, test.b, got, test.expect)
		}
	}
}

func TestLoadImmediate(t *testing.T) {
	for _, val := range []uint32{0, 1, 0x7ff, 0x800, 0xfff, 0xfffff800, 0x12345678, 0x80000000, 0xffffffff} {
		words := LI(A0, val)
		c := newTestCpu(t, words)
		step(t, c, len(words))
		if c.Get(A0) != val {
			t.Errorf("li %#x loaded %#x", val, c.Get(A0))
		}
	}
}

func TestImmediateEncoding(t *testing.T) {
	for _, off := range []int32{-4096, -4, 4, 4094} {
		if ins := Decode(BNE(A0, A1, off)); ins.ImmB != off {
			t.Errorf("branch offset %d decoded as %d", off, ins.ImmB)
		}
	}
	for _, off := range []int32{-1 << 20, -4, 8, 1<<20 - 2} {
		if ins := Decode(JAL(RA, off)); ins.ImmJ != off {
			t.Errorf("jump offset %d decoded as %d", off, ins.ImmJ)
		}
	}
	for _, off := range []int32{-2048, -1, 0, 2047} {
		if ins := Decode(SW(A0, A1, off)); ins.ImmS != off {
			t.Errorf("store offset %d decoded as %d", off, ins.ImmS)
		}
		if ins := Decode(LW(A0, A1, off)); ins.ImmI != off {
			t.Errorf("load offset %d decoded as %d", off, ins.ImmI)
		}
	}
	if ins := Decode(LUI(A0, 0xfffff000)); ins.ImmU != 0xfffff000 || ins.Rd != A0 {
		t.Errorf("lui decoded as %v", ins.String())
	}
}

func TestShifts(t *testing.T) {
	c := newTestCpu(t)
	c.Set(A0, 0x80000010)
	exec1(t, c, EncI(OP_IMM, A1, 5, A0, 0x400|4))
	if c.Get(A1) != 0xf8000001 {
		t.Fatalf("srai = %#x", c.Get(A1))
	}
	exec1(t, c, EncI(OP_IMM, A1, 5, A0, 4))
	if c.Get(A1) != 0x08000001 {
		t.Fatalf("srli = %#x", c.Get(A1))
	}
	c.Set(A2, 33)
	exec1(t, c, EncR(OP_REG, A1, 1, A0, A2, FUNCT7_BASE))
	if c.Get(A1) != 0x00000020 {
		t.Fatalf("sll uses low five bits: %#x", c.Get(A1))
	}
}

func TestLoadsStores(t *testing.T) {
	c := newTestCpu(t)
	c.Set(A0, 0x100)
	c.Set(A1, 0x8081f2f3)
	exec1(t, c, SW(A1, A0, 4))
	tests := []struct {
		name   string
		raw    uint32
		expect uint32
	}{
		{"lw", LW(A2, A0, 4), 0x8081f2f3},
		{"lb", LB(A2, A0, 4), 0xfffffff3},
		{"lbu", LBU(A2, A0, 4), 0xf3},
		{"lh", EncI(OP_LOAD, A2, 1, A0, 6), 0xffff8081},
		{"lhu", EncI(OP_LOAD, A2, 5, A0, 6), 0x8081},
	}
	for _, test := range tests {
		exec1(t, c, test.raw)
		if c.Get(A2) != test.expect {
			t.Errorf("%s = %#x, want %#x", test.name, c.Get(A2), test.expect)
		}
	}
	exec1(t, c, SB(A0, A0, 5))
	if w, _ := c.Mem.ReadWord(0x104); w != 0x808100f3 {
		t.Fatalf("sb wrote %#x", w)
	}
}

func TestBranches(t *testing.T) {
	c := newTestCpu(t)
	c.Set(A0, 0xffffffff)
	c.Set(A1, 1)
	tests := []struct {
		name  string
		raw   uint32
		taken bool
	}{
		{"blt signed", BLT(A0, A1, 16), true},
		{"bltu unsigned", EncB(6, A0, A1, 16), false},
		{"bge", EncB(5, A1, A0, 16), true},
		{"bgeu", EncB(7, A0, A1, 16), true},
		{"beq", BEQ(A0, A1, 16), false},
		{"bne", BNE(A0, A1, 16), true},
	}
	for _, test := range tests {
		exec1(t, c, test.raw)
		if taken := c.PC() == 16; taken != test.taken {
			t.Errorf("%s: pc %#x", test.name, c.PC())
		}
	}
}

func TestJumps(t *testing.T) {
	c := newTestCpu(t)
	c.Set(A0, 0x101)
	exec1(t, c, JALR(RA, A0, 0))
	if c.PC() != 0x100 || c.Get(RA) != 4 {
		t.Fatalf("jalr pc %#x ra %#x", c.PC(), c.Get(RA))
	}
	exec1(t, c, AUIPC(A1, 0x1000))
	if c.Get(A1) != 0x1000 {
		t.Fatalf("auipc %#x", c.Get(A1))
	}
}

func TestCSRPrivilege(t *testing.T) {
	c := newTestCpu(t)
	if c.CSR.Get(MISA) != MISA_INIT {
		t.Fatalf("misa %#x", c.CSR.Get(MISA))
	}
	c.Set(A1, 5)
	c.Priv = PRIV_U
	exec1(t, c, CSRRW(A0, MSCRATCH, A1))
	if c.CSR.Get(MSCRATCH) != 0 {
		t.Fatal("user mode wrote mscratch")
	}
	if _, trapped := c.TakeTrap(); trapped {
		t.Fatal("csr access from user mode trapped")
	}
	c.Priv = PRIV_S
	exec1(t, c, CSRRW(A0, SSCRATCH, A1))
	exec1(t, c, CSRRS(A0, MSTATUS, ZERO))
	if c.CSR.Get(SSCRATCH) != 5 || c.Get(A0) != 0 {
		t.Fatalf("sscratch %d, mstatus read %#x from S", c.CSR.Get(SSCRATCH), c.Get(A0))
	}
	c.Priv = PRIV_M
	exec1(t, c, CSRRW(A0, MSCRATCH, A1))
	exec1(t, c, CSRRS(A0, MSCRATCH, ZERO))
	if c.Get(A0) != 5 {
		t.Fatalf("mscratch %d", c.Get(A0))
	}
}

func TestStatusMirror(t *testing.T) {
	b := NewCSRBank()
	b.Set(MSTATUS, STATUS_SIE|STATUS_MIE)
	if b.Get(SSTATUS) != STATUS_SIE {
		t.Fatalf("sstatus %#x", b.Get(SSTATUS))
	}
	b.Set(SSTATUS, STATUS_SPP)
	if m := b.Get(MSTATUS); m != STATUS_MIE|STATUS_SPP {
		t.Fatalf("mstatus %#x", m)
	}
}

func TestTrapAndMret(t *testing.T) {
	c := newTestCpu(t, uint32(0))
	c.Mem.WriteWord(0x100, MRET())
	c.CSR.Set(MTVEC, 0x100)
	c.Priv = PRIV_U
	step(t, c, 1)
	tr, ok := c.TakeTrap()
	if !ok || tr.Cause != CAUSE_ILLEGAL || tr.EPC != 0 || tr.Vector != 0x100 || tr.To != PRIV_M {
		t.Fatalf("trap %v", tr)
	}
	if c.PC() != 0x100 || c.Priv != PRIV_M || c.CSR.Get(MCAUSE) != CAUSE_ILLEGAL {
		t.Fatalf("pc %#x priv %s", c.PC(), c.Priv)
	}
	if mpp := c.CSR.Get(MSTATUS) & STATUS_MPP; mpp != 0 {
		t.Fatalf("mpp %#x", mpp)
	}
	c.CSR.Set(MEPC, 8)
	step(t, c, 1)
	if c.PC() != 8 || c.Priv != PRIV_U {
		t.Fatalf("mret to pc %#x priv %s", c.PC(), c.Priv)
	}
}

func TestDelegation(t *testing.T) {
	c := newTestCpu(t, uint32(0))
	c.Mem.WriteWord(0x200, SRET())
	c.CSR.Set(MEDELEG, 1<<CAUSE_ILLEGAL)
	c.CSR.Set(STVEC, 0x200)
	c.CSR.Set(MTVEC, 0x100)
	c.Priv = PRIV_U
	step(t, c, 1)
	if c.Priv != PRIV_S || c.PC() != 0x200 || c.CSR.Get(SCAUSE) != CAUSE_ILLEGAL || c.CSR.Get(MCAUSE) != 0 {
		t.Fatalf("delegated trap went to %s pc %#x", c.Priv, c.PC())
	}
	c.CSR.Set(SEPC, 4)
	step(t, c, 1)
	if c.Priv != PRIV_U || c.PC() != 4 {
		t.Fatalf("sret to %s pc %#x", c.Priv, c.PC())
	}
	// traps from S are never delegated
	c.Priv = PRIV_S
	c.SetPC(0)
	step(t, c, 1)
	if c.Priv != PRIV_M || c.PC() != 0x100 {
		t.Fatalf("trap from S went to %s pc %#x", c.Priv, c.PC())
	}
}

func TestMretFromUser(t *testing.T) {
	c := newTestCpu(t, MRET())
	c.Priv = PRIV_U
	step(t, c, 1)
	if tr, ok := c.TakeTrap(); !ok || tr.Cause != CAUSE_ILLEGAL || tr.From != PRIV_U {
		t.Fatalf("trap %v", tr)
	}
}

func TestRegDump(t *testing.T) {
	c := newTestCpu(t, ADDI(A0, ZERO, 5))
	step(t, c, 1)
	regs, err := c.RegDump()
	if err != nil || len(regs) != 33 {
		t.Fatalf("%d regs, %v", len(regs), err)
	}
	if r := regs[A0]; r.Name != RegNames[A0] || r.Val != 5 || !r.Default {
		t.Fatalf("a0 entry %+v", r)
	}
	if pc := regs[32]; pc.Name != "pc" || pc.Val != 4 {
		t.Fatalf("pc entry %+v", pc)
	}
}

func TestContextKeepsPriv(t *testing.T) {
	c := newTestCpu(t)
	c.Priv = PRIV_U
	ctx := c.ContextSave(nil)
	c.Priv = PRIV_M
	c.ContextRestore(ctx)
	if c.Priv != PRIV_U {
		t.Fatalf("restored priv %v", c.Priv)
	}
	ctx.Priv = uint32(PRIV_S)
	c.ContextRestore(ctx)
	if c.Priv != PRIV_S {
		t.Fatalf("restored priv %v", c.Priv)
	}
}

func TestFaultCauses(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint32
		cause uint32
		tval  uint32
	}{
		{"load", LW(A1, A0, 0), CAUSE_LOAD_FAULT, unmapped},
		{"store", SW(A1, A0, 0), CAUSE_STORE_FAULT, unmapped},
		{"fetch", JALR(ZERO, A0, 0), CAUSE_FETCH_FAULT, unmapped},
		{"misaligned", LW(A1, ZERO, 2), CAUSE_LOAD_FAULT, 2},
	}
	for _, test := range tests {
		c := newTestCpu(t)
		c.Set(A0, unmapped)
		exec1(t, c, test.raw)
		if test.name == "fetch" {
			step(t, c, 1)
		}
		tr, ok := c.TakeTrap()
		if !ok || tr.Cause != test.cause || tr.Tval != test.tval {
			t.Errorf("%s: trap %v", test.name, tr)
		}
	}
}

func TestEcall(t *testing.T) {
	c := newTestCpu(t, ECALL())
	step(t, c, 1)
	if !c.TakeEcall() || c.PC() != 4 {
		t.Fatalf("ecall not reported, pc %#x", c.PC())
	}
	if c.TakeEcall() {
		t.Fatal("ecall reported twice")
	}
}

func TestEbreak(t *testing.T) {
	c := newTestCpu(t, LI(A0, 0xfffffffd), LI(A7, SYS_EXIT), EBREAK())
	step(t, c, 2)
	err := c.Step()
	if exit, ok := err.(models.ExitStatus); !ok || exit != -3 {
		t.Fatalf("ebreak returned %v", err)
	}

	c = newTestCpu(t, EBREAK())
	step(t, c, 1)
	if tr, ok := c.TakeTrap(); !ok || tr.Cause != CAUSE_BREAKPOINT {
		t.Fatalf("trap %v", tr)
	}
}

func TestStall(t *testing.T) {
	c := newTestCpu(t, JAL(ZERO, 0))
	c.StallLimit = 10
	for i := 0; i < 100; i++ {
		if err := c.Step(); err != nil {
			if errors.Cause(err) != ErrStalled {
				t.Fatal(err)
			}
			return
		}
	}
	t.Fatal("self loop never stalled")
}
