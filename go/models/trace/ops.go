package trace

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

const (
	OP_NOP     = 0
	OP_SWITCH  = 1
	OP_SYSCALL = 2
	OP_EXIT    = 3
	OP_TRAP    = 4
)

// Op is one kernel event. Pack writes exactly Sizeof bytes, op code first.
type Op interface {
	Sizeof() int
	Pack(p []byte)
	Unpack(r io.Reader) (int, error)
	String() string
}

// Unpack reads the op code and the op that follows it.
func Unpack(r io.Reader) (Op, int, error) {
	var tmp [1]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, 0, err
	}
	var op Op
	switch tmp[0] {
	case OP_NOP:
		op = &OpNop{}
	case OP_SWITCH:
		op = &OpSwitch{}
	case OP_SYSCALL:
		op = &OpSyscall{}
	case OP_EXIT:
		op = &OpExit{}
	case OP_TRAP:
		op = &OpTrap{}
	default:
		return nil, 1, errors.Errorf("unknown op: %d", tmp[0])
	}
	n, err := op.Unpack(r)
	return op, n + 1, err
}

// reads len(vals) little-endian words
func readWords(r io.Reader, vals ...*uint32) (int, error) {
	buf := make([]byte, 4*len(vals))
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return n, err
	}
	for i, v := range vals {
		*v = order.Uint32(buf[i*4:])
	}
	return n, nil
}

type OpNop struct{}

func (o *OpNop) Sizeof() int                     { return 1 }
func (o *OpNop) Pack(p []byte)                   { p[0] = OP_NOP }
func (o *OpNop) Unpack(r io.Reader) (int, error) { return 0, nil }
func (o *OpNop) String() string                  { return "nop" }

// OpSwitch records the scheduler handing the CPU to Pid at PC.
type OpSwitch struct {
	Pid uint32
	PC  uint32
}

func (o *OpSwitch) Sizeof() int { return 1 + 4 + 4 }
func (o *OpSwitch) Pack(p []byte) {
	p[0] = OP_SWITCH
	order.PutUint32(p[1:], o.Pid)
	order.PutUint32(p[5:], o.PC)
}
func (o *OpSwitch) Unpack(r io.Reader) (int, error) {
	return readWords(r, &o.Pid, &o.PC)
}
func (o *OpSwitch) String() string {
	return fmt.Sprintf("switch pid %d pc %#08x", o.Pid, o.PC)
}

type OpSyscall struct {
	Pid  uint32
	Num  uint32
	Ret  uint32
	Args []uint32
}

func (o *OpSyscall) Sizeof() int {
	return 1 + 4 + 4 + 4 + 1 + len(o.Args)*4
}
func (o *OpSyscall) Pack(p []byte) {
	p[0] = OP_SYSCALL
	order.PutUint32(p[1:], o.Pid)
	order.PutUint32(p[5:], o.Num)
	order.PutUint32(p[9:], o.Ret)
	p[13] = uint8(len(o.Args))
	for i, v := range o.Args {
		order.PutUint32(p[14+i*4:], v)
	}
}
func (o *OpSyscall) Unpack(r io.Reader) (int, error) {
	total, err := readWords(r, &o.Pid, &o.Num, &o.Ret)
	if err != nil {
		return total, errors.Wrap(err, "syscall unpack")
	}
	var count [1]byte
	n, err := io.ReadFull(r, count[:])
	total += n
	if err != nil {
		return total, errors.Wrap(err, "syscall unpack")
	}
	o.Args = make([]uint32, count[0])
	ptrs := make([]*uint32, len(o.Args))
	for i := range o.Args {
		ptrs[i] = &o.Args[i]
	}
	n, err = readWords(r, ptrs...)
	return total + n, errors.Wrap(err, "syscall unpack")
}
func (o *OpSyscall) String() string {
	return fmt.Sprintf("pid %d syscall %d%x = %d", o.Pid, o.Num, o.Args, int32(o.Ret))
}

type OpExit struct {
	Pid  uint32
	Code int32
}

func (o *OpExit) Sizeof() int { return 1 + 4 + 4 }
func (o *OpExit) Pack(p []byte) {
	p[0] = OP_EXIT
	order.PutUint32(p[1:], o.Pid)
	order.PutUint32(p[5:], uint32(o.Code))
}
func (o *OpExit) Unpack(r io.Reader) (int, error) {
	var code uint32
	n, err := readWords(r, &o.Pid, &code)
	o.Code = int32(code)
	return n, err
}
func (o *OpExit) String() string {
	return fmt.Sprintf("pid %d exit %d", o.Pid, o.Code)
}

type OpTrap struct {
	Pid   uint32
	Cause uint32
	Tval  uint32
	EPC   uint32
}

func (o *OpTrap) Sizeof() int { return 1 + 4*4 }
func (o *OpTrap) Pack(p []byte) {
	p[0] = OP_TRAP
	order.PutUint32(p[1:], o.Pid)
	order.PutUint32(p[5:], o.Cause)
	order.PutUint32(p[9:], o.Tval)
	order.PutUint32(p[13:], o.EPC)
}
func (o *OpTrap) Unpack(r io.Reader) (int, error) {
	return readWords(r, &o.Pid, &o.Cause, &o.Tval, &o.EPC)
}
func (o *OpTrap) String() string {
	return fmt.Sprintf("pid %d trap cause %d tval %#x epc %#08x", o.Pid, o.Cause, o.Tval, o.EPC)
}
