// Package mem defines the memory contract shared by the instruction engine,
// the loader and the kernel, and the pieces common to both backends.
package mem

import (
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

const (
	PAGE_SIZE  = 4096
	PAGE_SHIFT = 12

	// device window, routed to the UART regardless of backend
	UART_BASE uint32 = 0x10000000
	UART_SIZE uint32 = 0x1000

	UART_TX_DATA = UART_BASE + 0x0
	UART_RX_DATA = UART_BASE + 0x4
	UART_STATUS  = UART_BASE + 0x8
	UART_CONTROL = UART_BASE + 0xC

	// heap margin added to every image allocation
	HEAP_MARGIN = 64 * 1024
	// fork fallback slack when the parent's size is unknown
	FORK_SLACK = 1024 * 1024

	MAX_ARGS   = 64
	MAX_STRLEN = 4096
)

// Memory is the byte-addressable port seen by the CPU, the loader and the syscall layer.
// Addresses are virtual addresses of the active context.
type Memory interface {
	ReadByte(addr uint32) (uint8, error)
	ReadHalf(addr uint32) (uint16, error)
	ReadWord(addr uint32) (uint32, error)
	WriteByte(addr uint32, val uint8) error
	WriteHalf(addr uint32, val uint16) error
	WriteWord(addr uint32, val uint32) error

	// FetchWord reads an instruction, checking execute permission.
	FetchWord(addr uint32) (uint32, error)
	// WriteDuringLoad writes while populating a fresh image, bypassing write protection.
	WriteDuringLoad(addr uint32, val uint8) error
}

// Translator maps an address of the active context to a physical address.
// access is one of cpu.MEM_READ, MEM_WRITE, MEM_FETCH, MEM_LOAD.
type Translator interface {
	Translate(addr uint32, size int, access int) (uint32, error)
}

// Device is a memory-mapped register file. off is relative to the window base.
type Device interface {
	Read(off uint32) uint32
	Write(off uint32, val uint32)
}

// Layout is the stack placement handed back by Coordinator.Allocate.
type Layout struct {
	StackBase uint32
	StackSize uint32
}

func (l Layout) StackTop() uint32 {
	return l.StackBase + l.StackSize
}

// Coordinator is the process-level face of a memory backend.
// The kernel depends only on this contract, never on which backend is active.
type Coordinator interface {
	// Allocate creates the memory context for pid, sized for an image plus heap and stack.
	Allocate(pid int, size uint32) (Layout, error)
	// Free destroys pid's memory context. Freeing an unknown pid is a no-op.
	Free(pid int)
	// Copy duplicates parent's memory into child's already allocated context.
	Copy(parent, child int) error
	// SwitchContext makes pid the active translation context.
	SwitchContext(pid int)
	// SetupStack writes args onto pid's stack and returns the new stack pointer.
	SetupStack(pid int, args []string, layout Layout) (uint32, error)
	// Size returns the allocation size recorded for pid, or 0.
	Size(pid int) uint32
	// Memory returns the port that reads and writes the active context.
	Memory() Memory
	Name() string
}

func isDevice(addr uint32) bool {
	return addr >= UART_BASE && addr < UART_BASE+UART_SIZE
}

func misaligned(access int, addr uint32, size int) error {
	if addr&uint32(size-1) != 0 {
		return cpu.NewMemError(access, addr, size, cpu.MEM_MISALIGNED)
	}
	return nil
}
