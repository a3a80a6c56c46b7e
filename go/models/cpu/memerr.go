package cpu

import (
	"fmt"
)

type MemError struct {
	Addr   uint32
	Size   int
	Access int
	Enum   int
}

func NewMemError(access int, addr uint32, size, enum int) *MemError {
	return &MemError{Addr: addr, Size: size, Access: access, Enum: enum}
}

// Unmapped returns the unmapped-fault enum for an access kind.
func Unmapped(access int) int {
	switch access {
	case MEM_FETCH:
		return MEM_FETCH_UNMAPPED
	case MEM_WRITE, MEM_LOAD:
		return MEM_WRITE_UNMAPPED
	default:
		return MEM_READ_UNMAPPED
	}
}

// Prot returns the protection-fault enum for an access kind.
func Prot(access int) int {
	switch access {
	case MEM_FETCH:
		return MEM_FETCH_PROT
	case MEM_WRITE, MEM_LOAD:
		return MEM_WRITE_PROT
	default:
		return MEM_READ_PROT
	}
}

func (m *MemError) Fetch() bool { return m.Access == MEM_FETCH }
func (m *MemError) Write() bool { return m.Access == MEM_WRITE || m.Access == MEM_LOAD }

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	case MEM_MISALIGNED:
		reason = "misaligned access"
	case MEM_OUT_OF_FRAMES:
		reason = "out of physical frames"
	case MEM_OUT_OF_BOUNDS:
		reason = "physical access out of bounds"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}
