package cpu

const (
	// hook trap delivery
	HOOK_INTR = 1

	// hook each executed instruction
	HOOK_CODE = 4

	// hook (after) each successful memory read/write
	HOOK_MEM_READ  = 1024
	HOOK_MEM_WRITE = 2048
)

// these errors are reported in MemError.Enum
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14
	MEM_MISALIGNED     = 22
	MEM_OUT_OF_FRAMES  = 23
	MEM_OUT_OF_BOUNDS  = 25
)

// these constants are used for page and partition protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)

// these constants specify the type of memory access
const (
	MEM_WRITE = 16
	MEM_READ  = 17
	MEM_FETCH = 18
	// a write that ignores write protection, used while populating a fresh image
	MEM_LOAD = 24
)

// RegCount is the size of the integer register file.
const RegCount = 32
