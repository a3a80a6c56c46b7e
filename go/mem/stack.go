package mem

import (
	"github.com/pkg/errors"
)

// BuildStack lays out args below top: each string NUL-terminated and 16-byte
// aligned, then a NUL-terminated vector of pointers to them. It returns the
// new stack pointer, which points at the vector.
func BuildStack(m Memory, top uint32, args []string) (uint32, error) {
	if len(args) > MAX_ARGS {
		return 0, errors.Wrapf(ErrTooManyArgs, "%d > %d", len(args), MAX_ARGS)
	}
	sp := top
	ptrs := make([]uint32, len(args))
	for i, arg := range args {
		sp -= uint32(len(arg) + 1)
		sp &^= 0xF
		for j := 0; j < len(arg); j++ {
			if err := m.WriteByte(sp+uint32(j), arg[j]); err != nil {
				return 0, errors.Wrapf(err, "writing argv[%d]", i)
			}
		}
		if err := m.WriteByte(sp+uint32(len(arg)), 0); err != nil {
			return 0, errors.Wrapf(err, "writing argv[%d]", i)
		}
		ptrs[i] = sp
	}
	sp = (sp - uint32(len(args)+1)*4) &^ 0xF
	for i, p := range ptrs {
		if err := m.WriteWord(sp+uint32(i*4), p); err != nil {
			return 0, errors.Wrap(err, "writing argv vector")
		}
	}
	if err := m.WriteWord(sp+uint32(len(args)*4), 0); err != nil {
		return 0, errors.Wrap(err, "terminating argv vector")
	}
	return sp, nil
}
