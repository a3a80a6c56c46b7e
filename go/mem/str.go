package mem

import (
	"github.com/pkg/errors"
)

var ErrTooManyArgs = errors.New("too many arguments")

// ReadString reads a NUL-terminated string of at most max bytes.
func ReadString(m Memory, addr uint32, max int) (string, error) {
	var buf []byte
	for i := 0; i < max; i++ {
		b, err := m.ReadByte(addr + uint32(i))
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", errors.Errorf("string at %#x longer than %d bytes", addr, max)
}

// ReadStringVector reads a NUL-terminated array of string pointers.
func ReadStringVector(m Memory, addr uint32) ([]string, error) {
	var out []string
	if addr == 0 {
		return out, nil
	}
	for i := 0; ; i++ {
		if i >= MAX_ARGS {
			return nil, errors.Wrapf(ErrTooManyArgs, "string vector at %#x has more than %d entries", addr, MAX_ARGS)
		}
		ptr, err := m.ReadWord(addr + uint32(i*4))
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			return out, nil
		}
		s, err := ReadString(m, ptr, MAX_STRLEN)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// Read copies n bytes starting at addr.
func Read(m Memory, addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := m.ReadByte(addr + uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
