package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func checkWidth(size, have int) error {
	if size != 1 && size != 2 && size != 4 {
		return errors.Errorf("unsupported uint size: %d", size)
	}
	if have < size {
		return errors.Errorf("buffer too small (%d < %d)", have, size)
	}
	return nil
}

// PackUint stores the low size bytes of n into buf, allocating buf when nil.
func PackUint(order binary.ByteOrder, size int, buf []byte, n uint32) ([]byte, error) {
	if buf == nil {
		buf = make([]byte, size)
	}
	if err := checkWidth(size, len(buf)); err != nil {
		return nil, err
	}
	buf = buf[:size]
	switch size {
	case 1:
		buf[0] = byte(n)
	case 2:
		order.PutUint16(buf, uint16(n))
	default:
		order.PutUint32(buf, n)
	}
	return buf, nil
}

func UnpackUint(order binary.ByteOrder, size int, buf []byte) (uint32, error) {
	if err := checkWidth(size, len(buf)); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint32(buf[0]), nil
	case 2:
		return uint32(order.Uint16(buf)), nil
	}
	return order.Uint32(buf), nil
}
