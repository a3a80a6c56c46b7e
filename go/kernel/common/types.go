package common

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
)

type (
	Buf struct {
		Addr uint32
		K    *KernelBase
	}
	Obuf struct{ Buf }
	Len  uint32
	Fd   int32
	Ptr  uint32
)

func NewBuf(k Kernel, addr uint32) Buf {
	return Buf{K: k.Base(), Addr: addr}
}

// Struc returns a little-endian stream positioned at the buffer.
func (b Buf) Struc() *models.StrucStream {
	return &models.StrucStream{Stream: &memStream{m: b.K.Mem, addr: b.Addr}, Order: binary.LittleEndian}
}

func (b Buf) Pack(i interface{}) error {
	return errors.Wrap(b.Struc().Pack(i), "struc.Pack() failed")
}

func (b Buf) Unpack(i interface{}) error {
	return errors.Wrap(b.Struc().Unpack(i), "struc.Unpack() failed")
}

// ReadStr copies up to n bytes, stopping early at a NUL byte. n comes from
// the guest, so the buffer grows as bytes are read.
func (b Buf) ReadStr(n int) ([]byte, error) {
	size := n
	if size > mem.MAX_STRLEN {
		size = mem.MAX_STRLEN
	} else if size < 0 {
		size = 0
	}
	out := make([]byte, 0, size)
	for i := 0; i < n; i++ {
		c, err := b.K.Mem.ReadByte(b.Addr + uint32(i))
		if err != nil {
			return out, err
		}
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

// memStream reads and writes sequentially through a mem.Memory.
type memStream struct {
	m    mem.Memory
	addr uint32
}

func (s *memStream) Read(p []byte) (int, error) {
	for i := range p {
		b, err := s.m.ReadByte(s.addr)
		if err != nil {
			return i, err
		}
		p[i] = b
		s.addr++
	}
	return len(p), nil
}

func (s *memStream) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := s.m.WriteByte(s.addr, b); err != nil {
			return i, err
		}
		s.addr++
	}
	return len(p), nil
}
