// Package loader reads RV32 ELF executables and copies them into a memory context.
package loader

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

type Segment struct {
	Addr   uint32
	Filesz uint32
	Memsz  uint32
	Offset uint32
	Prot   int
	Data   []byte
}

func (s Segment) End() uint32 { return s.Addr + s.Memsz }

func (s Segment) String() string {
	prot := []byte("---")
	if s.Prot&cpu.PROT_READ != 0 {
		prot[0] = 'r'
	}
	if s.Prot&cpu.PROT_WRITE != 0 {
		prot[1] = 'w'
	}
	if s.Prot&cpu.PROT_EXEC != 0 {
		prot[2] = 'x'
	}
	return fmt.Sprintf("0x%08x-0x%08x %s file %#x", s.Addr, s.End(), prot, s.Filesz)
}

// Layout summarizes a loaded image.
type Layout struct {
	Entry     uint32
	TextStart uint32
	TextSize  uint32
	DataStart uint32
	DataSize  uint32
	HeapStart uint32
}

// Load parses image and writes its segments into m, zero filling each
// segment past its file size.
func Load(m mem.Memory, image []byte) (*Layout, error) {
	l, err := NewElfLoader(bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	segs, err := l.Segments()
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		for i := uint32(0); i < seg.Memsz; i++ {
			var b byte
			if i < seg.Filesz {
				b = seg.Data[i]
			}
			if err := m.WriteDuringLoad(seg.Addr+i, b); err != nil {
				return nil, errors.Wrapf(err, "loading segment %s", seg)
			}
		}
	}
	layout := l.Layout()
	return &layout, nil
}

// RequiredMemory returns the highest loadable address rounded up to a page.
func RequiredMemory(image []byte) (uint32, error) {
	l, err := NewElfLoader(bytes.NewReader(image))
	if err != nil {
		return 0, err
	}
	return l.RequiredMemory(), nil
}
