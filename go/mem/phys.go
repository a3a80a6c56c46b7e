package mem

import (
	"encoding/binary"

	"github.com/rvcorn/rvcorn/go/models/cpu"
)

// Phys is the flat physical byte store behind both backends.
type Phys struct {
	data  []byte
	order binary.ByteOrder
}

func NewPhys(size uint32) *Phys {
	return &Phys{data: make([]byte, size), order: binary.LittleEndian}
}

func (p *Phys) Size() uint32 { return uint32(len(p.data)) }

// Bytes exposes the backing array for snapshots and block moves.
func (p *Phys) Bytes() []byte { return p.data }

func (p *Phys) check(access int, addr uint32, size int) error {
	if uint64(addr)+uint64(size) > uint64(len(p.data)) {
		return cpu.NewMemError(access, addr, size, cpu.MEM_OUT_OF_BOUNDS)
	}
	return nil
}

func (p *Phys) ReadUint(access int, addr uint32, size int) (uint32, error) {
	if err := p.check(access, addr, size); err != nil {
		return 0, err
	}
	return cpu.UnpackUint(p.order, size, p.data[addr:])
}

func (p *Phys) WriteUint(access int, addr uint32, size int, val uint32) error {
	if err := p.check(access, addr, size); err != nil {
		return err
	}
	_, err := cpu.PackUint(p.order, size, p.data[addr:], val)
	return err
}

// Zero clears size bytes at addr.
func (p *Phys) Zero(addr, size uint32) {
	b := p.data[addr : addr+size]
	for i := range b {
		b[i] = 0
	}
}

// Move copies size bytes from src to dst. Overlapping ranges are handled.
func (p *Phys) Move(dst, src, size uint32) {
	copy(p.data[dst:dst+size], p.data[src:src+size])
}
