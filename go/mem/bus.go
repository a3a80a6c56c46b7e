package mem

import (
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

// Bus implements Memory over a Translator and a Phys store, and routes the
// UART window to a Device before any translation happens.
type Bus struct {
	tr   Translator
	phys *Phys
	dev  Device
}

func NewBus(tr Translator, phys *Phys, dev Device) *Bus {
	return &Bus{tr: tr, phys: phys, dev: dev}
}

func (b *Bus) SetDevice(dev Device) { b.dev = dev }

func (b *Bus) read(access int, addr uint32, size int) (uint32, error) {
	if isDevice(addr) {
		if b.dev == nil {
			return 0, nil
		}
		val := b.dev.Read(addr - UART_BASE)
		switch size {
		case 1:
			val &= 0xff
		case 2:
			val &= 0xffff
		}
		return val, nil
	}
	if size > 1 {
		if err := misaligned(access, addr, size); err != nil {
			return 0, err
		}
	}
	pa, err := b.tr.Translate(addr, size, access)
	if err != nil {
		return 0, err
	}
	return b.phys.ReadUint(access, pa, size)
}

func (b *Bus) write(access int, addr uint32, size int, val uint32) error {
	if isDevice(addr) {
		if b.dev != nil {
			b.dev.Write(addr-UART_BASE, val)
		}
		return nil
	}
	if size > 1 {
		if err := misaligned(access, addr, size); err != nil {
			return err
		}
	}
	pa, err := b.tr.Translate(addr, size, access)
	if err != nil {
		return err
	}
	return b.phys.WriteUint(access, pa, size, val)
}

func (b *Bus) ReadByte(addr uint32) (uint8, error) {
	v, err := b.read(cpu.MEM_READ, addr, 1)
	return uint8(v), err
}

func (b *Bus) ReadHalf(addr uint32) (uint16, error) {
	v, err := b.read(cpu.MEM_READ, addr, 2)
	return uint16(v), err
}

func (b *Bus) ReadWord(addr uint32) (uint32, error) {
	return b.read(cpu.MEM_READ, addr, 4)
}

func (b *Bus) FetchWord(addr uint32) (uint32, error) {
	return b.read(cpu.MEM_FETCH, addr, 4)
}

func (b *Bus) WriteByte(addr uint32, val uint8) error {
	return b.write(cpu.MEM_WRITE, addr, 1, uint32(val))
}

func (b *Bus) WriteHalf(addr uint32, val uint16) error {
	return b.write(cpu.MEM_WRITE, addr, 2, uint32(val))
}

func (b *Bus) WriteWord(addr uint32, val uint32) error {
	return b.write(cpu.MEM_WRITE, addr, 4, val)
}

func (b *Bus) WriteDuringLoad(addr uint32, val uint8) error {
	return b.write(cpu.MEM_LOAD, addr, 1, uint32(val))
}
