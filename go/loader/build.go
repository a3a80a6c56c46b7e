package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"

	"github.com/rvcorn/rvcorn/go/models/cpu"
)

type elfHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type progHeader struct {
	Type   uint32
	Off    uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

const (
	ehsize    = 52
	phentsize = 32
)

// BuildElf assembles a minimal static RV32 executable. Segment Memsz
// defaults to the data length; Prot defaults to rwx.
func BuildElf(entry uint32, segs ...Segment) []byte {
	hdr := elfHeader{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	struc.PackWithOrder(&buf, &hdr, binary.LittleEndian)
	off := uint32(ehsize + phentsize*len(segs))
	for _, s := range segs {
		memsz := s.Memsz
		if memsz < uint32(len(s.Data)) {
			memsz = uint32(len(s.Data))
		}
		prot := s.Prot
		if prot == 0 {
			prot = cpu.PROT_ALL
		}
		var flags elf.ProgFlag
		if prot&cpu.PROT_READ != 0 {
			flags |= elf.PF_R
		}
		if prot&cpu.PROT_WRITE != 0 {
			flags |= elf.PF_W
		}
		if prot&cpu.PROT_EXEC != 0 {
			flags |= elf.PF_X
		}
		ph := progHeader{
			Type:   uint32(elf.PT_LOAD),
			Off:    off,
			Vaddr:  s.Addr,
			Paddr:  s.Addr,
			Filesz: uint32(len(s.Data)),
			Memsz:  memsz,
			Flags:  uint32(flags),
			Align:  4,
		}
		struc.PackWithOrder(&buf, &ph, binary.LittleEndian)
		off += uint32(len(s.Data))
	}
	for _, s := range segs {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}
