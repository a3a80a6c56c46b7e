package loader

import (
	"debug/elf"
	"io"

	"github.com/pkg/errors"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

type ElfLoader struct {
	file *elf.File
}

func NewElfLoader(r io.ReaderAt) (*ElfLoader, error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing elf")
	}
	if file.Class != elf.ELFCLASS32 {
		return nil, errors.Errorf("unsupported elf class: %s", file.Class)
	}
	if file.Data != elf.ELFDATA2LSB {
		return nil, errors.Errorf("unsupported elf byte order: %s", file.Data)
	}
	if file.Machine != elf.EM_RISCV {
		return nil, errors.Errorf("unsupported machine: %s", file.Machine)
	}
	return &ElfLoader{file: file}, nil
}

func (e *ElfLoader) Entry() uint32 {
	return uint32(e.file.Entry)
}

func progProt(flags elf.ProgFlag) int {
	prot := cpu.PROT_NONE
	if flags&elf.PF_R != 0 {
		prot |= cpu.PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= cpu.PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= cpu.PROT_EXEC
	}
	return prot
}

func (e *ElfLoader) Segments() ([]Segment, error) {
	ret := make([]Segment, 0, len(e.file.Progs))
	for _, prog := range e.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, errors.Errorf("segment at %#x: file size %#x exceeds memory size %#x", prog.Vaddr, prog.Filesz, prog.Memsz)
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "reading segment at %#x", prog.Vaddr)
		}
		ret = append(ret, Segment{
			Addr:   uint32(prog.Vaddr),
			Filesz: uint32(prog.Filesz),
			Memsz:  uint32(prog.Memsz),
			Offset: uint32(prog.Off),
			Prot:   progProt(prog.Flags),
			Data:   data,
		})
	}
	return ret, nil
}

func (e *ElfLoader) Layout() Layout {
	l := Layout{Entry: e.Entry()}
	var end uint32
	for _, prog := range e.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start, size := uint32(prog.Vaddr), uint32(prog.Memsz)
		if prog.Flags&elf.PF_X != 0 && l.TextSize == 0 {
			l.TextStart, l.TextSize = start, size
		} else if prog.Flags&elf.PF_W != 0 && l.DataSize == 0 {
			l.DataStart, l.DataSize = start, size
		}
		if start+size > end {
			end = start + size
		}
	}
	l.HeapStart = (end + 3) &^ 3
	return l
}

func (e *ElfLoader) RequiredMemory() uint32 {
	var end uint32
	for _, prog := range e.file.Progs {
		if prog.Type == elf.PT_LOAD && uint32(prog.Vaddr+prog.Memsz) > end {
			end = uint32(prog.Vaddr + prog.Memsz)
		}
	}
	return (end + mem.PAGE_SIZE - 1) &^ (mem.PAGE_SIZE - 1)
}
