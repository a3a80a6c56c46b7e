package rv32

import (
	"github.com/rvcorn/rvcorn/go/models"
	"github.com/rvcorn/rvcorn/go/models/cpu"
)

// exec runs one decoded instruction at pc. PC already points at pc+4.
func (c *Cpu) exec(pc uint32, i *Instruction) error {
	switch i.Opcode {
	case OP_LUI:
		c.Set(i.Rd, i.ImmU)
	case OP_AUIPC:
		c.Set(i.Rd, pc+i.ImmU)
	case OP_JAL:
		c.Set(i.Rd, pc+4)
		c.SetPC(pc + uint32(i.ImmJ))
	case OP_JALR:
		if i.Funct3 != 0 {
			return illegal(i.Raw)
		}
		target := (c.Get(i.Rs1) + uint32(i.ImmI)) &^ 1
		c.Set(i.Rd, pc+4)
		c.SetPC(target)
	case OP_BRANCH:
		taken, err := c.branch(i)
		if err != nil {
			return err
		}
		if taken {
			c.SetPC(pc + uint32(i.ImmB))
		}
	case OP_LOAD:
		return c.load(i)
	case OP_STORE:
		return c.store(i)
	case OP_IMM:
		return c.opImm(i)
	case OP_REG:
		return c.op(i)
	case OP_FENCE:
	case OP_SYSTEM:
		return c.system(pc, i)
	default:
		return illegal(i.Raw)
	}
	return nil
}

func (c *Cpu) branch(i *Instruction) (bool, error) {
	a, b := c.Get(i.Rs1), c.Get(i.Rs2)
	switch i.Funct3 {
	case 0:
		return a == b, nil
	case 1:
		return a != b, nil
	case 4:
		return int32(a) < int32(b), nil
	case 5:
		return int32(a) >= int32(b), nil
	case 6:
		return a < b, nil
	case 7:
		return a >= b, nil
	}
	return false, illegal(i.Raw)
}

func (c *Cpu) load(i *Instruction) error {
	addr := c.Get(i.Rs1) + uint32(i.ImmI)
	var val uint32
	var size int
	switch i.Funct3 {
	case 0, 4:
		b, err := c.Mem.ReadByte(addr)
		if err != nil {
			return err
		}
		val, size = uint32(b), 1
		if i.Funct3 == 0 {
			val = uint32(int8(b))
		}
	case 1, 5:
		h, err := c.Mem.ReadHalf(addr)
		if err != nil {
			return err
		}
		val, size = uint32(h), 2
		if i.Funct3 == 1 {
			val = uint32(int16(h))
		}
	case 2:
		w, err := c.Mem.ReadWord(addr)
		if err != nil {
			return err
		}
		val, size = w, 4
	default:
		return illegal(i.Raw)
	}
	c.OnMem(cpu.MEM_READ, addr, size, val)
	c.Set(i.Rd, val)
	return nil
}

func (c *Cpu) store(i *Instruction) error {
	addr := c.Get(i.Rs1) + uint32(i.ImmS)
	val := c.Get(i.Rs2)
	var err error
	size := 1 << i.Funct3
	switch i.Funct3 {
	case 0:
		err = c.Mem.WriteByte(addr, uint8(val))
		val &= 0xff
	case 1:
		err = c.Mem.WriteHalf(addr, uint16(val))
		val &= 0xffff
	case 2:
		err = c.Mem.WriteWord(addr, val)
	default:
		return illegal(i.Raw)
	}
	if err != nil {
		return err
	}
	c.OnMem(cpu.MEM_WRITE, addr, size, val)
	return nil
}

func (c *Cpu) opImm(i *Instruction) error {
	a := c.Get(i.Rs1)
	imm := uint32(i.ImmI)
	shamt := i.Rs2
	var val uint32
	switch i.Funct3 {
	case 0:
		val = a + imm
	case 1:
		if i.Funct7 != FUNCT7_BASE {
			return illegal(i.Raw)
		}
		val = a << shamt
	case 2:
		val = b2u(int32(a) < i.ImmI)
	case 3:
		val = b2u(a < imm)
	case 4:
		val = a ^ imm
	case 5:
		switch i.Funct7 {
		case FUNCT7_BASE:
			val = a >> shamt
		case FUNCT7_ALT:
			val = uint32(int32(a) >> shamt)
		default:
			return illegal(i.Raw)
		}
	case 6:
		val = a | imm
	case 7:
		val = a & imm
	}
	c.Set(i.Rd, val)
	return nil
}

func (c *Cpu) op(i *Instruction) error {
	a, b := c.Get(i.Rs1), c.Get(i.Rs2)
	var val uint32
	switch i.Funct7 {
	case FUNCT7_BASE:
		switch i.Funct3 {
		case 0:
			val = a + b
		case 1:
			val = a << (b & 31)
		case 2:
			val = b2u(int32(a) < int32(b))
		case 3:
			val = b2u(a < b)
		case 4:
			val = a ^ b
		case 5:
			val = a >> (b & 31)
		case 6:
			val = a | b
		case 7:
			val = a & b
		}
	case FUNCT7_ALT:
		switch i.Funct3 {
		case 0:
			val = a - b
		case 5:
			val = uint32(int32(a) >> (b & 31))
		default:
			return illegal(i.Raw)
		}
	case FUNCT7_MUL:
		val = mulDiv(i.Funct3, a, b)
	default:
		return illegal(i.Raw)
	}
	c.Set(i.Rd, val)
	return nil
}

// mulDiv implements the M extension. Division by zero and signed overflow
// never trap: x/0 = -1, x%0 = x, MIN/-1 = MIN, MIN%-1 = 0.
func mulDiv(f3, a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch f3 {
	case 0: // mul
		return a * b
	case 1: // mulh
		return uint32(uint64(int64(sa)*int64(sb)) >> 32)
	case 2: // mulhsu
		return uint32(uint64(int64(sa)*int64(uint64(b))) >> 32)
	case 3: // mulhu
		return uint32(uint64(a) * uint64(b) >> 32)
	case 4: // div
		if b == 0 {
			return 0xffffffff
		}
		if sa == -1<<31 && sb == -1 {
			return a
		}
		return uint32(sa / sb)
	case 5: // divu
		if b == 0 {
			return 0xffffffff
		}
		return a / b
	case 6: // rem
		if b == 0 {
			return a
		}
		if sa == -1<<31 && sb == -1 {
			return 0
		}
		return uint32(sa % sb)
	default: // remu
		if b == 0 {
			return a
		}
		return a % b
	}
}

func (c *Cpu) system(pc uint32, i *Instruction) error {
	if i.Funct3 == 0 {
		switch i.Raw >> 20 {
		case 0:
			c.ecall = true
		case 1:
			if a7, _ := c.RegRead(A7); a7 == SYS_EXIT {
				a0, _ := c.RegRead(A0)
				return models.ExitStatus(int32(a0))
			}
			return &Exception{Cause: CAUSE_BREAKPOINT, Tval: pc}
		case 0x302:
			return c.mret(i.Raw)
		case 0x102:
			return c.sret(i.Raw)
		case 0x105:
			// wfi: no interrupts to wait for
		default:
			return illegal(i.Raw)
		}
		return nil
	}
	csr := i.CSR()
	old := c.CSR.Read(csr, c.Priv)
	src := c.Get(i.Rs1)
	if i.Funct3 >= 5 {
		src = i.Rs1
	}
	write := true
	val := src
	switch i.Funct3 & 3 {
	case 1:
	case 2:
		val = old | src
		write = i.Rs1 != 0
	case 3:
		val = old &^ src
		write = i.Rs1 != 0
	default:
		return illegal(i.Raw)
	}
	if write {
		c.CSR.Write(csr, val, c.Priv)
	}
	c.Set(i.Rd, old)
	return nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
