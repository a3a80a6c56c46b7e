package cpu

import (
	"github.com/pkg/errors"
)

type hookInfo struct {
	htype int
	start uint32
	end   uint32
}

func (h *hookInfo) Type() int {
	return h.htype
}

// start > end means the hook covers the whole address space
func (h *hookInfo) Contains(addr uint32) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type codeHook struct {
	hookInfo
	cb func(Cpu, uint32, uint32)
}

type intrHook struct {
	hookInfo
	cb func(Cpu, uint32)
}

type memHook struct {
	hookInfo
	cb func(Cpu, int, uint32, int, uint32)
}

// Hooks implements the hook half of cpu.Cpu for an interpreter.
type Hooks struct {
	cpu Cpu

	code []*codeHook
	intr []*intrHook
	mem  []*memHook
}

func NewHooks(cpu Cpu) *Hooks {
	return &Hooks{cpu: cpu}
}

// Callback types:
//   HOOK_CODE:      func(c Cpu, addr uint32, ins uint32)
//   HOOK_INTR:      func(c Cpu, cause uint32)
//   HOOK_MEM_READ,
//   HOOK_MEM_WRITE: func(c Cpu, access int, addr uint32, size int, val uint32)
func (h *Hooks) HookAdd(htype int, cb interface{}, start uint32, end uint32) (Hook, error) {
	info := hookInfo{htype, start, end}
	var hook Hook
	switch htype {
	case HOOK_CODE:
		fn, ok := cb.(func(Cpu, uint32, uint32))
		if !ok {
			return nil, errors.Errorf("wrong callback type for code hook: %T", cb)
		}
		hh := &codeHook{info, fn}
		h.code, hook = append(h.code, hh), hh

	case HOOK_INTR:
		fn, ok := cb.(func(Cpu, uint32))
		if !ok {
			return nil, errors.Errorf("wrong callback type for interrupt hook: %T", cb)
		}
		hh := &intrHook{info, fn}
		h.intr, hook = append(h.intr, hh), hh

	case HOOK_MEM_READ, HOOK_MEM_WRITE, HOOK_MEM_READ | HOOK_MEM_WRITE:
		fn, ok := cb.(func(Cpu, int, uint32, int, uint32))
		if !ok {
			return nil, errors.Errorf("wrong callback type for memory hook: %T", cb)
		}
		hh := &memHook{info, fn}
		h.mem, hook = append(h.mem, hh), hh

	default:
		return nil, errors.Errorf("unknown hook type: %d", htype)
	}
	return hook, nil
}

func (h *Hooks) HookDel(hook Hook) error {
	switch hh := hook.(type) {
	case *codeHook:
		var tmp []*codeHook
		for _, v := range h.code {
			if v != hh {
				tmp = append(tmp, v)
			}
		}
		h.code = tmp
	case *intrHook:
		var tmp []*intrHook
		for _, v := range h.intr {
			if v != hh {
				tmp = append(tmp, v)
			}
		}
		h.intr = tmp
	case *memHook:
		var tmp []*memHook
		for _, v := range h.mem {
			if v != hh {
				tmp = append(tmp, v)
			}
		}
		h.mem = tmp
	default:
		return errors.New("unknown hook")
	}
	return nil
}

func (h *Hooks) OnCode(addr uint32, ins uint32) {
	for _, v := range h.code {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, ins)
		}
	}
}

func (h *Hooks) OnIntr(cause uint32) {
	for _, v := range h.intr {
		v.cb(h.cpu, cause)
	}
}

func (h *Hooks) OnMem(access int, addr uint32, size int, val uint32) {
	for _, v := range h.mem {
		if !v.Contains(addr) {
			continue
		}
		if access == MEM_WRITE && v.htype&HOOK_MEM_WRITE == 0 {
			continue
		}
		if access == MEM_READ && v.htype&HOOK_MEM_READ == 0 {
			continue
		}
		v.cb(h.cpu, access, addr, size, val)
	}
}
