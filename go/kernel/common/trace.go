package common

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rvcorn/rvcorn/go/mem"
	"github.com/rvcorn/rvcorn/go/models"
)

var obufType = reflect.TypeOf(Obuf{})

// formatArg renders vals[i]. A Buf followed by a Len is shown as the string
// it points at, clipped to Strsize.
func (s Syscall) formatArg(vals []interface{}, i int) string {
	clip := func(p []byte) string { return models.Repr(p, s.Kernel.Strsize) }
	switch v := vals[i].(type) {
	case Buf:
		if i+1 < len(vals) {
			if n, ok := vals[i+1].(Len); ok {
				p, _ := v.ReadStr(int(n))
				return clip(p)
			}
		}
		return fmt.Sprintf("%#x", v.Addr)
	case Obuf:
		return fmt.Sprintf("%#x", v.Addr)
	case Ptr:
		return fmt.Sprintf("%#x", uint32(v))
	case Fd:
		return fmt.Sprint(int32(v))
	case Len:
		return fmt.Sprint(uint32(v))
	case string:
		return clip([]byte(v))
	case int32:
		return fmt.Sprint(v)
	case uint32, uint64:
		return fmt.Sprintf("%#x", v)
	}
	return fmt.Sprintf("%v", vals[i])
}

// Trace formats the call as name(args).
func (s Syscall) Trace(regs []uint64) string {
	if len(regs) < len(s.In) {
		return s.Name + "(?)"
	}
	converted, err := s.Kernel.Argjoy.Convert(s.In, false, regs[:len(s.In)])
	if err != nil {
		return s.Name + "(" + err.Error() + ")"
	}
	vals := make([]interface{}, len(converted))
	for i, v := range converted {
		vals[i] = v.Interface()
	}
	parts := make([]string, len(vals))
	for i := range vals {
		parts[i] = s.formatArg(vals, i)
	}
	return s.Name + "(" + strings.Join(parts, ", ") + ")"
}

// TraceRet formats the result. Bytes the call read into an Obuf are shown
// before the return value.
func (s Syscall) TraceRet(args []uint64, ret uint32) string {
	var out []string
	for i, typ := range s.In {
		if typ != obufType || i+1 >= len(args) {
			continue
		}
		if n := int32(ret); n >= 0 && uint64(n) <= args[i+1] {
			p, _ := mem.Read(s.Kernel.Mem, uint32(args[i]), int(n))
			out = append(out, models.Repr(p, s.Kernel.Strsize))
		}
	}
	if len(s.Out) > 0 {
		r := fmt.Sprint(int32(ret))
		if name := ErrnoName(ret); name != "" {
			r += " " + name
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return ""
	}
	return " = " + strings.Join(out, ", ")
}
