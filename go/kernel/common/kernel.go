package common

import (
	"reflect"
	"strings"

	"github.com/lunixbochs/argjoy"

	"github.com/rvcorn/rvcorn/go/mem"
)

// KernelBase holds the reflected syscall table. Syscall handlers are the
// exported methods of the embedding type: GetTime answers "get_time".
type KernelBase struct {
	Syscalls map[string]Syscall
	Mem      mem.Memory
	Argjoy   argjoy.Argjoy
	Strsize  int
}

func (k *KernelBase) Base() *KernelBase { return k }

type Kernel interface {
	Base() *KernelBase
}

func snakeCase(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if 'A' <= c && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func methodTypes(n int, at func(int) reflect.Type, skip int) []reflect.Type {
	types := make([]reflect.Type, 0, n-skip)
	for i := skip; i < n; i++ {
		types = append(types, at(i))
	}
	return types
}

var baseMethods = reflect.TypeOf(&KernelBase{})

func buildTable(kf Kernel) map[string]Syscall {
	k := kf.Base()
	table := make(map[string]Syscall)
	instance := reflect.ValueOf(kf)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if _, inherited := baseMethods.MethodByName(m.Name); inherited {
			continue
		}
		name := snakeCase(m.Name)
		mt := m.Type
		table[name] = Syscall{
			Name:     name,
			Kernel:   k,
			Instance: instance,
			Method:   m,
			// In skips the receiver.
			In:  methodTypes(mt.NumIn(), mt.In, 1),
			Out: methodTypes(mt.NumOut(), mt.Out, 0),
		}
	}
	return table
}

// Lookup finds a syscall by name, building the table on first use.
func Lookup(kf Kernel, name string) *Syscall {
	k := kf.Base()
	if k.Syscalls == nil {
		k.Syscalls = buildTable(kf)
		k.Argjoy.Register(k.commonArgCodec)
		k.Argjoy.Register(argjoy.IntToInt)
	}
	sys, ok := k.Syscalls[name]
	if !ok {
		return nil
	}
	return &sys
}
