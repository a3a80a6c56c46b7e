package common

import (
	"github.com/lunixbochs/argjoy"

	"github.com/rvcorn/rvcorn/go/mem"
)

func (k *KernelBase) commonArgCodec(arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		switch v := arg.(type) {
		case *Buf:
			*v = NewBuf(k, uint32(reg))
		case *Obuf:
			*v = Obuf{NewBuf(k, uint32(reg))}
		case *Len:
			*v = Len(reg)
		case *Fd:
			*v = Fd(int32(reg))
		case *Ptr:
			*v = Ptr(reg)
		case *int32:
			*v = int32(uint32(reg))
		case *uint32:
			*v = uint32(reg)
		case *string:
			s, err := mem.ReadString(k.Mem, uint32(reg), mem.MAX_STRLEN)
			if err != nil {
				return err
			}
			*v = s
		default:
			return argjoy.NoMatch
		}
		return nil
	}
	return argjoy.NoMatch
}
