package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Repr quotes p, escaping non-printable bytes and clipping to strsize.
func Repr(p []byte, strsize int) string {
	tmp := make([]string, len(p))
	for i, b := range p {
		if b >= 0x20 && b <= 0x7e {
			tmp[i] = string(b)
		} else {
			tmp[i] = fmt.Sprintf("\\x%02x", b)
		}
	}
	out := strings.Join(tmp, "")
	if strsize > 0 && len(out) > strsize {
		for i := len(tmp) - 1; i > 0 && len(out) > strsize-3; i-- {
			out = strings.Join(tmp[:i], "")
		}
		return "\"" + out + "\"..."
	}
	return "\"" + out + "\""
}

// HexDump formats mem as 32-bit words with an ascii column, 16 bytes per line.
func HexDump(base uint32, mem []byte) []string {
	clean := func(p []byte) string {
		o := make([]byte, len(p))
		for i, c := range p {
			if c >= 0x20 && c <= 0x7e {
				o[i] = c
			} else {
				o[i] = '.'
			}
		}
		return string(o)
	}
	const bsz = 4
	const blockCount = 4
	var out []string
	for i := 0; i < len(mem); i += bsz * blockCount {
		line := mem[i:]
		if len(line) > bsz*blockCount {
			line = line[:bsz*blockCount]
		}
		blocks := make([]string, blockCount)
		for j := range blocks {
			if j*bsz >= len(line) {
				blocks[j] = strings.Repeat(" ", bsz*2)
				continue
			}
			end := (j + 1) * bsz
			if end > len(line) {
				end = len(line)
			}
			blocks[j] = hex.EncodeToString(line[j*bsz : end])
			blocks[j] += strings.Repeat("  ", bsz-(end-j*bsz))
		}
		out = append(out, fmt.Sprintf("0x%08x: %s [%s]", base+uint32(i), strings.Join(blocks, " "), clean(line)))
	}
	return out
}
