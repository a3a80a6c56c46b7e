// Package trace reads and writes kernel event traces: a struc-packed
// header followed by a snappy stream of ops.
package trace

import (
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var TRACE_MAGIC = "RVTR"

const TRACE_VERSION = 1

type TraceHeader struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
	// Right-null-padded.
	Arch      string `struc:"[16]byte"`
	Memory    string `struc:"[32]byte"`
	Scheduler string `struc:"[32]byte"`
}

type TraceWriter struct {
	w  io.WriteCloser
	zw *snappy.Writer
}

func NewWriter(w io.WriteCloser, memory, scheduler string) (*TraceWriter, error) {
	header := &TraceHeader{
		Magic:     TRACE_MAGIC,
		Version:   TRACE_VERSION,
		Arch:      "rv32im",
		Memory:    memory,
		Scheduler: scheduler,
	}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (t *TraceWriter) Pack(op Op) error {
	buf := make([]byte, op.Sizeof())
	op.Pack(buf)
	_, err := t.zw.Write(buf)
	return err
}

func (t *TraceWriter) Close() error {
	if err := t.zw.Close(); err != nil {
		t.w.Close()
		return err
	}
	return t.w.Close()
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	if t.Header.Version != TRACE_VERSION {
		return nil, errors.Errorf("unsupported trace version %d", t.Header.Version)
	}
	t.Header.Arch = strings.TrimRight(t.Header.Arch, "\x00")
	t.Header.Memory = strings.TrimRight(t.Header.Memory, "\x00")
	t.Header.Scheduler = strings.TrimRight(t.Header.Scheduler, "\x00")
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns the next op, or io.EOF at the end of the trace.
func (t *TraceReader) Next() (Op, error) {
	op, _, err := Unpack(t.zr)
	return op, err
}

func (t *TraceReader) Close() error {
	t.zr.Reset(nil)
	return t.r.Close()
}
