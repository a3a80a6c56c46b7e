package models

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"hash/crc32"
	"io"
	"io/ioutil"
	"sort"

	"github.com/pkg/errors"
)

// savestate format
//
// file header
// uint32(savestate format version)
// uint32(crc32 of compressed data)
// uint32(length of compressed data)
// remainder is gzip-compressed
//
// -- uncompressed data start --
// uint32 x[32], uint32 pc, uint32 privilege
// uint32(number of csrs)
// 1..num: uint32(csr address), uint32(value)
// uint32(physical memory length), <raw memory bytes>

const SAVESTATE_VERSION = 1

var saveOrder = binary.BigEndian

type SaveHeader struct {
	Version uint32
	Crc     uint32
	Length  uint32
}

type saveCpu struct {
	X    [32]uint32
	PC   uint32
	Priv uint32
}

type saveCSR struct {
	Addr uint32
	Val  uint32
}

type saveLen struct {
	N uint32
}

// Snapshot is the machine state captured by a savestate.
type Snapshot struct {
	X      [32]uint32
	PC     uint32
	Priv   uint32
	CSRs   map[uint16]uint32
	Memory []byte
}

func Save(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	s := StrucStream{&buf, saveOrder}
	if err := s.Pack(&saveCpu{X: snap.X, PC: snap.PC, Priv: snap.Priv}); err != nil {
		return nil, err
	}
	addrs := make([]int, 0, len(snap.CSRs))
	for addr := range snap.CSRs {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)
	s.Pack(&saveLen{uint32(len(addrs))})
	for _, addr := range addrs {
		s.Pack(&saveCSR{uint32(addr), snap.CSRs[uint16(addr)]})
	}
	s.Pack(&saveLen{uint32(len(snap.Memory))})
	buf.Write(snap.Memory)

	var tmp bytes.Buffer
	gz := gzip.NewWriter(&tmp)
	if _, err := buf.WriteTo(gz); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	data := tmp.Bytes()

	var final bytes.Buffer
	s = StrucStream{&final, saveOrder}
	if err := s.Pack(&SaveHeader{SAVESTATE_VERSION, crc32.ChecksumIEEE(data), uint32(len(data))}); err != nil {
		return nil, err
	}
	final.Write(data)
	return final.Bytes(), nil
}

// LoadHeader validates the header and checksum and returns the compressed body.
func LoadHeader(data []byte) (*SaveHeader, []byte, error) {
	var hdr SaveHeader
	s := StrucStream{bytes.NewBuffer(data), saveOrder}
	if err := s.Unpack(&hdr); err != nil {
		return nil, nil, errors.Wrap(err, "reading savestate header")
	}
	if hdr.Version != SAVESTATE_VERSION {
		return nil, nil, errors.Errorf("unsupported savestate version %d", hdr.Version)
	}
	body := data[12:]
	if uint32(len(body)) < hdr.Length {
		return nil, nil, errors.Errorf("savestate truncated: %d < %d", len(body), hdr.Length)
	}
	body = body[:hdr.Length]
	if crc := crc32.ChecksumIEEE(body); crc != hdr.Crc {
		return nil, nil, errors.Errorf("savestate crc mismatch: %#x != %#x", crc, hdr.Crc)
	}
	return &hdr, body, nil
}

func Load(data []byte) (*Snapshot, error) {
	_, body, err := LoadHeader(data)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "savestate body")
	}
	raw, err := ioutil.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "savestate body")
	}
	buf := bytes.NewBuffer(raw)
	s := StrucStream{buf, saveOrder}
	var c saveCpu
	var n saveLen
	if err := s.Unpack(&c, &n); err != nil {
		return nil, errors.Wrap(err, "savestate cpu")
	}
	snap := &Snapshot{X: c.X, PC: c.PC, Priv: c.Priv, CSRs: make(map[uint16]uint32, n.N)}
	for i := uint32(0); i < n.N; i++ {
		var csr saveCSR
		if err := s.Unpack(&csr); err != nil {
			return nil, errors.Wrap(err, "savestate csr")
		}
		snap.CSRs[uint16(csr.Addr)] = csr.Val
	}
	if err := s.Unpack(&n); err != nil {
		return nil, errors.Wrap(err, "savestate memory")
	}
	snap.Memory = make([]byte, n.N)
	if _, err := io.ReadFull(buf, snap.Memory); err != nil {
		return nil, errors.Wrap(err, "savestate memory")
	}
	return snap, nil
}
