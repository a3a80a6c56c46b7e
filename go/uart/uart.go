// Package uart emulates the console device mapped at mem.UART_BASE.
package uart

import (
	"bufio"
	"io"
	"sync"
)

const (
	TX_DATA = 0x0
	RX_DATA = 0x4
	STATUS  = 0x8
	CONTROL = 0xC

	RX_READY = 0x01
	TX_READY = 0x20
)

// Uart has four 32-bit registers: transmit, receive, status and control.
// Receive is a bounded FIFO filled from another goroutine.
type Uart struct {
	sync.Mutex
	out     io.Writer
	rx      []byte
	head    int
	count   int
	status  uint32
	control uint32
	dropped int
}

func New(out io.Writer, size int) *Uart {
	if size <= 0 {
		size = 256
	}
	return &Uart{out: out, rx: make([]byte, size), status: TX_READY}
}

func (u *Uart) Read(off uint32) uint32 {
	u.Lock()
	defer u.Unlock()
	switch off {
	case RX_DATA:
		if u.count == 0 {
			return 0
		}
		b := u.rx[u.head]
		u.head = (u.head + 1) % len(u.rx)
		u.count--
		if u.count == 0 {
			u.status &^= RX_READY
		}
		return uint32(b)
	case STATUS:
		return u.status | TX_READY
	case CONTROL:
		return u.control
	}
	return 0
}

func (u *Uart) Write(off uint32, val uint32) {
	u.Lock()
	defer u.Unlock()
	switch off {
	case TX_DATA:
		if u.out != nil {
			u.out.Write([]byte{byte(val)})
		}
	case CONTROL:
		u.control = val
	}
}

// Receive enqueues bytes from the outside world. Bytes past capacity are dropped.
func (u *Uart) Receive(p []byte) int {
	u.Lock()
	defer u.Unlock()
	n := 0
	for _, b := range p {
		if u.count >= len(u.rx) {
			u.dropped++
			continue
		}
		u.rx[(u.head+u.count)%len(u.rx)] = b
		u.count++
		n++
	}
	if u.count > 0 {
		u.status |= RX_READY
	}
	return n
}

// Ready reports whether a received byte is waiting.
func (u *Uart) Ready() bool {
	return u.Read(STATUS)&RX_READY != 0
}

func (u *Uart) Buffered() int {
	u.Lock()
	defer u.Unlock()
	return u.count
}

func (u *Uart) Dropped() int {
	u.Lock()
	defer u.Unlock()
	return u.dropped
}

// Pump feeds r into the receive FIFO a line at a time until EOF.
// The returned channel is closed when r is exhausted.
func (u *Uart) Pump(r io.Reader) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			u.Receive(append(sc.Bytes(), '\n'))
		}
	}()
	return done
}
