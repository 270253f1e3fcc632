package transport

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ectf-2025/satdecoder/platform"
)

const (
	frameMagic = '%'
	chunkSize  = 256
)

// FramedBus implements the '%' opcode len payload wire framing over any
// io.ReadWriter — a real UART in production, an io.Pipe or net.Conn in
// tests.
type FramedBus struct {
	rw    io.ReadWriter
	timer *Timer
}

// NewFramedBus wraps rw and builds its command timer from clock.
func NewFramedBus(rw io.ReadWriter, clock platform.Clock) *FramedBus {
	return &FramedBus{rw: rw, timer: NewTimer(clock)}
}

// CommandTimer returns the bus's command timer.
func (b *FramedBus) CommandTimer() *Timer {
	return b.timer
}

func (b *FramedBus) readByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.rw, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *FramedBus) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(b.rw, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *FramedBus) readHeader() (OpCode, uint16, error) {
	for {
		c, err := b.readByte()
		if err != nil {
			return 0, 0, err
		}
		if c == frameMagic {
			break
		}
	}
	rest, err := b.readN(3)
	if err != nil {
		return 0, 0, err
	}
	op := OpCode(rest[0])
	length := binary.LittleEndian.Uint16(rest[1:3])
	return op, length, nil
}

func (b *FramedBus) writeHeader(op OpCode, length int) error {
	var hdr [4]byte
	hdr[0] = frameMagic
	hdr[1] = byte(op)
	binary.LittleEndian.PutUint16(hdr[2:], uint16(length))
	_, err := b.rw.Write(hdr[:])
	return err
}

func (b *FramedBus) writeAck() error {
	return b.writeHeader(OpAck, 0)
}

func (b *FramedBus) readAck() (bool, error) {
	op, _, err := b.readHeader()
	if err != nil {
		return false, err
	}
	return op == OpAck, nil
}

// ReadCommand reads one command header plus body, ACKing the header and
// each chunk of the body as the protocol requires. A body longer than
// MaxInputPayloadSize is read, discarded, and acknowledged chunk by
// chunk, then reported back to the caller as empty — the "security
// optimization" named in message_bus.cpp.
func (b *FramedBus) ReadCommand() (OpCode, []byte, error) {
	op, length, err := b.readHeader()
	if err != nil {
		return 0, nil, err
	}
	b.timer.Reset()
	if err := b.writeAck(); err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return op, nil, nil
	}
	if int(length) > MaxInputPayloadSize {
		if err := b.drainAndAck(int(length)); err != nil {
			return 0, nil, err
		}
		return op, nil, nil
	}
	body, err := b.readBodyChunked(int(length))
	if err != nil {
		return 0, nil, err
	}
	return op, body, nil
}

func (b *FramedBus) drainAndAck(length int) error {
	remaining := length
	for remaining >= chunkSize {
		if _, err := b.readN(chunkSize); err != nil {
			return err
		}
		if err := b.writeAck(); err != nil {
			return err
		}
		remaining -= chunkSize
	}
	if remaining > 0 {
		if _, err := b.readN(remaining); err != nil {
			return err
		}
		if err := b.writeAck(); err != nil {
			return err
		}
	}
	return nil
}

func (b *FramedBus) readBodyChunked(length int) ([]byte, error) {
	body := make([]byte, 0, length)
	remaining := length
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		chunk, err := b.readN(n)
		if err != nil {
			return nil, err
		}
		body = append(body, chunk...)
		if err := b.writeAck(); err != nil {
			return nil, err
		}
		remaining -= n
	}
	return body, nil
}

// WriteResponse emits a header, waits for its ACK, then (if a body is
// present) emits the body and waits for its ACK. A failed read while
// waiting for an ACK is returned as an error, which the caller logs (via
// Diagnostics) and otherwise ignores. A reply that is not an ACK is not
// reported: WriteResponse returns nil, and after a non-ACK to the header
// the body is not sent.
func (b *FramedBus) WriteResponse(op OpCode, body []byte) error {
	if len(body) > MaxOutputPayloadSize {
		return errors.New("transport: response body too large")
	}
	if err := b.writeHeader(op, len(body)); err != nil {
		return err
	}
	ok, err := b.readAck()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := b.rw.Write(body); err != nil {
		return err
	}
	if ok, err := b.readAck(); err != nil {
		return err
	} else if !ok {
		return nil
	}
	return nil
}
