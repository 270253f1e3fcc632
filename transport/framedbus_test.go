package transport

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ectf-2025/satdecoder/platform"
	"github.com/stretchr/testify/require"
)

// loopback is an io.ReadWriter pairing a pre-seeded inbound buffer (what
// the "host" sent) with an outbound buffer (what FramedBus wrote back),
// enough to exercise one ReadCommand/WriteResponse round trip without a
// real UART or goroutine-driven peer.
type loopback struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func frame(op OpCode, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(frameMagic)
	buf.WriteByte(byte(op))
	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(body)))
	buf.Write(lenBytes[:])
	buf.Write(body)
	return buf.Bytes()
}

func ackFrame() []byte {
	return frame(OpAck, nil)
}

func TestFramedBusReadCommandSmallBody(t *testing.T) {
	body := []byte("hello")
	in := bytes.NewBuffer(nil)
	in.Write(frame(OpSubscribe, body))
	in.Write(ackFrame()) // ack for the single body chunk

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	op, got, err := bus.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, OpSubscribe, op)
	require.Equal(t, body, got)

	// header ack + body-chunk ack should both be present on the wire
	require.Equal(t, append(ackFrame(), ackFrame()...), lb.out.Bytes())
}

func TestFramedBusReadCommandEmptyBody(t *testing.T) {
	in := bytes.NewBuffer(nil)
	in.Write(frame(OpList, nil))

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	op, body, err := bus.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, OpList, op)
	require.Empty(t, body)
	require.Equal(t, ackFrame(), lb.out.Bytes())
}

func TestFramedBusReadCommandOversizeIsDiscarded(t *testing.T) {
	oversized := bytes.Repeat([]byte{0xAB}, MaxInputPayloadSize+32)

	in := bytes.NewBuffer(nil)
	in.Write(frame(OpDecode, oversized))
	// one ack per 256-byte chunk plus the remainder
	chunks := (len(oversized) + chunkSize - 1) / chunkSize
	for i := 0; i < chunks; i++ {
		in.Write(ackFrame())
	}

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	op, body, err := bus.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, OpDecode, op)
	require.Empty(t, body)
}

func TestFramedBusReadCommandSkipsNoiseBeforeMagic(t *testing.T) {
	in := bytes.NewBuffer(nil)
	in.Write([]byte{0x00, 0x01, 0x02})
	in.Write(frame(OpList, nil))

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	op, body, err := bus.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, OpList, op)
	require.Empty(t, body)
}

func TestFramedBusWriteResponseWithBody(t *testing.T) {
	in := bytes.NewBuffer(nil)
	in.Write(ackFrame()) // header ack
	in.Write(ackFrame()) // body ack

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	err := bus.WriteResponse(OpAck, []byte("ok"))
	require.NoError(t, err)

	require.Equal(t, frame(OpAck, []byte("ok")), lb.out.Bytes())
}

func TestFramedBusWriteResponseRejectsOversizedBody(t *testing.T) {
	lb := &loopback{in: bytes.NewBuffer(nil), out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	body := bytes.Repeat([]byte{0x01}, MaxOutputPayloadSize+1)
	err := bus.WriteResponse(OpAck, body)
	require.Error(t, err)
}

func TestFramedBusWriteResponseMissingAckIsNotFatal(t *testing.T) {
	lb := &loopback{in: bytes.NewBuffer(nil), out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, platform.NewFakeClock())

	err := bus.WriteResponse(OpError, nil)
	require.Error(t, err) // no ack bytes queued at all: read fails with EOF
}

func TestFramedBusCommandTimerResetsOnRead(t *testing.T) {
	clock := platform.NewFakeClock()
	in := bytes.NewBuffer(nil)
	in.Write(frame(OpList, nil))

	lb := &loopback{in: in, out: bytes.NewBuffer(nil)}
	bus := NewFramedBus(lb, clock)

	clock.Advance(5_000_000)
	_, _, err := bus.ReadCommand()
	require.NoError(t, err)
	require.Equal(t, uint64(0), bus.CommandTimer().ElapsedMicros())
}
