// Package wire provides a non-throwing, sticky-error byte reader and a
// little-endian encoder for the command payloads exchanged with the host.
package wire

import "encoding/binary"

// Reader is a non-owning view over a byte slice. Every primitive read is
// safe: on underflow it returns the zero value and sets a sticky error bit
// instead of panicking or partially advancing. Callers check Err once after
// parsing a whole structure, rather than after each field, which keeps the
// happy and unhappy parsing paths branch-equivalent.
type Reader struct {
	buf []byte
	err bool
}

// NewReader wraps buf for reading. buf is not copied; the caller must not
// mutate it while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err reports whether any read so far has underflowed.
func (r *Reader) Err() bool {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf)
}

// Mark returns a view over the bytes not yet consumed, sharing the
// underlying array. Combined with a later Remaining(), it lets a caller
// recover exactly the span consumed by an intervening sequence of reads —
// the same "two readers, one real" trick the original uses to recover a
// signed payload span without re-encoding it.
func (r *Reader) Mark() []byte {
	return r.buf
}

// Since returns the bytes consumed since mark was captured via Mark.
func (r *Reader) Since(mark []byte) []byte {
	return mark[:len(mark)-len(r.buf)]
}

// ReadN returns the next n bytes and advances the read position. On
// underflow it sets the sticky error bit and returns nil without advancing.
func (r *Reader) ReadN(n int) []byte {
	if r.err || n < 0 {
		return nil
	}
	if n == 0 {
		return nil
	}
	if len(r.buf) < n {
		r.err = true
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

// ReadU8 reads a single byte, little-endian (trivially).
func (r *Reader) ReadU8() uint8 {
	b := r.ReadN(1)
	if r.err {
		return 0
	}
	return b[0]
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() uint16 {
	b := r.ReadN(2)
	if r.err {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() uint32 {
	b := r.ReadN(4)
	if r.err {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() uint64 {
	b := r.ReadN(8)
	if r.err {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
