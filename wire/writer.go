package wire

import "encoding/binary"

// Writer accumulates a little-endian encoded response body. It has no
// error path: callers size their buffers ahead of time via the command
// dispatcher's fixed output contracts.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with capacity hinted by size.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// PutBytes appends raw bytes verbatim.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutU32 appends a little-endian uint32.
func (w *Writer) PutU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutU64 appends a little-endian uint64.
func (w *Writer) PutU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutU16 appends a little-endian uint16.
func (w *Writer) PutU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Bytes returns the accumulated body.
func (w *Writer) Bytes() []byte {
	return w.buf
}
