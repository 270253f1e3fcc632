// Package secbuf holds secret-bearing byte buffers — keys, IVs, tags,
// signatures, and decrypted plaintext — that must never outlive their
// handler call without being wiped. It wraps github.com/awnumar/memguard,
// the library the wider corpus (ratchet.go's Axolotl ratchet state) already
// uses for exactly this purpose: a memguard.LockedBuffer lives in
// guarded, mlocked memory and its Destroy/Wipe calls cannot be elided by
// the compiler the way a plain zeroing loop over a []byte can.
package secbuf

import "github.com/awnumar/memguard"

// Sizes of the fixed-length secrets named in the data model.
const (
	KeySize       = 32 // AeadKey, SigPublicKey
	IVSize        = 12 // AeadIv
	TagSize       = 16 // AeadTag
	SignatureSize = 64 // SigSignature
)

// Fixed is a fixed-size secure buffer. The zero value is not usable; use
// NewFixed or NewFixedFrom.
type Fixed struct {
	buf *memguard.LockedBuffer
}

// NewFixed allocates a zeroed Fixed buffer of the given size.
func NewFixed(size int) Fixed {
	return Fixed{buf: memguard.NewBuffer(size)}
}

// NewFixedFrom copies src into a new Fixed buffer of len(src) bytes. src is
// not modified or retained.
func NewFixedFrom(src []byte) Fixed {
	cp := make([]byte, len(src))
	copy(cp, src)
	return Fixed{buf: memguard.NewBufferFromBytes(cp)}
}

// Bytes returns the buffer's current contents. The slice aliases the
// guarded memory and must not be retained past Release.
func (f Fixed) Bytes() []byte {
	if f.buf == nil {
		return nil
	}
	return f.buf.Bytes()
}

// Len returns the buffer's size.
func (f Fixed) Len() int {
	if f.buf == nil {
		return 0
	}
	return f.buf.Size()
}

// Valid reports whether the buffer has been allocated (and not yet
// released).
func (f Fixed) Valid() bool {
	return f.buf != nil && !f.buf.IsDestroyed()
}

// Release overwrites the buffer with zeros and returns its memory to the
// allocator. Safe to call more than once.
func (f Fixed) Release() {
	if f.buf != nil {
		f.buf.Destroy()
	}
}

// Wipe zeroes b in place. Used to clear a raw slice (e.g. the output of a
// library call that cannot write directly into guarded memory) once its
// contents have been copied into a Fixed or Bytes buffer. Unlike Release,
// this is a plain loop with no guarantee against compiler elision; it
// exists only to shrink the window in which a stray copy of a secret sits
// in ordinary, non-mlocked memory, not as the primary zeroization guarantee.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Bytes is a variable-length secure buffer, used for decrypted plaintext
// and protocol payloads that carry key material or authenticated content.
type Bytes struct {
	buf *memguard.LockedBuffer
}

// NewBytes allocates a zeroed secure buffer of the given size.
func NewBytes(size int) Bytes {
	return Bytes{buf: memguard.NewBuffer(size)}
}

// NewBytesFrom copies src into a new secure buffer. src is not modified.
func NewBytesFrom(src []byte) Bytes {
	cp := make([]byte, len(src))
	copy(cp, src)
	return Bytes{buf: memguard.NewBufferFromBytes(cp)}
}

// Slice returns the buffer's current contents. A zero-length buffer (memguard
// destroys zero-size allocations immediately) returns an empty, non-nil slice.
func (b Bytes) Slice() []byte {
	if b.buf == nil {
		return nil
	}
	if b.buf.IsDestroyed() {
		return []byte{}
	}
	return b.buf.Bytes()
}

// Len returns the buffer's size.
func (b Bytes) Len() int {
	if b.buf == nil {
		return 0
	}
	return b.buf.Size()
}

// Release overwrites the buffer with zeros and returns its memory to the
// allocator. Safe to call more than once.
func (b Bytes) Release() {
	if b.buf != nil {
		b.buf.Destroy()
	}
}
