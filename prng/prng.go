// Package prng provides the two random sources used on the decoder: a slow
// hardware-entropy source used once at boot (and available for direct
// callers), and a fast xorshift32 generator used for timing jitter and decoy
// key material. Both are held on an explicit Source value rather than as
// package-level state, per the "no ambient globals on a freestanding target"
// design note — each Device owns exactly one Source.
package prng

import "encoding/binary"

// SecureSource is the hardware TRNG collaborator. It is narrow by design:
// the core only ever needs one uint32 at a time from it.
type SecureSource interface {
	SecureUint32() uint32
}

// Source bundles a SecureSource with fast xorshift32 state seeded from it.
type Source struct {
	secure SecureSource
	state  uint32
}

// NewSource seeds a fast PRNG from one draw of the hardware entropy source.
// A zero draw is nudged to a fixed nonzero seed since xorshift32 is stuck at
// zero forever if seeded with zero.
func NewSource(secure SecureSource) *Source {
	s := &Source{secure: secure, state: secure.SecureUint32()}
	if s.state == 0 {
		s.state = 0x9e3779b9
	}
	return s
}

// Secure draws directly from the hardware entropy source. Not used on hot
// paths; kept for completeness and for re-seeding after a long idle period.
func (s *Source) Secure() uint32 {
	return s.secure.SecureUint32()
}

// Fast advances and returns the xorshift32 state.
func (s *Source) Fast() uint32 {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.state = x
	return x
}

// rangeOf maps a uniform uint32 draw into [min, max) with a simple
// multiply-shift; a slight bias towards the low end is acceptable since this
// is only ever used for timing jitter and decoy key bytes, never for
// cryptographic material whose distribution matters.
func rangeOf(min, max, draw uint32) uint32 {
	if max <= min {
		return min
	}
	return min + uint32((uint64(max-min)*uint64(draw))>>32)
}

// FastRange returns a value in [min, max) drawn from the fast PRNG.
func (s *Source) FastRange(min, max uint32) uint32 {
	return rangeOf(min, max, s.Fast())
}

// SecureRange returns a value in [min, max) drawn from the hardware source.
func (s *Source) SecureRange(min, max uint32) uint32 {
	return rangeOf(min, max, s.Secure())
}

// FillFast fills buf with fast PRNG output, word at a time with a possibly
// partial tail word.
func (s *Source) FillFast(buf []byte) {
	const wordSize = 4
	var tmp [wordSize]byte
	for len(buf) >= wordSize {
		binary.LittleEndian.PutUint32(tmp[:], s.Fast())
		copy(buf, tmp[:])
		buf = buf[wordSize:]
	}
	if len(buf) > 0 {
		binary.LittleEndian.PutUint32(tmp[:], s.Fast())
		copy(buf, tmp[:len(buf)])
	}
}
