package platform

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/ectf-2025/satdecoder/prng"
)

// CryptoRandSource is the production prng.SecureSource, backed by the
// host's CSPRNG. It stands in for the original's hardware TRNG peripheral
// (Rand::SecureRandomRange).
type CryptoRandSource struct{}

var _ prng.SecureSource = CryptoRandSource{}

// SecureUint32 returns one uint32 drawn from crypto/rand. A read failure
// here indicates the host's entropy source is broken, which has no safe
// fallback; it panics rather than silently degrading to a predictable
// seed.
func (CryptoRandSource) SecureUint32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("platform: entropy source failed: " + err.Error())
	}
	return binary.LittleEndian.Uint32(buf[:])
}
