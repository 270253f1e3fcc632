package decoder

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ectf-2025/satdecoder/diag"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/prng"
)

// testDiag builds a Diagnostics whose Assert is fatal-but-observable: it
// uses a FakeRebooter, so an unexpected assertion failure in a test
// returns control to the caller (incrementing Calls) instead of hanging
// or exiting the test binary.
func testDiag(clock platform.Clock) *diag.Diagnostics {
	return diag.New(false, log, clock, &platform.FakeRebooter{}, nil)
}

// fixedSecure is a deterministic prng.SecureSource for tests; it need not
// be unpredictable since no test here depends on the PRNG's output other
// than that it is stable across a run.
type fixedSecure struct{ seed uint32 }

func (f fixedSecure) SecureUint32() uint32 { return f.seed }

func newTestSource() *prng.Source {
	return prng.NewSource(fixedSecure{seed: 0xC0FFEE})
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func key(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func iv(b byte) []byte {
	v := make([]byte, secretIVSize)
	for i := range v {
		v[i] = b
	}
	return v
}

// sealSignedPayload pads payload with a salt so the resulting plaintext
// (salt_len | salt | payload | signature) is a multiple of 16 bytes, signs
// payload with priv, then seals the whole plaintext under (key, nonce).
func sealSignedPayload(t *testing.T, key, nonce []byte, payload []byte, priv ed25519.PrivateKey) []byte {
	t.Helper()
	fixedLen := 1 + len(payload) + ed25519.SignatureSize
	pad := (16 - fixedLen%16) % 16

	plaintext := make([]byte, 0, fixedLen+pad)
	plaintext = append(plaintext, byte(pad))
	plaintext = append(plaintext, make([]byte, pad)...)
	plaintext = append(plaintext, payload...)
	sig := ed25519.Sign(priv, payload)
	plaintext = append(plaintext, sig...)

	aead, err := chacha20poly1305.New(key)
	require.NoError(t, err)
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return sealed
}

// buildSubscriptionBlob constructs a wire-format subscription update:
// nonce | ciphertext | tag, where the ciphertext decrypts (under wrapKey)
// to a salt-padded, signed payload carrying the new channel's keys and
// validity window.
func buildSubscriptionBlob(t *testing.T, wrapKey, nonce []byte, sigPriv ed25519.PrivateKey,
	channelAeadKey, channelSigKey []byte, decoderID uint32, start, end uint64, channelID uint32) []byte {
	t.Helper()
	payload := make([]byte, 0, 32+32+4+8+8+4)
	payload = append(payload, channelAeadKey...)
	payload = append(payload, channelSigKey...)
	payload = appendU32(payload, decoderID)
	payload = appendU64(payload, start)
	payload = appendU64(payload, end)
	payload = appendU32(payload, channelID)

	sealed := sealSignedPayload(t, wrapKey, nonce, payload, sigPriv)
	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob
}

// buildFrameBlob constructs a wire-format encoded frame: u32 channel id |
// nonce | ciphertext | tag.
func buildFrameBlob(t *testing.T, channelAeadKey, nonce []byte, sigPriv ed25519.PrivateKey,
	channelID uint32, timestamp uint64, frame []byte) []byte {
	t.Helper()
	payload := make([]byte, 0, 4+8+1+len(frame))
	payload = appendU32(payload, channelID)
	payload = appendU64(payload, timestamp)
	payload = append(payload, byte(len(frame)))
	payload = append(payload, frame...)

	sealed := sealSignedPayload(t, channelAeadKey, nonce, payload, sigPriv)
	blob := make([]byte, 0, 4+len(nonce)+len(sealed))
	blob = appendU32(blob, channelID)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob
}
