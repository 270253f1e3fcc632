// Package secrets loads the device-provisioned secret blob: a device-unique
// wrapping key decrypts an encrypted blob that in turn yields the decoder
// id and the four long-term keys needed to bootstrap channel 0 and to
// authenticate/decrypt subscription messages.
package secrets

import (
	"errors"

	"github.com/ectf-2025/satdecoder/harden"
	"github.com/ectf-2025/satdecoder/prng"
	"github.com/ectf-2025/satdecoder/secbuf"
	"github.com/ectf-2025/satdecoder/wire"
)

// ErrMalformedBlob is returned when the provisioned blob's framing or
// plaintext layout cannot be parsed. Any occurrence is fatal to the caller
// (see diag.Diagnostics.Assert) — a malformed blob means the device was provisioned
// incorrectly or its flash was tampered with.
var ErrMalformedBlob = errors.New("secrets: malformed provisioned blob")

// ErrDecryptFailed is returned when the blob fails to authenticate under
// the device-unique wrapping key. Also fatal.
var ErrDecryptFailed = errors.New("secrets: failed to decrypt provisioned blob")

// Provisioned bundles the raw inputs supplied by the platform: a
// device-unique wrapping key, its IV, and the encrypted blob read from
// provisioning storage.
type Provisioned struct {
	WrappingKey [secbuf.KeySize]byte
	WrappingIV  [secbuf.IVSize]byte
	Blob        []byte
}

// Materials holds the decoder identity and the four long-term keys
// recovered from the provisioned blob. Every field is ephemeral: callers
// must call Release when done with it, within the same command handler
// that materialized it.
type Materials struct {
	DecoderID uint32

	Channel0AeadKey      secbuf.Fixed
	Channel0SigPublicKey secbuf.Fixed

	SubscriptionWrapKey        secbuf.Fixed
	SubscriptionSigPublicKey secbuf.Fixed
}

// Release zeroes all four key buffers.
func (m *Materials) Release() {
	m.Channel0AeadKey.Release()
	m.Channel0SigPublicKey.Release()
	m.SubscriptionWrapKey.Release()
	m.SubscriptionSigPublicKey.Release()
}

// Load parses and decrypts p.Blob and returns the recovered Materials.
//
// Blob layout: u8 skip_len | skip_len bytes padding | u16 ciphertext_len |
// ciphertext | 16-byte tag. The decrypted plaintext layout is: u32
// decoder_id, then the four 32-byte keys in the order channel-0 AEAD key,
// channel-0 signature public key, subscription-wrapping AEAD key,
// subscription-signing public key.
func Load(p Provisioned, fast *prng.Source) (*Materials, error) {
	r := wire.NewReader(p.Blob)
	skipLen := r.ReadU8()
	r.ReadN(int(skipLen))
	cipherLen := r.ReadU16()
	ciphertext := r.ReadN(int(cipherLen))
	tag := r.ReadN(secbuf.TagSize)
	if r.Err() {
		return nil, ErrMalformedBlob
	}

	raw, err := harden.AEADOpen(p.WrappingKey[:], p.WrappingIV[:], ciphertext, tag, fast)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	plaintext := secbuf.NewBytesFrom(raw)
	secbuf.Wipe(raw)
	defer plaintext.Release()

	pr := wire.NewReader(plaintext.Slice())
	decoderID := pr.ReadU32()
	channel0Aead := pr.ReadN(secbuf.KeySize)
	channel0Sig := pr.ReadN(secbuf.KeySize)
	subWrap := pr.ReadN(secbuf.KeySize)
	subSig := pr.ReadN(secbuf.KeySize)
	if pr.Err() {
		return nil, ErrMalformedBlob
	}

	return &Materials{
		DecoderID:                decoderID,
		Channel0AeadKey:          secbuf.NewFixedFrom(channel0Aead),
		Channel0SigPublicKey:     secbuf.NewFixedFrom(channel0Sig),
		SubscriptionWrapKey:      secbuf.NewFixedFrom(subWrap),
		SubscriptionSigPublicKey: secbuf.NewFixedFrom(subSig),
	}, nil
}
