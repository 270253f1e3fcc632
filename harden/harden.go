// Package harden implements the side-channel countermeasures spec'd for the
// decryption and validity-check hot paths: a three-decryption decoy pattern
// around every AEAD open, and a sink that keeps decoy results and duplicated
// check outcomes live so the compiler cannot prove them dead and elide them.
package harden

import (
	"crypto/ed25519"
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ectf-2025/satdecoder/prng"
)

// ErrAuthFailed is returned when the real decryption's tag check fails.
var ErrAuthFailed = errors.New("harden: authentication tag mismatch")

// sink is written to by Keep so the Go compiler cannot treat a decoy
// computation as dead code and elide the call producing it — the
// functional equivalent of a volatile store or compiler fence.
var sink atomic.Value

// Keep publishes v to a package-level atomic so the call producing it is
// never proven unobservable. Used after decoy AEAD operations and after
// duplicated validity checks that would otherwise be pure dead stores.
func Keep(v interface{}) {
	sink.Store(v)
}

// aeadOpen runs a ChaCha20-Poly1305 open with an explicit key for one
// caller-supplied set of (iv, ciphertext, tag). It never mutates its
// inputs. On a tag mismatch it returns nil and ErrAuthFailed.
func aeadOpen(key, iv, ciphertext, tag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	out, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return out, nil
}

// AEADOpen decrypts ciphertext under key, authenticating it against tag
// with empty associated data, following the decoy-before / real / decoy-
// after pattern required to mask the real operation's power/timing
// signature. The decoy keys are drawn from the fast (non-cryptographic)
// PRNG, deliberately reusing it rather than consuming real entropy for
// throwaway decoy operations, and their results are routed through Keep
// so they cannot be optimized away as unused work.
func AEADOpen(key, iv, ciphertext, tag []byte, fast *prng.Source) ([]byte, error) {
	var decoyKey1, decoyKey2 [chacha20poly1305.KeySize]byte
	fast.FillFast(decoyKey1[:])
	fast.FillFast(decoyKey2[:])

	decoyBefore, errBefore := aeadOpen(decoyKey1[:], iv, ciphertext, tag)
	Keep(decoyBefore)
	Keep(errBefore)

	plaintext, err := aeadOpen(key, iv, ciphertext, tag)

	decoyAfter, errAfter := aeadOpen(decoyKey2[:], iv, ciphertext, tag)
	Keep(decoyAfter)
	Keep(errAfter)

	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// VerifySignature checks an Ed25519 signature over message using a raw
// 32-byte public key, mirroring the original's raw-key WolfCrypt verifier.
func VerifySignature(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}

// RepeatCheck takes a predicate the caller has already evaluated as cond
// and routes it through Keep before returning it, so a second, textually identical
// evaluation of an anti-glitch check cannot be folded into the first by
// the compiler (they are computed from freshly re-read inputs by the
// caller, not cached).
func RepeatCheck(cond bool) bool {
	Keep(cond)
	return cond
}
