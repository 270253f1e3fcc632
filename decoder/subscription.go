package decoder

import (
	"time"

	"github.com/ectf-2025/satdecoder/diag"
	"github.com/ectf-2025/satdecoder/flashpage"
	"github.com/ectf-2025/satdecoder/harden"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/prng"
	"github.com/ectf-2025/satdecoder/secbuf"
	"github.com/ectf-2025/satdecoder/secrets"
	"github.com/ectf-2025/satdecoder/wire"
)

const (
	secretIVSize        = 12
	secretTagSize       = 16
	secretKeySize       = 32
	secretSignatureSize = 64
)

// microDelay sleeps a random 250-750us, matching the original's constant
// jitter inserted between every stage of secret-dependent processing.
func microDelay(clock platform.Clock, fast *prng.Source) {
	clock.Sleep(time.Duration(fast.FastRange(250, 750)) * time.Microsecond)
}

// ProcessSubscriptionData parses, decrypts, authenticates, and applies one
// subscription-update blob against table, optionally persisting it to the
// channel's flash page. It returns false on: malformed framing, failed
// decryption, bad signature, wrong decoder id, an attempt to subscribe to
// the broadcast channel, or a full channel table.
//
// Layout: nonce (12) | ciphertext (multiple of 16) | tag (16), decrypted
// under mat.SubscriptionWrapKey. The plaintext is: u8 salt_len | salt |
// [payload: 32-byte channel AEAD key | 32-byte channel signature public
// key | u32 decoder id | u64 start | u64 end | u32 channel id] | 64-byte
// signature over payload, verified with mat.SubscriptionSigPublicKey.
func ProcessSubscriptionData(table *Table, flash flashpage.Store, fast *prng.Source, clock platform.Clock, diagnostics *diag.Diagnostics, mat *secrets.Materials, data []byte, saveToFlash bool) bool {
	microDelay(clock, fast)
	r := wire.NewReader(data)
	nonce := r.ReadN(secretIVSize)
	cipherLen := r.Remaining() - secretTagSize
	if cipherLen < 0 || cipherLen%16 != 0 {
		return false
	}
	ciphertext := r.ReadN(cipherLen)
	tag := r.ReadN(secretTagSize)
	if r.Err() || r.Remaining() != 0 {
		return false
	}

	microDelay(clock, fast)
	raw, err := harden.AEADOpen(mat.SubscriptionWrapKey.Bytes(), nonce, ciphertext, tag, fast)
	if err != nil {
		return false
	}
	plaintext := secbuf.NewBytesFrom(raw)
	secbuf.Wipe(raw)
	defer plaintext.Release()

	pr := wire.NewReader(plaintext.Slice())
	saltLen := pr.ReadU8()
	pr.ReadN(int(saltLen))
	payloadMark := pr.Mark()
	channelAeadKey := pr.ReadN(secretKeySize)
	channelSigKey := pr.ReadN(secretKeySize)
	decoderID := pr.ReadU32()
	startTime := pr.ReadU64()
	endTime := pr.ReadU64()
	channelID := pr.ReadU32()
	payload := pr.Since(payloadMark)
	signature := pr.ReadN(secretSignatureSize)
	if pr.Err() {
		return false
	}

	microDelay(clock, fast)
	if !harden.VerifySignature(mat.SubscriptionSigPublicKey.Bytes(), payload, signature) {
		return false
	}

	if decoderID != mat.DecoderID {
		return false
	}
	if channelID == 0 {
		return false
	}
	microDelay(clock, fast)
	if !harden.RepeatCheck(decoderID == mat.DecoderID && channelID != 0) {
		return false
	}

	channel := table.GetOrCreateChannel(channelID)
	if channel == nil {
		return false
	}
	channel.SetSubscription(startTime, endTime, channelSigKey, channelAeadKey)
	microDelay(clock, fast)
	channel.SetSubscription(startTime, endTime, channelSigKey, channelAeadKey)

	if saveToFlash {
		werr := flash.WritePage(channel.FlashPage(), data)
		diagnostics.Assert(werr == nil, "flash write failed")
	}
	if table.LastSeenTime() > endTime {
		channel.ClearSubscription()
	}
	return true
}
