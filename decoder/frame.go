package decoder

import (
	"github.com/ectf-2025/satdecoder/harden"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/prng"
	"github.com/ectf-2025/satdecoder/secbuf"
	"github.com/ectf-2025/satdecoder/wire"
)

// maxFrameLen bounds the plaintext frame payload, independent of
// transport.MaxOutputPayloadSize — the two happen to differ in the
// original firmware and are kept distinct here.
const maxFrameLen = 64

// TryDecodeFrame validates and decrypts one encoded frame against table,
// returning its plaintext payload. It returns (nil, false) on: unknown or
// inactive channel, an already-expired subscription, malformed framing,
// failed decryption, bad signature, a channel-id mismatch between the
// frame header and its signed payload, a timestamp before the
// subscription window, a timestamp past the subscription window, or a
// timestamp that does not strictly increase over the last accepted frame.
//
// Layout: u32 channel id | nonce (12) | ciphertext (multiple of 16) | tag
// (16), decrypted under the channel's AEAD key. The plaintext is: u8
// salt_len | salt | [payload: u32 channel id | u64 timestamp | u8
// frame_len | frame_len bytes of frame data] | 64-byte signature over
// payload, verified with the channel's signature key.
func TryDecodeFrame(table *Table, fast *prng.Source, clock platform.Clock, data []byte) ([]byte, bool) {
	microDelay(clock, fast)
	r := wire.NewReader(data)
	channelID := r.ReadU32()
	if r.Err() {
		return nil, false
	}
	channel := table.Channel(channelID)
	if channel == nil || !channel.IsActive() {
		return nil, false
	}
	if table.LastSeenTime() >= channel.EndTime() {
		channel.ClearSubscription()
		return nil, false
	}

	nonce := r.ReadN(secretIVSize)
	cipherLen := r.Remaining() - secretTagSize
	if cipherLen < 0 || cipherLen%16 != 0 {
		return nil, false
	}
	ciphertext := r.ReadN(cipherLen)
	tag := r.ReadN(secretTagSize)
	if r.Err() {
		return nil, false
	}

	microDelay(clock, fast)
	raw, err := harden.AEADOpen(channel.AeadKey().Bytes(), nonce, ciphertext, tag, fast)
	if err != nil {
		return nil, false
	}
	plaintext := secbuf.NewBytesFrom(raw)
	secbuf.Wipe(raw)
	defer plaintext.Release()

	pr := wire.NewReader(plaintext.Slice())
	saltLen := pr.ReadU8()
	pr.ReadN(int(saltLen))
	payloadMark := pr.Mark()
	secureChannelID := pr.ReadU32()
	timestamp := pr.ReadU64()
	frameLen := pr.ReadU8()
	if pr.Err() {
		return nil, false
	}
	if frameLen > maxFrameLen {
		return nil, false
	}
	frame := pr.ReadN(int(frameLen))
	payload := pr.Since(payloadMark)
	signature := pr.ReadN(secretSignatureSize)
	if pr.Err() {
		return nil, false
	}

	microDelay(clock, fast)
	if !harden.VerifySignature(channel.SigKey().Bytes(), payload, signature) {
		return nil, false
	}

	if secureChannelID != channelID {
		return nil, false
	}
	if timestamp < channel.StartTime() {
		return nil, false
	}
	if timestamp > channel.EndTime() {
		channel.ClearSubscription()
		return nil, false
	}
	if timestamp <= table.LastSeenTime() {
		return nil, false
	}
	microDelay(clock, fast)
	if !harden.RepeatCheck(secureChannelID == channelID &&
		timestamp >= channel.StartTime() &&
		timestamp <= channel.EndTime() &&
		timestamp > table.LastSeenTime()) {
		return nil, false
	}

	table.SetLastSeenTime(timestamp)
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, true
}
