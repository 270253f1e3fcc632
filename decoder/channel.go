// Package decoder implements the core frame-decoding and
// subscription-management state machine: channel bookkeeping, the
// subscription-update and frame-decode algorithms, and the command
// dispatcher that ties them to a transport.Bus.
package decoder

import (
	"github.com/ectf-2025/satdecoder/secbuf"
)

// MaxChannels bounds the number of simultaneously tracked channels,
// including the always-present broadcast channel 0.
const MaxChannels = 9

// NoExpiry is the end time assigned to the broadcast channel, which never
// expires.
const NoExpiry = ^uint64(0)

// Channel holds one channel's subscription state: whether it is active,
// the validity window, and the keys used to authenticate and decrypt its
// frames.
type Channel struct {
	id       uint32
	page     uint8
	active   bool
	start    uint64
	end      uint64
	sigKey   secbuf.Fixed
	aeadKey  secbuf.Fixed
}

// ID returns the channel's identifier.
func (c *Channel) ID() uint32 { return c.id }

// FlashPage returns the flash page number this channel's subscription is
// persisted to.
func (c *Channel) FlashPage() uint8 { return c.page }

// IsActive reports whether the channel currently has a loaded, non-cleared
// subscription.
func (c *Channel) IsActive() bool { return c.active }

// StartTime returns the subscription's validity window start.
func (c *Channel) StartTime() uint64 { return c.start }

// EndTime returns the subscription's validity window end (inclusive).
func (c *Channel) EndTime() uint64 { return c.end }

// SigKey returns the channel's signature-verification public key.
func (c *Channel) SigKey() secbuf.Fixed { return c.sigKey }

// AeadKey returns the channel's frame-decryption key.
func (c *Channel) AeadKey() secbuf.Fixed { return c.aeadKey }

// ClearSubscription marks the channel inactive and releases its keys, the
// way a subscription that has outlived its end time is evicted without
// forgetting the channel ever existed.
func (c *Channel) ClearSubscription() {
	c.active = false
	c.sigKey.Release()
	c.aeadKey.Release()
}

// SetSubscription loads an active subscription window and key pair,
// copying sigKey and aeadKey into the channel's own secure buffers.
// Whatever keys the channel held before are released first, so repeated
// calls (the duplicated anti-glitch assignment included) never leak
// guarded memory.
func (c *Channel) SetSubscription(start, end uint64, sigKey, aeadKey []byte) {
	c.sigKey.Release()
	c.aeadKey.Release()
	c.active = true
	c.start = start
	c.end = end
	c.sigKey = secbuf.NewFixedFrom(sigKey)
	c.aeadKey = secbuf.NewFixedFrom(aeadKey)
}

// Table tracks every known channel, always including the broadcast
// channel 0 at index 0.
type Table struct {
	channels     [MaxChannels]Channel
	numChannels  int
	lastSeenTime uint64
}

// NewTable returns a Table with only the broadcast channel present and
// inactive; the caller is expected to activate it via SetSubscription
// immediately, the way Decoder::Initialize does.
func NewTable() *Table {
	t := &Table{numChannels: 1}
	t.channels[0].id = 0
	t.channels[0].page = 0
	return t
}

// AllFlashPages returns every flash page number that could hold a
// persisted subscription — every page except the one reserved for the
// broadcast channel, which is never written to flash.
func (t *Table) AllFlashPages() []uint8 {
	pages := make([]uint8, 0, MaxChannels-1)
	for p := uint8(1); p < MaxChannels; p++ {
		pages = append(pages, p)
	}
	return pages
}

// NonZeroChannels returns every known channel except the broadcast
// channel, in table order.
func (t *Table) NonZeroChannels() []*Channel {
	ret := make([]*Channel, 0, t.numChannels)
	for i := 0; i < t.numChannels; i++ {
		if t.channels[i].id != 0 {
			ret = append(ret, &t.channels[i])
		}
	}
	return ret
}

// Channel returns the channel with the given id, or nil if none is known.
func (t *Table) Channel(id uint32) *Channel {
	for i := 0; i < t.numChannels; i++ {
		if t.channels[i].id == id {
			return &t.channels[i]
		}
	}
	return nil
}

// GetOrCreateChannel returns the channel with the given id, allocating a
// new table slot if necessary. It returns nil once the table is full.
func (t *Table) GetOrCreateChannel(id uint32) *Channel {
	if ch := t.Channel(id); ch != nil {
		return ch
	}
	if t.numChannels >= MaxChannels {
		return nil
	}
	ch := &t.channels[t.numChannels]
	ch.id = id
	ch.page = uint8(t.numChannels)
	t.numChannels++
	return ch
}

// LastSeenTime returns the largest timestamp ever accepted from a decoded
// frame.
func (t *Table) LastSeenTime() uint64 { return t.lastSeenTime }

// SetLastSeenTime records the largest accepted frame timestamp.
func (t *Table) SetLastSeenTime(tm uint64) { t.lastSeenTime = tm }
