package decoder

import (
	"gopkg.in/op/go-logging.v1"

	"github.com/ectf-2025/satdecoder/diag"
	"github.com/ectf-2025/satdecoder/flashpage"
	"github.com/ectf-2025/satdecoder/led"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/prng"
	"github.com/ectf-2025/satdecoder/secrets"
	"github.com/ectf-2025/satdecoder/transport"
)

var log = logging.MustGetLogger("decoder")

// Device aggregates every collaborator the command dispatcher needs: the
// channel table, the provisioned secret blob, the PRNG, the clock, the
// flash store, the LED, and the transport. One Device exists per decoder
// instance; it owns no goroutines of its own (see the single-threaded
// dispatch note in RunLoop).
type Device struct {
	Table       *Table
	Provisioned secrets.Provisioned
	Fast        *prng.Source
	Clock       platform.Clock
	Flash       flashpage.Store
	LED         led.Indicator
	Bus         transport.Bus
	Diag        *diag.Diagnostics
}

// Initialize loads the provisioned secret materials, bootstraps the
// broadcast channel from them, and replays every persisted subscription
// from flash, in flash-page order. Any failure here is fatal — a decoder
// whose own provisioned secrets or flash contents cannot be parsed has no
// safe degraded mode.
func (d *Device) Initialize() {
	d.Table = NewTable()
	microDelay(d.Clock, d.Fast)

	mat, err := secrets.Load(d.Provisioned, d.Fast)
	d.Diag.Assert(err == nil, "failed to load provisioned secrets")
	if err != nil {
		return
	}
	defer mat.Release()

	channel0 := d.Table.Channel(0)
	d.Diag.Assert(channel0 != nil, "missing broadcast channel")
	channel0.SetSubscription(0, NoExpiry, mat.Channel0SigPublicKey.Bytes(), mat.Channel0AeadKey.Bytes())

	for _, page := range d.Table.AllFlashPages() {
		data, ok, err := d.Flash.ReadPage(page)
		d.Diag.Assert(err == nil, "flash read fault")
		if err != nil {
			return
		}
		if !ok {
			continue
		}
		ok = ProcessSubscriptionData(d.Table, d.Flash, d.Fast, d.Clock, d.Diag, mat, data, false)
		d.Diag.Assert(ok, "failed to load subscription data from flash")
	}
	log.Infof("decoder %d initialized with %d persisted subscription(s)", mat.DecoderID, len(d.Table.NonZeroChannels()))
}
