// Package boot sequences decoder startup: the two rate-limiting delays
// around secret loading that bound how often a boot-time side-channel
// attempt can be repeated, then constructs a decoder.Device ready for its
// command loop.
package boot

import (
	"errors"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/ectf-2025/satdecoder/decoder"
	"github.com/ectf-2025/satdecoder/diag"
	"github.com/ectf-2025/satdecoder/flashpage"
	"github.com/ectf-2025/satdecoder/led"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/prng"
	"github.com/ectf-2025/satdecoder/secrets"
	"github.com/ectf-2025/satdecoder/transport"
)

var log = logging.MustGetLogger("boot")

// errMissingCollaborator is returned by Run when cfg omits a required
// collaborator — a wiring bug caught at startup rather than as a nil
// pointer dereference deep in the command loop.
var errMissingCollaborator = errors.New("boot: config missing a required collaborator")

const (
	preInitDelay      = 300 * time.Millisecond
	postInitDelayMicros int64 = 900_000
)

// Config bundles every collaborator and provisioned secret the boot
// sequence needs. cmd/decoder/main.go builds one from production
// collaborators; tests build one from fakes.
type Config struct {
	DebugMode bool

	WrappingKey [32]byte
	WrappingIV  [12]byte
	Blob        []byte

	Clock    platform.Clock
	Rebooter platform.Rebooter
	Secure   prng.SecureSource
	Flash    flashpage.Store
	Bus      transport.Bus
	LED      led.Indicator

	// DebugPrint receives debug-opcode output when DebugMode is set; may
	// be nil, in which case debug output is only logged.
	DebugPrint func(string)
}

// Run executes the fixed boot sequence — a 300ms delay, a yellow LED
// while the transport/PRNG collaborators are assumed already constructed,
// secrets load and broadcast-channel bootstrap, persisted-subscription
// replay, then a wait until 900ms have elapsed since Run started (the
// 300ms delay included) — and returns a Device ready for RunLoop. It
// returns an error only if cfg is missing a required collaborator; every
// failure past that point is fatal via diag.Diagnostics, which reboots
// through cfg.Rebooter.
func Run(cfg Config) (*decoder.Device, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	timer := transport.NewTimer(cfg.Clock)

	cfg.Clock.Sleep(preInitDelay)
	cfg.LED.Set(led.Yellow)

	debugPrint := cfg.DebugPrint
	if debugPrint == nil {
		bus := cfg.Bus
		debugPrint = func(msg string) {
			b := []byte(msg)
			if len(b) > transport.MaxOutputPayloadSize {
				b = b[:transport.MaxOutputPayloadSize]
			}
			_ = bus.WriteResponse(transport.OpDebug, b)
		}
	}

	dev := &decoder.Device{
		Provisioned: secrets.Provisioned{
			WrappingKey: cfg.WrappingKey,
			WrappingIV:  cfg.WrappingIV,
			Blob:        cfg.Blob,
		},
		Fast:  prng.NewSource(cfg.Secure),
		Clock: cfg.Clock,
		Flash: cfg.Flash,
		LED:   cfg.LED,
		Bus:   cfg.Bus,
		Diag:  diag.New(cfg.DebugMode, log, cfg.Clock, cfg.Rebooter, debugPrint),
	}

	dev.Initialize()
	timer.WaitUntilElapsed(postInitDelayMicros)

	log.Info("boot sequence complete, entering command loop")
	return dev, nil
}

func validate(cfg Config) error {
	if cfg.Clock == nil || cfg.Rebooter == nil || cfg.Secure == nil ||
		cfg.Flash == nil || cfg.Bus == nil || cfg.LED == nil {
		return errMissingCollaborator
	}
	return nil
}
