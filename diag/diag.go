// Package diag carries the decoder's fatal-assertion and debug-print
// behavior. The original firmware used a compile-time -DDEBUG_MODE=1 flag
// to strip debug functionality from release builds; the corpus's own
// idiom for this kind of toggle is a runtime-checked boolean field on a
// Config/Glue struct (e.g. glue.Config().Debug.SendDecoyTraffic in
// server/internal/decoy/decoy.go), which is what this package follows.
package diag

import (
	"fmt"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/ectf-2025/satdecoder/platform"
)

// Diagnostics bundles the debug-mode flag with the collaborators needed to
// act on a fatal assertion: a logger, a clock for the reboot delay, and a
// Rebooter. One Diagnostics is constructed per Device.
type Diagnostics struct {
	DebugMode bool

	log     *logging.Logger
	clock   platform.Clock
	reboot  platform.Rebooter
	printFn func(string)

	printing bool // infinite-recursion guard, mirrors is_printing_ in debug.cpp
}

// New constructs a Diagnostics. printFn, if non-nil, is invoked by Printf in
// debug mode (the production wiring routes it to the transport's debug
// opcode; tests can pass nil to just log).
func New(debugMode bool, log *logging.Logger, clock platform.Clock, reboot platform.Rebooter, printFn func(string)) *Diagnostics {
	return &Diagnostics{DebugMode: debugMode, log: log, clock: clock, reboot: reboot, printFn: printFn}
}

// Assert reports a fatal internal-invariant violation. In debug mode it
// logs at Critical level and blocks forever — standing in for the
// original's blink-red-LED-and-print loop. In release mode it delays one
// second (rate-limiting any boot-time side channel attempts across
// reboots) and reboots. When cond is false, Assert returns only if the
// Rebooter's Reboot returns (as platform.FakeRebooter does).
func (d *Diagnostics) Assert(cond bool, msg string) {
	if cond {
		return
	}
	if d.DebugMode {
		for {
			d.log.Criticalf("assertion failed: %s", msg)
			time.Sleep(time.Second)
		}
	}
	d.clock.Sleep(time.Second)
	d.reboot.Reboot()
}

// Printf sends a debug message, gated on debug mode, and guarded against
// reentrant calls from within its own transport write path (Print calling
// WriteResponse calling Print again on an error).
func (d *Diagnostics) Printf(format string, args ...interface{}) {
	if !d.DebugMode {
		return
	}
	if d.printing {
		return
	}
	d.printing = true
	defer func() { d.printing = false }()

	d.log.Debugf(format, args...)
	if d.printFn != nil {
		d.printFn(formatted(format, args))
	}
}

func formatted(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
