package transport

import (
	"time"

	"github.com/ectf-2025/satdecoder/platform"
)

// Timer measures elapsed time since it was last reset, built on a
// platform.Clock the way the original's Timer wraps the RTC-derived
// GetTotalElapsedMicros.
type Timer struct {
	clock     platform.Clock
	startTime uint64
}

// NewTimer returns a Timer already reset to zero.
func NewTimer(clock platform.Clock) *Timer {
	t := &Timer{clock: clock}
	t.Reset()
	return t
}

// Reset zeroes the timer's elapsed time.
func (t *Timer) Reset() {
	t.startTime = t.clock.Now()
}

// ElapsedMicros returns microseconds elapsed since the last Reset.
func (t *Timer) ElapsedMicros() uint64 {
	return t.clock.Now() - t.startTime
}

// WaitUntilElapsed blocks (via the clock's Sleep) until ElapsedMicros
// reaches deadlineMicros. If the deadline has already passed, it returns
// immediately — timeouts are one-sided and a handler that is already late
// must not try to go back in time.
func (t *Timer) WaitUntilElapsed(deadlineMicros int64) {
	for {
		remaining := deadlineMicros - int64(t.ElapsedMicros())
		if remaining <= 0 {
			return
		}
		t.clock.Sleep(time.Duration(remaining) * time.Microsecond)
	}
}
