package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/ectf-2025/satdecoder/platform"
)

func testLogger() *logging.Logger {
	return logging.MustGetLogger("diag-test")
}

func TestAssertTruePassesSilently(t *testing.T) {
	clock := platform.NewFakeClock()
	reboot := &platform.FakeRebooter{}
	d := New(false, testLogger(), clock, reboot, nil)
	require.NotPanics(t, func() { d.Assert(true, "should not fire") })
	require.Equal(t, 0, reboot.Calls)
}

func TestAssertFalseRebootsInReleaseMode(t *testing.T) {
	clock := platform.NewFakeClock()
	reboot := &platform.FakeRebooter{}
	d := New(false, testLogger(), clock, reboot, nil)
	d.Assert(false, "fatal condition")
	require.Equal(t, 1, reboot.Calls)
	require.Equal(t, uint64(1000000), clock.Now())
}

func TestPrintfGatedOnDebugMode(t *testing.T) {
	clock := platform.NewFakeClock()
	reboot := &platform.FakeRebooter{}
	var captured []string
	d := New(false, testLogger(), clock, reboot, func(s string) { captured = append(captured, s) })
	d.Printf("hello %d", 1)
	require.Empty(t, captured)

	d.DebugMode = true
	d.Printf("hello %d", 2)
	require.Equal(t, []string{"hello 2"}, captured)
}

func TestPrintfReentrancyGuard(t *testing.T) {
	clock := platform.NewFakeClock()
	reboot := &platform.FakeRebooter{}
	var calls int
	d := New(true, testLogger(), clock, reboot, nil)
	d.printFn = func(string) {
		calls++
		d.Printf("nested call should be swallowed")
	}
	d.Printf("outer")
	require.Equal(t, 1, calls)
}
