package led

import logging "gopkg.in/op/go-logging.v1"

var names = map[Color]string{
	Black: "black", Red: "red", Green: "green", Blue: "blue",
	Purple: "purple", Cyan: "cyan", Yellow: "yellow", White: "white",
}

// Logging is the debug-mode Indicator: it records color changes as
// structured log fields rather than driving real GPIOs, since a host test
// harness has no LED to drive.
type Logging struct {
	log *logging.Logger
}

// NewLogging returns a debug-mode Indicator backed by log.
func NewLogging(log *logging.Logger) *Logging {
	return &Logging{log: log}
}

// Set logs the requested color at debug level.
func (l *Logging) Set(c Color) {
	l.log.Debugf("led color=%s", names[c])
}
