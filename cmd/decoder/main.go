// Command decoder runs the satellite-TV frame decoder against a host
// serial connection on stdin/stdout, the way a debug build of the
// firmware would be exercised against the provisioning/test harness over
// a UART.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/op/go-logging.v1"

	"github.com/ectf-2025/satdecoder/boot"
	"github.com/ectf-2025/satdecoder/flashpage"
	"github.com/ectf-2025/satdecoder/led"
	"github.com/ectf-2025/satdecoder/platform"
	"github.com/ectf-2025/satdecoder/secbuf"
	"github.com/ectf-2025/satdecoder/transport"
)

const (
	secretsDir = "secrets"
	flashDir   = "flash"

	// debugMode stands in for the original's -DDEBUG_MODE=1 build flag:
	// flipped by editing source and rebuilding, not by a flag or env var.
	debugMode = false
)

var log = logging.MustGetLogger("decoder")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "decoder:", err)
		os.Exit(1)
	}
}

func run() error {
	logging.SetBackend(logging.NewLogBackend(os.Stderr, "", 0))

	wrappingKey, err := readFixed(secretsDir+"/wrapping.key", secbuf.KeySize)
	if err != nil {
		return err
	}
	wrappingIV, err := readFixed(secretsDir+"/wrapping.iv", secbuf.IVSize)
	if err != nil {
		return err
	}
	blob, err := os.ReadFile(secretsDir + "/blob.bin")
	if err != nil {
		return err
	}

	flash, err := flashpage.NewFileStore(flashDir)
	if err != nil {
		return err
	}

	indicator := led.Indicator(led.Noop{})
	if debugMode {
		indicator = led.NewLogging(log)
	}

	clock := platform.NewSystemClock()
	cfg := boot.Config{
		DebugMode: debugMode,
		Blob:      blob,
		Clock:     clock,
		Rebooter:  platform.ProcessRebooter{},
		Secure:    platform.CryptoRandSource{},
		Flash:     flash,
		Bus:       transport.NewFramedBus(stdinStdoutConn{}, clock),
		LED:       indicator,
	}
	copy(cfg.WrappingKey[:], wrappingKey)
	copy(cfg.WrappingIV[:], wrappingIV)

	dev, err := boot.Run(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	dev.RunLoop(ctx)
	return nil
}

func readFixed(path string, size int) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("decoder: %s: expected %d bytes, got %d", path, size, len(b))
	}
	return b, nil
}

// stdinStdoutConn pairs os.Stdin and os.Stdout into the io.ReadWriter
// transport.FramedBus expects, standing in for the UART peripheral the
// real firmware frames its commands over.
type stdinStdoutConn struct{}

func (stdinStdoutConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdinStdoutConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
