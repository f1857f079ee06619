package serial

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	goserial "go.bug.st/serial"
)

// Transport is the link-level contract the rest of the application depends
// on: line-oriented reads, whole-command writes, and a Close that unblocks a
// pending read. Exactly one goroutine may call ReadLine; Write and Close are
// safe from any goroutine.
type Transport interface {
	ReadLine() (string, error)
	Write(p []byte) error
	Close() error
}

// Port is a Transport backed by a physical serial device.
type Port struct {
	name   string
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	logger *logrus.Logger

	// writeMu serializes writes against each other and against Close so a
	// command is never observed half-written.
	writeMu sync.Mutex
	closed  bool
}

// Open opens the serial device at path with the given baud rate. Marauder
// firmware talks at 115200 by default.
func Open(path string, baud int, logger *logrus.Logger) (*Port, error) {
	if logger == nil {
		logger = logrus.New()
	}

	mode := &goserial.Mode{BaudRate: baud}
	dev, err := goserial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: failed to open %s: %w", path, err)
	}

	logger.Infof("Opened serial port %s @ %d baud", path, baud)
	return newPort(path, dev, logger), nil
}

// newPort wraps an already-open stream. Split out so tests can drive the
// transport over an in-memory pipe.
func newPort(name string, rwc io.ReadWriteCloser, logger *logrus.Logger) *Port {
	return &Port{
		name:   name,
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
		logger: logger,
	}
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string {
	return p.name
}

// ReadLine blocks until a full newline-terminated line arrives and returns
// it without the trailing newline or carriage return. Any read failure,
// including a concurrent Close, surfaces as ErrDisconnected.
func (p *Port) ReadLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if line != "" {
			// Partial line before the failure; hand it up so the decoder
			// gets a chance at it before the disconnect lands.
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Write sends a command to the device. A trailing newline is appended if
// missing. Thread-safe.
func (p *Port) Write(cmd []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed {
		return ErrNotOpen
	}
	if len(cmd) == 0 || cmd[len(cmd)-1] != '\n' {
		cmd = append(cmd, '\n')
	}
	if _, err := p.rwc.Write(cmd); err != nil {
		return fmt.Errorf("serial: write failed: %w", err)
	}
	p.logger.Debugf("TX >>> %s", strings.TrimRight(string(cmd), "\n"))
	return nil
}

// Close shuts the port down. Idempotent; a blocked ReadLine returns with
// ErrDisconnected.
func (p *Port) Close() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.rwc.Close()
}
