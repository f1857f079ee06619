package protocol

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/marauder-link/pkg/serial"
)

// ReaderState tracks where a reader loop is in its lifecycle.
type ReaderState int32

const (
	StateIdle ReaderState = iota
	StateConnected
	StateDisconnected
)

const rawHistorySize = 500

// ErrAlreadyStarted is returned by Start when the loop is already running
// or has already finished. A reader is single-use: reconnection builds a
// fresh transport and a fresh reader.
var ErrAlreadyStarted = errors.New("protocol: reader already started")

// Reader is the background loop that owns all reads on a transport. Each
// line is decoded and the resulting event published exactly once, in the
// order lines arrived. On a read failure the loop publishes a single
// Disconnected event and terminates; it never retries on its own.
type Reader struct {
	transport serial.Transport
	publish   func(Event)
	logger    *logrus.Logger

	mu    sync.Mutex
	state ReaderState
	raw   []string // bounded history of raw lines for the serial view
	done  chan struct{}
}

// NewReader wires a reader loop to a transport. publish receives every
// decoded event; it runs on the reader goroutine, so it must hand work off
// rather than block.
func NewReader(t serial.Transport, publish func(Event), logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{
		transport: t,
		publish:   publish,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the background read loop. It may be called once.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return ErrAlreadyStarted
	}
	r.state = StateConnected
	go r.run()
	return nil
}

// State returns the loop's current lifecycle state.
func (r *Reader) State() ReaderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed once the loop has terminated and its Disconnected event
// has been published.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// RawHistory returns a copy of the most recent raw lines, oldest first.
func (r *Reader) RawHistory() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.raw))
	copy(out, r.raw)
	return out
}

func (r *Reader) run() {
	for {
		line, err := r.transport.ReadLine()
		if err != nil {
			r.logger.Warnf("Serial read failed: %v", err)
			r.mu.Lock()
			r.state = StateDisconnected
			r.mu.Unlock()
			r.publish(Disconnected{Reason: err.Error()})
			close(r.done)
			return
		}

		r.recordRaw(line)
		if ev := Decode(line); ev != nil {
			r.publish(ev)
		}
	}
}

func (r *Reader) recordRaw(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = append(r.raw, line)
	if len(r.raw) > rawHistorySize {
		r.raw = r.raw[len(r.raw)-rawHistorySize:]
	}
}
