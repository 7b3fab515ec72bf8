// Package console streams a board's serial console to the operator, either
// verbatim or decoded from COBS framed SCTL records.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/cobs"
	"github.com/OpenTraceLab/boardctl/pkg/sctl"
)

const (
	// BaudRate is fixed for every board console.
	BaudRate = 115200

	ClearTimeout  = 10 * time.Millisecond
	StreamTimeout = 1000 * time.Millisecond

	// DefaultMaxReadErrors is the number of consecutive failed reads after
	// which a streaming loop gives up.
	DefaultMaxReadErrors = 10

	readSize = 1024
	// clearBudget caps the reads performed by Clear on a board that never
	// stops talking.
	clearBudget = 256
)

var (
	// ErrDisconnected ends a streaming loop after too many consecutive read
	// failures.
	ErrDisconnected = errors.New("console: device disconnected")
	// ErrState is returned when an operation is attempted outside the Open
	// state.
	ErrState = errors.New("console: session not open")
)

// Port is the subset of a serial port used by a Session.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// State is the lifecycle state of a Session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateClearing
	StateViewing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateClearing:
		return "clearing"
	case StateViewing:
		return "viewing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode returns the fixed 115200 8N1 serial configuration.
func Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort opens a serial device with Mode.
func OpenPort(path string) (Port, error) {
	p, err := serial.Open(path, Mode())
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", path, err)
	}
	return p, nil
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets the writer receiving console and stdout output.
func WithOutput(w io.Writer) Option { return func(s *Session) { s.out = w } }

// WithErrorOutput sets the writer receiving stderr records.
func WithErrorOutput(w io.Writer) Option { return func(s *Session) { s.errOut = w } }

// WithMaxReadErrors sets the consecutive read failure limit. Zero retries
// forever.
func WithMaxReadErrors(n int) Option { return func(s *Session) { s.maxReadErrors = n } }

// WithLogger replaces the session logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// Session owns one open serial port. Callers must Close it.
type Session struct {
	port  Port
	state State

	out           io.Writer
	errOut        io.Writer
	maxReadErrors int
	log           *slog.Logger
}

// Open opens the console at path.
func Open(path string, opts ...Option) (*Session, error) {
	port, err := OpenPort(path)
	if err != nil {
		return nil, err
	}
	return NewSession(port, opts...), nil
}

// NewSession wraps an already open port.
func NewSession(port Port, opts ...Option) *Session {
	s := &Session{
		port:          port,
		state:         StateOpen,
		out:           os.Stdout,
		maxReadErrors: DefaultMaxReadErrors,
		log:           logging.For(logging.ComponentConsole),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.errOut == nil {
		s.errOut = s.out
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Close releases the port. It is safe to call more than once.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	return s.port.Close()
}

func (s *Session) enter(st State) error {
	if s.state != StateOpen {
		return fmt.Errorf("%w (state %s)", ErrState, s.state)
	}
	s.state = st
	return nil
}

func (s *Session) leave() {
	if s.state != StateClosed {
		s.state = StateOpen
	}
}

// Clear drains pending input, typically bootloader chatter, using a short
// read timeout. A zero-byte read or any read error ends the drain; neither
// is reported.
func (s *Session) Clear() error {
	if err := s.enter(StateClearing); err != nil {
		return err
	}
	defer s.leave()

	if err := s.port.SetReadTimeout(ClearTimeout); err != nil {
		s.log.Debug("clear: cannot set read timeout", "err", err)
		return nil
	}

	buf := make([]byte, readSize)
	drained := 0
	for i := 0; i < clearBudget; i++ {
		n, err := s.port.Read(buf)
		if err != nil || n == 0 {
			break
		}
		drained += n
	}
	s.log.Debug("cleared console", "bytes", drained)
	return nil
}

// ViewRaw copies console bytes to the output until ctx is cancelled or the
// port stops answering.
func (s *Session) ViewRaw(ctx context.Context) error {
	return s.stream(ctx, func(p []byte) error {
		_, err := s.out.Write(p)
		return err
	})
}

// ViewFramed decodes COBS frames carrying SCTL records and dispatches each
// message. Malformed frames and records are logged and skipped.
func (s *Session) ViewFramed(ctx context.Context) error {
	dec := cobs.NewDecoder(0)
	return s.stream(ctx, func(p []byte) error {
		dec.Feed(p)
		defer dec.Compact()
		for {
			frame, ok, err := dec.Next()
			if !ok {
				return nil
			}
			if err != nil {
				s.log.Warn("dropping frame", "err", err)
				continue
			}
			if err := s.handleFrame(frame); err != nil {
				return err
			}
		}
	})
}

func (s *Session) handleFrame(frame []byte) error {
	for msg, err := range sctl.Decode(frame) {
		if err != nil {
			s.log.Warn("dropping record", "err", err)
			continue
		}
		if err := s.handleMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

var bootPrefix = []byte("boot: ")

func (s *Session) handleMessage(msg sctl.Message) error {
	switch msg.Kind {
	case sctl.KindBoot:
		line := make([]byte, 0, len(bootPrefix)+len(msg.Payload)+2)
		line = append(line, bootPrefix...)
		line = append(line, msg.Payload...)
		line = append(line, '\r', '\n')
		_, err := s.out.Write(line)
		return err
	case sctl.KindStdout:
		_, err := s.out.Write(msg.Payload)
		return err
	case sctl.KindStderr:
		_, err := s.errOut.Write(msg.Payload)
		return err
	default:
		s.log.Debug("ignoring message", "kind", msg.Kind.String(), "len", len(msg.Payload))
		return nil
	}
}

func (s *Session) stream(ctx context.Context, handle func([]byte) error) error {
	if err := s.enter(StateViewing); err != nil {
		return err
	}
	defer s.leave()

	if err := s.port.SetReadTimeout(StreamTimeout); err != nil {
		return fmt.Errorf("console: set read timeout: %w", err)
	}

	buf := make([]byte, readSize)
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.port.Read(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			failures++
			s.log.Debug("read failed", "err", err, "consecutive", failures)
			if s.maxReadErrors > 0 && failures >= s.maxReadErrors {
				return fmt.Errorf("%w after %d failed reads: %v", ErrDisconnected, failures, err)
			}
			continue
		}
		failures = 0
		if n == 0 {
			continue
		}
		if err := handle(buf[:n]); err != nil {
			return fmt.Errorf("console: write output: %w", err)
		}
	}
}
