package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-28c256/protocol"
)

// maxPending bounds the bytes held while waiting for a line terminator.
const maxPending = 2 * protocol.MaxLineLength

// State is the lifecycle state of a Session.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateSynced
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateSynced:
		return "synced"
	case StateBusy:
		return "busy"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is an open, line-oriented link to the programmer firmware.
//
// A Session is owned by one operation at a time. Close may be called from
// another goroutine to abort a blocked read.
type Session struct {
	path   string
	port   Port
	config Config
	log    zerolog.Logger

	mu    sync.Mutex
	state State

	pending []byte
	buf     [256]byte
}

// Open opens the serial port at path and prepares it for Synchronize.
//
// Example:
//
//	s, err := transport.Open(ctx, "/dev/ttyUSB0")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	if err := s.Synchronize(ctx); err != nil {
//	    return err
//	}
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)

	port, err := cfg.Dialer(path, serialMode(cfg.BaudRate))
	if err != nil {
		return nil, &PortError{Port: path, Op: "open", Err: err}
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, &PortError{Port: path, Op: "configure", Err: err}
	}

	s := &Session{
		path:   path,
		port:   port,
		config: cfg,
		log:    cfg.Logger.With().Str("port", path).Logger(),
		state:  StateOpening,
	}
	s.log.Debug().Int("baud", cfg.BaudRate).Dur("read_timeout", cfg.ReadTimeout).Msg("port opened")
	return s, nil
}

// Path returns the port path the session was opened on.
func (s *Session) Path() string { return s.path }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

// Synchronize probes the firmware with empty commands until it answers
// with a prompt. The duplicate prompt caused by the CR-LF terminator is
// flushed before returning.
func (s *Session) Synchronize(ctx context.Context) error {
	if err := s.resetBuffers(); err != nil {
		return err
	}

	for attempt := 1; attempt <= s.config.SyncAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, s.config.SyncDelay); err != nil {
				return err
			}
		}

		s.log.Debug().Int("attempt", attempt).Msg("sync")
		if err := s.Send(ctx, protocol.CmdSync); err != nil {
			return err
		}

		synced, err := s.awaitPrompt(ctx)
		if err != nil {
			return err
		}
		if synced {
			if err := sleep(ctx, s.config.SyncDelay); err != nil {
				return err
			}
			if err := s.resetBuffers(); err != nil {
				return err
			}
			s.setState(StateSynced)
			s.log.Debug().Int("attempts", attempt).Msg("synced")
			return nil
		}
	}

	return &NotSyncedError{Port: s.path, Attempts: s.config.SyncAttempts}
}

// awaitPrompt reads until a prompt arrives, one read window is silent or
// the attempt window (SyncDelay plus one read timeout) has passed. A port
// that keeps sending other text fails the attempt.
func (s *Session) awaitPrompt(ctx context.Context) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.SyncDelay+s.config.ReadTimeout)
	defer cancel()

	for {
		line, err := s.RecvLine(attemptCtx)
		if errors.Is(err, ErrTimeout) {
			return false, nil
		}
		if err != nil {
			if ctx.Err() == nil && attemptCtx.Err() != nil {
				return false, nil
			}
			return false, err
		}
		if protocol.IsPrompt(line) {
			return true, nil
		}
	}
}

func (s *Session) resetBuffers() error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return &PortError{Port: s.path, Op: "reset input", Err: err}
	}
	if err := s.port.ResetOutputBuffer(); err != nil {
		return &PortError{Port: s.path, Op: "reset output", Err: err}
	}
	s.pending = s.pending[:0]
	return nil
}

// Send writes command followed by CR-LF and waits for it to leave the
// output buffer.
func (s *Session) Send(ctx context.Context, command string) error {
	return s.SendLine(ctx, protocol.BuildCommand(command))
}

// SendLine writes a complete command line, as built by the protocol
// package builders, and waits for it to leave the output buffer.
func (s *Session) SendLine(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.State() == StateClosed {
		return ErrClosed
	}

	s.log.Trace().Bytes("line", bytes.TrimSpace(line)).Msg("send")
	if _, err := s.port.Write(line); err != nil {
		return &PortError{Port: s.path, Op: "write", Err: err}
	}
	if err := s.port.Drain(); err != nil {
		return &PortError{Port: s.path, Op: "drain", Err: err}
	}
	s.setState(StateBusy)
	return nil
}

// RecvLine returns the next non-empty line with surrounding whitespace
// removed.
//
// The firmware prints its prompt without a line terminator, so a ">" is
// returned as soon as it arrives. Bytes received before a silent read
// window are returned as a partial line, as are unterminated runs longer
// than twice the longest record line; a window without any byte returns
// ErrTimeout.
func (s *Session) RecvLine(ctx context.Context) (string, error) {
	for {
		if line, ok := s.nextLine(); ok {
			s.log.Trace().Str("line", line).Msg("recv")
			if protocol.IsPrompt(line) {
				s.setState(StateSynced)
			}
			return line, nil
		}

		if len(s.pending) >= maxPending {
			partial := string(bytes.TrimSpace(s.pending))
			s.pending = s.pending[:0]
			s.log.Trace().Str("line", partial).Msg("recv overlong")
			return partial, nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.State() == StateClosed {
			return "", ErrClosed
		}

		n, err := s.port.Read(s.buf[:])
		if err != nil {
			if s.State() == StateClosed {
				return "", ErrClosed
			}
			return "", &PortError{Port: s.path, Op: "read", Err: err}
		}
		if n == 0 {
			partial := bytes.TrimSpace(s.pending)
			s.pending = s.pending[:0]
			if len(partial) == 0 {
				return "", ErrTimeout
			}
			s.log.Trace().Bytes("line", partial).Msg("recv partial")
			return string(partial), nil
		}
		s.pending = append(s.pending, s.buf[:n]...)
	}
}

// nextLine extracts a complete line or a leading prompt from the pending bytes.
func (s *Session) nextLine() (string, bool) {
	for {
		s.pending = bytes.TrimLeft(s.pending, " \t\r\n")
		if len(s.pending) == 0 {
			return "", false
		}
		if s.pending[0] == protocol.Prompt[0] {
			s.pending = s.pending[1:]
			return protocol.Prompt, true
		}
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			return "", false
		}
		line := string(bytes.TrimSpace(s.pending[:i]))
		s.pending = s.pending[i+1:]
		if line != "" {
			return line, true
		}
	}
}

// Close closes the port. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.log.Debug().Msg("port closed")
	if err := s.port.Close(); err != nil {
		return &PortError{Port: s.path, Op: "close", Err: err}
	}
	return nil
}

// Probe reports whether a programmer answers on path.
func Probe(ctx context.Context, path string, opts ...Option) bool {
	s, err := Open(ctx, path, opts...)
	if err != nil {
		return false
	}
	defer s.Close()
	return s.Synchronize(ctx) == nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
