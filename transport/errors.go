package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.bug.st/serial"
)

var (
	// ErrTimeout is returned when a read window passes without any byte
	ErrTimeout = errors.New("timeout waiting for programmer")

	// ErrNotSynced matches every *NotSyncedError
	ErrNotSynced = errors.New("programmer did not answer sync")

	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session closed")

	// ErrNoProgrammer is returned by FindPort when no port answers
	ErrNoProgrammer = errors.New("no programmer found")
)

// NotSyncedError indicates that the sync handshake failed.
type NotSyncedError struct {
	Port     string
	Attempts int
}

func (e *NotSyncedError) Error() string {
	return fmt.Sprintf("%s: no prompt after %d sync attempts", e.Port, e.Attempts)
}

func (e *NotSyncedError) Is(target error) bool { return target == ErrNotSynced }

// PortError wraps a failure of the underlying port.
type PortError struct {
	Port string
	Op   string
	Err  error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// IsDisconnected reports whether err means the port went away, for example
// because the USB cable was unplugged.
func IsDisconnected(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO) {
		return true
	}
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}

// IsBusy reports whether err means another process holds the port.
func IsBusy(err error) bool {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	return portErr.Code() == serial.PortBusy || portErr.Code() == serial.PermissionDenied
}
