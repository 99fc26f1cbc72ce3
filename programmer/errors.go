package programmer

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-28c256/transport"
)

var (
	// ErrBusy is returned when an operation is already running
	ErrBusy = errors.New("programmer busy: another operation is in progress")

	// ErrTimeout matches errors caused by the device staying silent
	ErrTimeout = transport.ErrTimeout
)

// DeviceError carries an error message printed by the programmer firmware,
// for example "write error at 0010" or "Not blank".
type DeviceError struct {
	Op Operation

	// Address is the start of the record being written, or -1
	Address int

	// Message is the device text, verbatim
	Message string
}

func (e *DeviceError) Error() string {
	if e.Address >= 0 {
		return fmt.Sprintf("device error at 0x%04X: %s", e.Address, e.Message)
	}
	return fmt.Sprintf("device reported: %s", e.Message)
}

// ProtocolError indicates a line from the device that could not be decoded.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %q: %v", e.Line, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Mismatch is one byte that differs between the device and the image.
type Mismatch struct {
	Address  int
	Expected byte
	Actual   byte
}

// VerifyMismatchError lists the differing bytes of the first record that
// did not match the image.
type VerifyMismatchError struct {
	Mismatches []Mismatch
}

// First returns the mismatch with the lowest address.
func (e *VerifyMismatchError) First() Mismatch {
	first := e.Mismatches[0]
	for _, m := range e.Mismatches[1:] {
		if m.Address < first.Address {
			first = m
		}
	}
	return first
}

func (e *VerifyMismatchError) Error() string {
	if len(e.Mismatches) == 0 {
		return "verify failed"
	}
	m := e.First()
	return fmt.Sprintf("verify failed at 0x%04X: expected 0x%02X, got 0x%02X (%d bytes differ)",
		m.Address, m.Expected, m.Actual, len(e.Mismatches))
}

// IncompleteReadError indicates that the device returned to its prompt
// without sending the end-of-file record.
type IncompleteReadError struct {
	// Received is the highest address covered by the records received
	Received int
}

func (e *IncompleteReadError) Error() string {
	return fmt.Sprintf("read incomplete: prompt after 0x%04X bytes without end-of-file record", e.Received)
}
