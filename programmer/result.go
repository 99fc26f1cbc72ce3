package programmer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moffa90/go-28c256/protocol"
	"github.com/moffa90/go-28c256/transport"
)

// Operation identifies one of the programmer operations.
type Operation int

const (
	OpRead Operation = iota
	OpVerify
	OpWrite
	OpBlankCheck
	OpErase
	OpLock
	OpUnlock
)

var operationNames = [...]string{
	OpRead:       "read",
	OpVerify:     "verify",
	OpWrite:      "write",
	OpBlankCheck: "blankcheck",
	OpErase:      "erase",
	OpLock:       "lock",
	OpUnlock:     "unlock",
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation returns the operation with the given name.
func ParseOperation(name string) (Operation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range operationNames {
		if n == name {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}

// Status is the outcome category of an operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusVerifyMismatch
	StatusProtocolError
	StatusTimeout
	StatusDeviceError
	StatusIncompleteRead
	StatusCancelled

	// StatusFailed covers everything else: the port could not be opened,
	// the programmer was busy, the link broke
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusVerifyMismatch:
		return "verify-mismatch"
	case StatusProtocolError:
		return "protocol-error"
	case StatusTimeout:
		return "timeout"
	case StatusDeviceError:
		return "device-error"
	case StatusIncompleteRead:
		return "incomplete-read"
	case StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is the outcome of one operation.
type Result struct {
	Operation Operation
	Status    Status
	Err       error

	// Summary is set by Write
	Summary WriteSummary

	Elapsed time.Duration
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Classify maps an error returned by a Programmer to a Status.
func Classify(err error) Status {
	var (
		mismatch   *VerifyMismatchError
		incomplete *IncompleteReadError
		protoErr   *ProtocolError
		deviceErr  *DeviceError
	)

	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &mismatch):
		return StatusVerifyMismatch
	case errors.As(err, &incomplete):
		return StatusIncompleteRead
	case errors.As(err, &protoErr), protocol.IsCodecError(err):
		return StatusProtocolError
	case errors.As(err, &deviceErr):
		return StatusDeviceError
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, transport.ErrNotSynced),
		errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusFailed
	}
}
