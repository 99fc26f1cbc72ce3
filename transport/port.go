package transport

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the part of a serial port a Session needs. serial.Port satisfies
// it; tests and the device simulator provide their own implementations.
//
// Read must return (0, nil) when the read timeout expires without data.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Drain() error
	Close() error
}

// Dialer opens the port at path with the given mode.
type Dialer func(path string, mode *serial.Mode) (Port, error)

// SerialDialer opens a real serial port through go.bug.st/serial.
func SerialDialer(path string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// serialMode returns the 8N1 line settings used by the programmer firmware.
func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}
