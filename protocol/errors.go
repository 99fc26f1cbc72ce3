package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the record codec. The typed errors below match them
// with errors.Is.
var (
	ErrChecksum          = errors.New("record checksum mismatch")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrAddressOutOfRange = errors.New("record address out of bounds")
	ErrDataTooLong       = errors.New("record data too long")
)

// ChecksumError indicates that the bytes of a record do not sum to zero.
type ChecksumError struct {
	// Line is the offending record text
	Line string

	// Sum is the 8-bit sum of all decoded bytes (zero for a valid record)
	Sum byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: record sums to 0x%02X, expected 0x00 (%q)", e.Sum, e.Line)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

// MalformedRecordError indicates a record line that cannot be decoded.
type MalformedRecordError struct {
	Line   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %q: %s", e.Line, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// AddressOutOfBoundsError indicates a data record that would write past the
// end of the device.
type AddressOutOfBoundsError struct {
	Address uint16
	Length  int
}

func (e *AddressOutOfBoundsError) Error() string {
	return fmt.Sprintf("address out of bounds: 0x%04X+%d exceeds 0x%04X",
		e.Address, e.Length, MemorySize)
}

func (e *AddressOutOfBoundsError) Is(target error) bool { return target == ErrAddressOutOfRange }

// IsCodecError returns true if err is any record decoding failure.
func IsCodecError(err error) bool {
	return errors.Is(err, ErrChecksum) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrAddressOutOfRange)
}
