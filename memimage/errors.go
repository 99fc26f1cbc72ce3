package memimage

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds matches every *OutOfBoundsError
	ErrOutOfBounds = errors.New("address out of bounds")

	// ErrTooLarge matches every *TooLargeError
	ErrTooLarge = errors.New("image too large")
)

// OutOfBoundsError indicates an access outside the 32 KiB image.
type OutOfBoundsError struct {
	Address int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("address 0x%04X is out of bounds: valid range is 0x0000-0x%04X",
		e.Address, Size-1)
}

func (e *OutOfBoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// TooLargeError indicates data that does not fit into an image.
type TooLargeError struct {
	Size int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("image too large: got %d bytes, maximum is %d", e.Size, Size)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrTooLarge }

// ParseError reports a problem in a hex file or an edit expression.
type ParseError struct {
	// Line is the 1-based line number, zero for edit expressions
	Line int

	// Input is the offending text
	Input string

	Err error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid value %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
