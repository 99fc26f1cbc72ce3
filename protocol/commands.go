package protocol

import (
	"fmt"
	"strings"
)

// BuildCommand constructs a command line ready to send: the trimmed verb
// followed by CR-LF. The empty verb (CmdSync) yields a bare CR-LF, which
// makes the firmware print its prompt.
func BuildCommand(verb string) []byte {
	return []byte(strings.TrimSpace(verb) + LineTerminator)
}

// BuildReadRangeCommand constructs a ranged read command:
//
//	read <adr> <len>
//
// Both values are sent in hex. The firmware answers with data records only,
// without the extended address header or the end-of-file record.
func BuildReadRangeCommand(address uint16, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("read length must be positive, got %d", length)
	}
	if int(address)+length > MemorySize {
		return nil, &AddressOutOfBoundsError{Address: address, Length: length}
	}
	return BuildCommand(fmt.Sprintf("%s %X %X", CmdRead, address, length)), nil
}

// BuildRecordCommand constructs the write command for one record. Records
// are sent verbatim; the firmware recognises them by the leading ':'.
func BuildRecordCommand(rec Record) []byte {
	return BuildCommand(rec.String())
}
