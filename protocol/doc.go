// Package protocol implements the line protocol of the 28C256 EEPROM programmer.
//
// This package encodes and decodes the checksummed hex records exchanged with
// the programmer firmware and defines its command vocabulary. It performs no
// I/O; see package transport for the serial session.
//
// # Protocol Overview
//
// Commands are plain text lines terminated by CR-LF:
//
//	""            sync probe, answered with the prompt
//	read          stream the device as records
//	blankcheck    report non-blank cells
//	erase         chip erase
//	lock, unlock  software data protection
//	:LLAAAATT...  write one data record
//
// Every command is answered with zero or more lines followed by the prompt
// ">", which is not terminated by a newline.
//
// # Record Format
//
//	:[LEN][ADDR_H][ADDR_L][TYPE][DATA...][CHECKSUM]
//
// Where:
//   - LEN = number of data bytes (0-16)
//   - ADDR = 16-bit big-endian start address (0x0000-0x7FFF)
//   - TYPE = 0x00 data, 0x01 end-of-file, 0x04 extended linear address
//   - CHECKSUM = 2's complement of the sum of all preceding bytes
//
// All fields are uppercase hex. The end-of-file record is ":00000001FF".
//
// # Codec
//
//	line, err := protocol.EncodeLine(0x0010, []byte{0x42})
//	rec, err := protocol.Decode(line)
//	if protocol.IsBlank(line) {
//	    // nothing to program
//	}
//
// # Error Handling
//
// Decode failures are typed and match sentinel errors with errors.Is:
//
//	var csErr *protocol.ChecksumError
//	if errors.As(err, &csErr) {
//	    // err.Error() returns: "checksum mismatch: record sums to 0x03, ..."
//	}
//	if errors.Is(err, protocol.ErrMalformedRecord) { ... }
package protocol
