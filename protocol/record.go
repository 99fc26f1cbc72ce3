package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Record is one decoded hex record.
//
// Wire format (all fields hex encoded, uppercase):
//
//	:[LEN(1)][ADDR_H][ADDR_L][TYPE(1)][DATA(LEN)][CHECKSUM(1)]
type Record struct {
	// Length is the number of data bytes (0-16)
	Length byte

	// Address is the start address of Data (big-endian on the wire)
	Address uint16

	// Type is the record type
	Type RecordType

	// Data holds exactly Length bytes
	Data []byte

	// Checksum is the 2's complement of the sum of all preceding bytes
	Checksum byte
}

// Encode builds a data record for up to MaxRecordData bytes at address.
//
// Example:
//
//	rec, err := protocol.Encode(0x0010, []byte{0x42})
//	fmt.Println(rec) // :0100100042AD
func Encode(address uint16, data []byte) (Record, error) {
	if len(data) > MaxRecordData {
		return Record{}, fmt.Errorf("%w: got %d bytes, maximum is %d", ErrDataTooLong, len(data), MaxRecordData)
	}
	if int(address)+len(data) > MemorySize {
		return Record{}, &AddressOutOfBoundsError{Address: address, Length: len(data)}
	}

	rec := Record{
		Length:  byte(len(data)),
		Address: address,
		Type:    TypeData,
		Data:    make([]byte, len(data)),
	}
	copy(rec.Data, data)
	rec.Checksum = Checksum(rec.header())

	return rec, nil
}

// EncodeLine is Encode followed by String.
func EncodeLine(address uint16, data []byte) (string, error) {
	rec, err := Encode(address, data)
	if err != nil {
		return "", err
	}
	return rec.String(), nil
}

// EndOfFile returns the end-of-transmission record.
func EndOfFile() Record {
	rec := Record{Type: TypeEndOfFile}
	rec.Checksum = Checksum(rec.header())
	return rec
}

// header returns every byte of the record except the checksum.
func (r Record) header() []byte {
	b := make([]byte, 0, RecordHeaderSize+len(r.Data))
	b = append(b, r.Length, byte(r.Address>>8), byte(r.Address), byte(r.Type))
	return append(b, r.Data...)
}

// Bytes returns the binary form of the record including the checksum.
func (r Record) Bytes() []byte {
	return append(r.header(), r.Checksum)
}

// String returns the textual record line without a line terminator.
func (r Record) String() string {
	return string(RecordStart) + strings.ToUpper(hex.EncodeToString(r.Bytes()))
}

// IsBlank reports whether every data byte is BlankByte.
func (r Record) IsBlank() bool {
	for _, b := range r.Data {
		if b != BlankByte {
			return false
		}
	}
	return true
}

// End returns the address one past the last data byte.
func (r Record) End() int {
	return int(r.Address) + int(r.Length)
}

// Decode parses one record line.
//
// The checksum is verified before the declared length so that any
// single-byte corruption is reported as a *ChecksumError.
//
// Example:
//
//	rec, err := protocol.Decode(":10000000FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF00")
func Decode(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] != RecordStart {
		return Record{}, &MalformedRecordError{Line: line, Reason: "record must start with ':'"}
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return Record{}, &MalformedRecordError{Line: line, Reason: fmt.Sprintf("invalid hex data: %v", err)}
	}

	if len(raw) < MinRecordSize {
		return Record{}, &MalformedRecordError{
			Line:   line,
			Reason: fmt.Sprintf("record too short: got %d bytes, minimum is %d", len(raw), MinRecordSize),
		}
	}

	if !ValidChecksum(raw) {
		return Record{}, &ChecksumError{Line: line, Sum: Sum(raw)}
	}

	length := raw[0]
	expectedLen := MinRecordSize + int(length)
	if len(raw) != expectedLen {
		return Record{}, &MalformedRecordError{
			Line: line,
			Reason: fmt.Sprintf("data length mismatch: got %d bytes, expected %d (header=%d + data=%d + checksum=%d)",
				len(raw), expectedLen, RecordHeaderSize, length, RecordChecksumSize),
		}
	}

	if length > MaxRecordData {
		return Record{}, &MalformedRecordError{
			Line:   line,
			Reason: fmt.Sprintf("record too long: %d data bytes, maximum is %d", length, MaxRecordData),
		}
	}

	rec := Record{
		Length:   length,
		Address:  uint16(raw[1])<<8 | uint16(raw[2]), // Big-endian
		Type:     RecordType(raw[3]),
		Data:     make([]byte, length),
		Checksum: raw[len(raw)-1],
	}
	copy(rec.Data, raw[RecordHeaderSize:RecordHeaderSize+int(length)])

	if rec.Type == TypeData && (int(rec.Address) >= MemorySize || rec.End() > MemorySize) {
		return Record{}, &AddressOutOfBoundsError{Address: rec.Address, Length: int(length)}
	}

	return rec, nil
}

// IsBlank reports whether every data hex digit of an encoded data record is
// 'f' or 'F', i.e. the record would program only erased cells.
// Lines too short to be a record are never blank.
func IsBlank(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < dataOffset+2*RecordChecksumSize {
		return false
	}
	for _, c := range line[dataOffset : len(line)-2*RecordChecksumSize] {
		if c != 'f' && c != 'F' {
			return false
		}
	}
	return true
}
