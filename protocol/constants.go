package protocol

// Device geometry for the 28C256.
const (
	// MemorySize is the size of the EEPROM address space in bytes (32 KiB)
	MemorySize = 0x8000

	// BlankByte is the value of an erased cell
	BlankByte = 0xFF

	// MaxRecordData is the maximum number of data bytes carried by one record
	MaxRecordData = 16

	// ChunkSize is the number of bytes sent per write record
	ChunkSize = 16
)

// Record layout constants.
const (
	// RecordStart is the marker that begins every record line
	RecordStart = ':'

	// RecordHeaderSize is the size of length(1) + address(2) + type(1)
	RecordHeaderSize = 4

	// RecordChecksumSize is the size of the trailing checksum field
	RecordChecksumSize = 1

	// MinRecordSize is the smallest decodable record in bytes (no data)
	MinRecordSize = RecordHeaderSize + RecordChecksumSize

	// MaxLineLength is the length of the longest record line, without
	// terminator: ':' + 2 hex digits per byte of a full record
	MaxLineLength = 1 + 2*(MinRecordSize+MaxRecordData)

	// dataOffset is the index of the first data hex digit in a record line:
	// ':' + LL + AAAA + TT
	dataOffset = 1 + 2*RecordHeaderSize
)

// RecordType identifies the meaning of a record.
type RecordType byte

// Record types. Only data and end-of-file are interpreted; the programmer
// firmware also emits an extended linear address record before a full read.
const (
	TypeData           RecordType = 0x00
	TypeEndOfFile      RecordType = 0x01
	TypeExtendedLinear RecordType = 0x04
)

func (t RecordType) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeEndOfFile:
		return "end-of-file"
	case TypeExtendedLinear:
		return "extended-linear-address"
	default:
		return "reserved"
	}
}

// EndOfFileLine is the textual end-of-transmission record.
const EndOfFileLine = ":00000001FF"

// Command verbs understood by the programmer firmware.
const (
	// CmdSync is the empty command used to probe for a prompt
	CmdSync = ""

	// CmdRead streams the whole device as records
	CmdRead = "read"

	// CmdBlankCheck reports whether every cell reads 0xFF
	CmdBlankCheck = "blankcheck"

	// CmdErase performs a chip erase
	CmdErase = "erase"

	// CmdLock enables software data protection
	CmdLock = "lock"

	// CmdUnlock disables software data protection
	CmdUnlock = "unlock"

	// CmdHelp prints the firmware command list
	CmdHelp = "help"
)

// Response markers.
const (
	// Prompt is sent by the firmware when it is ready for the next command.
	// It is not followed by a line terminator.
	Prompt = ">"

	// LineTerminator ends every command sent to the device
	LineTerminator = "\r\n"

	// UnknownCommandReply is printed by the firmware for unknown verbs
	UnknownCommandReply = "?"
)

// DefaultBaudRate is the fixed serial speed of the programmer.
const DefaultBaudRate = 38400
