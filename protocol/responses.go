package protocol

import "strings"

// LineKind classifies one line received from the programmer.
type LineKind int

const (
	// LineEmpty is a blank line (the firmware prints CR-LF around output)
	LineEmpty LineKind = iota

	// LinePrompt is the ready prompt, the terminal response to any command
	LinePrompt

	// LineRecord is a ':'-prefixed hex record
	LineRecord

	// LineEcho is the bare verb of the command in progress
	LineEcho

	// LineText is anything else: status or error text from the firmware
	LineText
)

func (k LineKind) String() string {
	switch k {
	case LineEmpty:
		return "empty"
	case LinePrompt:
		return "prompt"
	case LineRecord:
		return "record"
	case LineEcho:
		return "echo"
	default:
		return "text"
	}
}

// Classify returns the kind of a received line. verb is the command being
// executed; a line equal to it is an echo rather than device output.
func Classify(line, verb string) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineEmpty
	case line == Prompt:
		return LinePrompt
	case line[0] == RecordStart:
		return LineRecord
	case verb != "" && line == verb:
		return LineEcho
	default:
		return LineText
	}
}

// IsPrompt reports whether line is the ready prompt.
func IsPrompt(line string) bool {
	return strings.TrimSpace(line) == Prompt
}

// IsWriteFailure reports whether a line received after sending a record
// signals a failed write: anything non-empty that is neither a record nor
// the prompt.
func IsWriteFailure(line string) bool {
	line = strings.TrimSpace(line)
	return line != "" && line[0] != RecordStart && line[0] != Prompt[0]
}
