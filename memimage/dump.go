package memimage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatRow renders the RowSize bytes at the row containing addr:
//
//	0010 42 ff ff ... ff B...............
func (img *Image) FormatRow(addr int) (string, error) {
	if addr < 0 || addr >= Size {
		return "", &OutOfBoundsError{Address: addr}
	}
	start := addr &^ (RowSize - 1)
	row, _ := img.Chunk(start, RowSize)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%04x ", start)
	for _, b := range row {
		fmt.Fprintf(&sb, "%02x ", b)
	}
	for _, b := range row {
		if b >= 32 && b <= 126 {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String(), nil
}

// Dump writes the rows covering [from, to) to w. Rows that are entirely
// blank are skipped when skipBlank is set.
func Dump(w io.Writer, img *Image, from, to int, skipBlank bool) error {
	if from < 0 || from >= Size {
		return &OutOfBoundsError{Address: from}
	}
	if to > Size || to <= 0 {
		to = Size
	}

	bw := bufio.NewWriter(w)
	for addr := from &^ (RowSize - 1); addr < to; addr += RowSize {
		if skipBlank {
			row, _ := img.Chunk(addr, RowSize)
			if isBlankRow(row) {
				continue
			}
		}
		line, err := img.FormatRow(addr)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func isBlankRow(row []byte) bool {
	for _, b := range row {
		if b != Blank {
			return false
		}
	}
	return true
}

// ParseValues parses an edit expression into bytes. Tokens are separated by
// whitespace; a token starting with a single quote contributes the
// characters after it, any other token is an integer in Go syntax
// (decimal, 0x hex, 0o/0 octal, 0b binary) in the range 0-255.
//
// Example:
//
//	b, err := memimage.ParseValues("1 2 0xff 'text")
//	// b == []byte{0x01, 0x02, 0xFF, 't', 'e', 'x', 't'}
func ParseValues(input string) ([]byte, error) {
	var out []byte
	for _, tok := range strings.Fields(input) {
		if strings.HasPrefix(tok, "'") {
			out = append(out, tok[1:]...)
			continue
		}
		v, err := strconv.ParseUint(tok, 0, 8)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				err = numErr.Err
			}
			return nil, &ParseError{Input: tok, Err: err}
		}
		out = append(out, byte(v))
	}
	if len(out) == 0 {
		return nil, &ParseError{Input: input, Err: errors.New("no values")}
	}
	return out, nil
}
