package memimage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moffa90/go-28c256/protocol"
)

// Format is an on-disk image format.
type Format int

const (
	// FormatBinary is a raw 32768-byte dump
	FormatBinary Format = iota

	// FormatHex is a text file of hex records
	FormatHex
)

func (f Format) String() string {
	if f == FormatHex {
		return "hex"
	}
	return "binary"
}

// FormatFromPath selects the format by file extension: ".hex" (any case)
// is FormatHex, everything else is FormatBinary.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		return FormatHex
	}
	return FormatBinary
}

// Load reads an image from the file at path, choosing the format with
// FormatFromPath.
//
// Example:
//
//	img, err := memimage.Load("rom.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if FormatFromPath(path) == FormatHex {
		return ReadHex(f)
	}
	return ReadBinary(f)
}

// ReadBinary reads a raw image. At most Size bytes are consumed; a shorter
// input is padded with Blank and a longer one is truncated.
func ReadBinary(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, Size))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data)
}

// ReadHex reads an image from hex records. Cells not covered by a data
// record stay blank. Reading stops at the end-of-file record; lines that do
// not start with ':' and records of other types are skipped.
//
// Example:
//
//	data := strings.NewReader(":0100100042AD\n:00000001FF\n")
//	img, err := memimage.ReadHex(data)
func ReadHex(r io.Reader) (*Image, error) {
	img := New()
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || line[0] != protocol.RecordStart {
			continue
		}

		rec, err := protocol.Decode(line)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Input: line, Err: err}
		}

		switch rec.Type {
		case protocol.TypeData:
			if err := img.SetBytes(int(rec.Address), rec.Data); err != nil {
				return nil, &ParseError{Line: lineNum, Input: line, Err: err}
			}
		case protocol.TypeEndOfFile:
			return img, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return img, nil
}

// Save writes img to path, choosing the format with FormatFromPath.
func Save(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if FormatFromPath(path) == FormatHex {
		err = WriteHex(f, img)
	} else {
		err = WriteBinary(f, img)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	return err
}

// WriteBinary writes exactly Size bytes.
func WriteBinary(w io.Writer, img *Image) error {
	if _, err := w.Write(img.Bytes()); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// WriteHex writes one data record per RowSize bytes, blank rows included,
// followed by the end-of-file record.
func WriteHex(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	data := img.Bytes()

	for addr := 0; addr < Size; addr += RowSize {
		line, err := protocol.EncodeLine(uint16(addr), data[addr:addr+RowSize])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(bw, "%s\n", line); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
	}
	if _, err := fmt.Fprintln(bw, protocol.EndOfFile().String()); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
