package memimage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moffa90/go-28c256/protocol"
)

func TestReadBinary(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "short", input: []byte{0x10, 0x20, 0x30}},
		{name: "exact", input: bytes.Repeat([]byte{0x5A}, Size)},
		{name: "long", input: bytes.Repeat([]byte{0xA5}, Size+100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ReadBinary(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadBinary() error = %v", err)
			}

			data := img.Bytes()
			if len(data) != Size {
				t.Fatalf("image size = %d, want %d", len(data), Size)
			}

			n := len(tt.input)
			if n > Size {
				n = Size
			}
			if !bytes.Equal(data[:n], tt.input[:n]) {
				t.Error("image prefix does not match input")
			}
			if !bytes.Equal(data[n:], bytes.Repeat([]byte{Blank}, Size-n)) {
				t.Error("image should be padded with 0xFF")
			}
		})
	}
}

func TestReadHex(t *testing.T) {
	data, _ := protocol.EncodeLine(0x1234, []byte{0xBE, 0xEF})
	input := "; comment lines are skipped\n" +
		":020000040000FA\n" +
		":0100100042AD\n" +
		"\n" +
		data + "\n" +
		protocol.EndOfFileLine + "\n" +
		":0100200011CE\n" // after end of file, ignored

	img, err := ReadHex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadHex() error = %v", err)
	}

	if b, _ := img.Get(0x0010); b != 0x42 {
		t.Errorf("0x0010 = 0x%02X, want 0x42", b)
	}
	chunk, _ := img.Chunk(0x1234, 2)
	if !bytes.Equal(chunk, []byte{0xBE, 0xEF}) {
		t.Errorf("0x1234 = % X, want BE EF", chunk)
	}
	if b, _ := img.Get(0x0020); b != Blank {
		t.Errorf("record after end of file was applied: 0x%02X", b)
	}
	if got := len(img.Diff(New())); got != 3 {
		t.Errorf("%d cells changed, want 3", got)
	}
}

func TestReadHexErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		line    int
	}{
		{
			name:    "bad checksum",
			input:   ":0100100042AD\n:01000300FF\n",
			wantErr: protocol.ErrChecksum,
			line:    2,
		},
		{
			name:    "address out of range",
			input:   ":107FF8000000000000000000000000000000000079\n",
			wantErr: protocol.ErrAddressOutOfRange,
			line:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHex(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadHex() error = %v, want %v", err, tt.wantErr)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) || parseErr.Line != tt.line {
				t.Errorf("expected ParseError on line %d, got %v", tt.line, err)
			}
		})
	}
}

func TestWriteHexReadHexRoundTrip(t *testing.T) {
	img := New()
	_ = img.SetBytes(0x0000, []byte("28C256"))
	_ = img.Set(0x7FFF, 0x00)

	var buf bytes.Buffer
	if err := WriteHex(&buf, img); err != nil {
		t.Fatalf("WriteHex() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != Size/RowSize+1 {
		t.Fatalf("WriteHex() wrote %d lines, want %d", len(lines), Size/RowSize+1)
	}
	if lines[len(lines)-1] != protocol.EndOfFileLine {
		t.Errorf("last line = %q, want %q", lines[len(lines)-1], protocol.EndOfFileLine)
	}

	back, err := ReadHex(&buf)
	if err != nil {
		t.Fatalf("ReadHex() error = %v", err)
	}
	if !back.Equal(img) {
		t.Error("hex round trip changed the image")
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()

	img := New()
	_ = img.Set(0x0010, 0x42)

	for _, name := range []string{"rom.bin", "rom.HEX"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, img); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			back, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !back.Equal(img) {
				t.Error("Load() returned a different image")
			}
		})
	}

	info, err := os.Stat(filepath.Join(dir, "rom.bin"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != Size {
		t.Errorf("binary file size = %d, want %d", info.Size(), Size)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.hex":   FormatHex,
		"A.HEX":   FormatHex,
		"a.bin":   FormatBinary,
		"a":       FormatBinary,
		"hex.rom": FormatBinary,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}
