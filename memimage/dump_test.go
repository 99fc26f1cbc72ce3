package memimage

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestFormatRow(t *testing.T) {
	img := New()
	_ = img.SetBytes(0x0010, []byte{0x42, 0x00, 'h', 'i'})

	got, err := img.FormatRow(0x0013)
	if err != nil {
		t.Fatalf("FormatRow() error = %v", err)
	}

	want := "0010 42 00 68 69 ff ff ff ff ff ff ff ff ff ff ff ff B.hi............"
	if got != want {
		t.Errorf("FormatRow() =\n%q\nwant\n%q", got, want)
	}

	if _, err := img.FormatRow(Size); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestDump(t *testing.T) {
	img := New()
	_ = img.Set(0x0010, 0x42)
	_ = img.Set(0x7FF0, 0x00)

	var buf bytes.Buffer
	if err := Dump(&buf, img, 0, Size, true); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Dump(skipBlank) wrote %d rows, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "0010 42") || !strings.HasPrefix(lines[1], "7ff0 00") {
		t.Errorf("unexpected rows: %q", lines)
	}

	buf.Reset()
	if err := Dump(&buf, img, 0x0005, 0x0030, false); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Errorf("Dump(0x05, 0x30) wrote %d rows, want 3", got)
	}
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "decimal and hex", input: "1 2 0xff 0xFE", want: []byte{0x01, 0x02, 0xFF, 0xFE}},
		{name: "text", input: "'text", want: []byte("text")},
		{name: "mixed", input: "0x42 'OK 0", want: []byte{0x42, 'O', 'K', 0x00}},
		{name: "binary and octal", input: "0b101 0o17", want: []byte{0x05, 0x0F}},
		{name: "out of range", input: "256", wantErr: true},
		{name: "not a number", input: "zz", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValues(tt.input)
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValues() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ParseValues() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestParseValuesRangeError(t *testing.T) {
	_, err := ParseValues("300")
	if !errors.Is(err, strconv.ErrRange) {
		t.Errorf("expected strconv.ErrRange, got %v", err)
	}
}
