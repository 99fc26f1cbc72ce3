package memimage

import (
	"bytes"
	"sync"

	"github.com/moffa90/go-28c256/protocol"
)

// Image geometry.
const (
	// Size is the number of bytes in an image
	Size = protocol.MemorySize

	// Blank is the value of an erased cell
	Blank = protocol.BlankByte

	// RowSize is the number of bytes per dump row and per write chunk
	RowSize = protocol.ChunkSize
)

// Image is the in-memory copy of the EEPROM contents: exactly Size bytes,
// blank (0xFF) until loaded, read from a device, or edited.
//
// Image is safe for concurrent use. A reader running alongside an operation
// that mutates the image sees eventually consistent contents.
type Image struct {
	mu   sync.RWMutex
	data [Size]byte
}

// New returns a blank image.
func New() *Image {
	img := &Image{}
	img.fill(Blank)
	return img
}

// FromBytes returns an image holding b padded with Blank to Size bytes.
// More than Size bytes is rejected with ErrTooLarge.
func FromBytes(b []byte) (*Image, error) {
	if len(b) > Size {
		return nil, &TooLargeError{Size: len(b)}
	}
	img := New()
	if err := img.ReplaceBytes(b); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) fill(v byte) {
	for i := range img.data {
		img.data[i] = v
	}
}

// Fill sets every cell to v.
func (img *Image) Fill(v byte) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.fill(v)
}

// Get returns the byte at addr.
func (img *Image) Get(addr int) (byte, error) {
	if addr < 0 || addr >= Size {
		return 0, &OutOfBoundsError{Address: addr}
	}
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.data[addr], nil
}

// Set stores v at addr.
func (img *Image) Set(addr int, v byte) error {
	if addr < 0 || addr >= Size {
		return &OutOfBoundsError{Address: addr}
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	img.data[addr] = v
	return nil
}

// SetBytes stores b starting at addr. Nothing is written if any byte would
// fall outside the image.
func (img *Image) SetBytes(addr int, b []byte) error {
	if addr < 0 || addr >= Size {
		return &OutOfBoundsError{Address: addr}
	}
	if addr+len(b) > Size {
		return &OutOfBoundsError{Address: addr + len(b) - 1}
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	copy(img.data[addr:], b)
	return nil
}

// Chunk returns a copy of n bytes starting at addr, clipped to the end of
// the image.
func (img *Image) Chunk(addr, n int) ([]byte, error) {
	if addr < 0 || addr >= Size {
		return nil, &OutOfBoundsError{Address: addr}
	}
	if n < 0 {
		n = 0
	}
	end := addr + n
	if end > Size {
		end = Size
	}
	img.mu.RLock()
	defer img.mu.RUnlock()
	out := make([]byte, end-addr)
	copy(out, img.data[addr:end])
	return out, nil
}

// Bytes returns a copy of the whole image.
func (img *Image) Bytes() []byte {
	img.mu.RLock()
	defer img.mu.RUnlock()
	out := make([]byte, Size)
	copy(out, img.data[:])
	return out
}

// Replace overwrites the whole image with the contents of other.
func (img *Image) Replace(other *Image) {
	if other == img {
		return
	}
	snapshot := other.Bytes()
	img.mu.Lock()
	defer img.mu.Unlock()
	copy(img.data[:], snapshot)
}

// ReplaceBytes overwrites the whole image with b padded to Size.
func (img *Image) ReplaceBytes(b []byte) error {
	if len(b) > Size {
		return &TooLargeError{Size: len(b)}
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	img.fill(Blank)
	copy(img.data[:], b)
	return nil
}

// Clone returns an independent copy of the image.
func (img *Image) Clone() *Image {
	c := &Image{}
	copy(c.data[:], img.Bytes())
	return c
}

// Equal reports whether both images hold the same bytes.
func (img *Image) Equal(other *Image) bool {
	return bytes.Equal(img.Bytes(), other.Bytes())
}

// IsBlank reports whether every cell is erased.
func (img *Image) IsBlank() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	for _, b := range img.data {
		if b != Blank {
			return false
		}
	}
	return true
}

// Diff returns the addresses at which img and other differ, in ascending
// order.
func (img *Image) Diff(other *Image) []int {
	a, b := img.Bytes(), other.Bytes()
	var out []int
	for i := range a {
		if a[i] != b[i] {
			out = append(out, i)
		}
	}
	return out
}
